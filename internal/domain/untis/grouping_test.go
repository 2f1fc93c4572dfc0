package untis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(n int) *int { return &n }

func lesson(id, date, start, end int, lsnumber *int) Timetable {
	return Timetable{ID: id, Date: date, StartTime: start, EndTime: end, LessonNumber: lsnumber}
}

// 2019-09-02 is a Monday, which is Day 2 in WebUntis timegrids.
var mondayGrid = []TimegridUnits{{
	Day: 2,
	TimeUnits: []TimeUnit{
		{Name: "3", StartTime: 1030, EndTime: 1115},
		{Name: "1", StartTime: 900, EndTime: 945},
		{Name: "2", StartTime: 945, EndTime: 1015},
	},
}}

func TestGroupLessons_MergesConsecutivePeriodsOfOneFamily(t *testing.T) {
	groups := GroupLessons([]Timetable{
		lesson(2, 20190902, 945, 1030, num(102)),
		lesson(1, 20190902, 900, 945, num(101)),
	}, nil)

	require.Len(t, groups, 1)
	g := groups[0]
	assert.Equal(t, 20190902, g.Date)
	assert.Equal(t, 900, g.StartTime)
	assert.Equal(t, 1030, g.EndTime)
	assert.Equal(t, []int{101, 102}, g.LessonNumbers)
	assert.Equal(t, 1, g.Timetables[0].ID)
	assert.Equal(t, 2, g.Timetables[1].ID)
}

func TestGroupLessons_TouchingMergesGapSplits(t *testing.T) {
	touching := GroupLessons([]Timetable{
		lesson(1, 20190902, 900, 1015, num(101)),
		lesson(2, 20190902, 1015, 1100, num(102)),
	}, nil)
	assert.Len(t, touching, 1)

	gap := GroupLessons([]Timetable{
		lesson(1, 20190902, 900, 1015, num(101)),
		lesson(2, 20190902, 1020, 1100, num(102)),
	}, nil)
	assert.Len(t, gap, 2)
}

func TestGroupLessons_TimegridBridgesBreak(t *testing.T) {
	lessons := []Timetable{
		lesson(1, 20190902, 945, 1015, num(101)),
		lesson(2, 20190902, 1030, 1115, num(102)),
	}

	assert.Len(t, GroupLessons(lessons, nil), 2)

	groups := GroupLessons(lessons, mondayGrid)
	require.Len(t, groups, 1)
	assert.Equal(t, 945, groups[0].StartTime)
	assert.Equal(t, 1115, groups[0].EndTime)
}

func TestGroupLessons_TimegridRequiresExactSlots(t *testing.T) {
	lessons := []Timetable{
		lesson(1, 20190902, 945, 1010, num(101)),
		lesson(2, 20190902, 1030, 1115, num(102)),
	}
	assert.Len(t, GroupLessons(lessons, mondayGrid), 2)
}

func TestGroupLessons_TimegridForOtherWeekdayIsIgnored(t *testing.T) {
	// 2019-09-03 is a Tuesday.
	lessons := []Timetable{
		lesson(1, 20190903, 945, 1015, num(101)),
		lesson(2, 20190903, 1030, 1115, num(102)),
	}
	assert.Len(t, GroupLessons(lessons, mondayGrid), 2)
}

func TestGroupLessons_FamiliesNeverMerge(t *testing.T) {
	groups := GroupLessons([]Timetable{
		lesson(1, 20190902, 900, 945, num(101)),
		lesson(2, 20190902, 945, 1030, num(201)),
	}, nil)

	require.Len(t, groups, 2)
	assert.Equal(t, []int{101}, groups[0].LessonNumbers)
	assert.Equal(t, []int{201}, groups[1].LessonNumbers)
}

func TestGroupLessons_MissingLessonNumberIsOwnFamily(t *testing.T) {
	groups := GroupLessons([]Timetable{
		lesson(1, 20190902, 900, 945, nil),
		lesson(2, 20190902, 945, 1030, nil),
		lesson(3, 20190902, 945, 1030, num(5)),
	}, nil)

	require.Len(t, groups, 2)
	assert.Empty(t, groups[0].LessonNumbers)
	assert.Len(t, groups[0].Timetables, 2)
	assert.Equal(t, []int{5}, groups[1].LessonNumbers)
}

func TestGroupLessons_DatesNeverMerge(t *testing.T) {
	groups := GroupLessons([]Timetable{
		lesson(2, 20190903, 900, 945, num(101)),
		lesson(1, 20190902, 900, 945, num(101)),
	}, nil)

	require.Len(t, groups, 2)
	assert.Equal(t, 20190902, groups[0].Date)
	assert.Equal(t, 20190903, groups[1].Date)
}

func TestGroupLessons_DistinctLessonNumbers(t *testing.T) {
	groups := GroupLessons([]Timetable{
		lesson(1, 20190902, 900, 945, num(101)),
		lesson(2, 20190902, 900, 945, num(101)),
		lesson(3, 20190902, 945, 1030, num(102)),
	}, nil)

	require.Len(t, groups, 1)
	assert.Equal(t, []int{101, 102}, groups[0].LessonNumbers)
	assert.Len(t, groups[0].Timetables, 3)
}

func TestGroupLessons_RegroupingIsIdempotent(t *testing.T) {
	input := []Timetable{
		lesson(1, 20190902, 900, 945, num(101)),
		lesson(2, 20190902, 945, 1015, num(102)),
		lesson(3, 20190902, 1030, 1115, num(103)),
		lesson(4, 20190902, 1300, 1345, num(201)),
		lesson(5, 20190903, 900, 945, nil),
	}

	first := GroupLessons(input, mondayGrid)
	second := GroupLessons(Flatten(first), mondayGrid)

	assert.Equal(t, first, second)
}

func TestGroupLessons_Empty(t *testing.T) {
	assert.Empty(t, GroupLessons(nil, nil))
}
