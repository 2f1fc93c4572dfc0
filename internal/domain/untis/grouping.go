package untis

import (
	"sort"

	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

// familyKey identifies a period family: the lesson number divided by 100.
// Lessons without a lesson number form a family of their own.
type familyKey struct {
	numbered bool
	family   int
}

func familyOf(t Timetable) familyKey {
	if t.LessonNumber == nil {
		return familyKey{}
	}
	return familyKey{numbered: true, family: *t.LessonNumber / 100}
}

// GroupLessons merges lessons into contiguous blocks.
//
// Lessons are partitioned by date and then by period family. Within a
// family, lessons sorted by start time join the current block while the
// previous lesson ends at or after the next one starts. When timegrids are
// given, a lesson also joins when its slot immediately follows the previous
// lesson's slot in that weekday's grid, which bridges breaks between
// consecutive periods. The result is ordered by date and start time.
func GroupLessons(timetables []Timetable, timegrids []TimegridUnits) []TimetableGroup {
	var groups []TimetableGroup

	for _, day := range partitionByDate(timetables) {
		for _, family := range partitionByFamily(day) {
			sort.SliceStable(family, func(i, j int) bool {
				return family[i].StartTime < family[j].StartTime
			})

			var run []Timetable
			for _, lesson := range family {
				if len(run) > 0 && !adjacent(run[len(run)-1], lesson, timegrids) {
					groups = append(groups, newGroup(run))
					run = nil
				}
				run = append(run, lesson)
			}
			if len(run) > 0 {
				groups = append(groups, newGroup(run))
			}
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Date != groups[j].Date {
			return groups[i].Date < groups[j].Date
		}
		return groups[i].StartTime < groups[j].StartTime
	})
	return groups
}

// Flatten returns the lessons of all groups in group order.
func Flatten(groups []TimetableGroup) []Timetable {
	var out []Timetable
	for _, g := range groups {
		out = append(out, g.Timetables...)
	}
	return out
}

func partitionByDate(timetables []Timetable) [][]Timetable {
	index := make(map[int]int)
	var parts [][]Timetable
	for _, t := range timetables {
		i, ok := index[t.Date]
		if !ok {
			i = len(parts)
			index[t.Date] = i
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], t)
	}
	return parts
}

func partitionByFamily(timetables []Timetable) [][]Timetable {
	index := make(map[familyKey]int)
	var parts [][]Timetable
	for _, t := range timetables {
		key := familyOf(t)
		i, ok := index[key]
		if !ok {
			i = len(parts)
			index[key] = i
			parts = append(parts, nil)
		}
		parts[i] = append(parts[i], t)
	}
	return parts
}

func adjacent(first, second Timetable, timegrids []TimegridUnits) bool {
	if first.EndTime >= second.StartTime {
		return true
	}

	grid, ok := gridFor(first, timegrids)
	if !ok {
		return false
	}

	units := make([]TimeUnit, len(grid.TimeUnits))
	copy(units, grid.TimeUnits)
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].StartTime < units[j].StartTime
	})

	located := false
	for _, unit := range units {
		if located {
			if second.StartTime == unit.StartTime && second.EndTime == unit.EndTime {
				return true
			}
			located = false
		}
		if first.StartTime == unit.StartTime && first.EndTime == unit.EndTime {
			located = true
		}
	}
	return false
}

// gridFor returns the first timegrid whose weekday matches the lesson date.
func gridFor(t Timetable, timegrids []TimegridUnits) (TimegridUnits, bool) {
	weekday := untisdate.Date(t.Date).Weekday()
	for _, g := range timegrids {
		if g.Weekday() == weekday {
			return g, true
		}
	}
	return TimegridUnits{}, false
}

func newGroup(run []Timetable) TimetableGroup {
	lessons := make([]Timetable, len(run))
	copy(lessons, run)

	seen := make(map[int]bool)
	numbers := []int{}
	for _, t := range lessons {
		if t.LessonNumber == nil || seen[*t.LessonNumber] {
			continue
		}
		seen[*t.LessonNumber] = true
		numbers = append(numbers, *t.LessonNumber)
	}

	return TimetableGroup{
		Date:          lessons[0].Date,
		StartTime:     lessons[0].StartTime,
		EndTime:       lessons[len(lessons)-1].EndTime,
		LessonNumbers: numbers,
		Timetables:    lessons,
	}
}
