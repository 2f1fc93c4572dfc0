package untis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameElement_ComparesKindAndID(t *testing.T) {
	class := Class{Element: Element{ID: 42, Name: "H1A"}}
	renamed := Class{Element: Element{ID: 42, Name: "H1B"}}
	teacher := Teacher{Element: Element{ID: 42}}

	assert.True(t, SameElement(class, renamed))
	assert.False(t, SameElement(class, teacher))
	assert.Equal(t, "class with id 42", class.Ref().String())
}

func TestParseElementType(t *testing.T) {
	for in, want := range map[string]ElementType{
		"class": ElementClass, "Klasse": ElementClass, "teacher": ElementTeacher,
		"3": ElementSubject, "room": ElementRoom, "student": ElementStudent,
	} {
		got, err := ParseElementType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseElementType("building")
	assert.Error(t, err)
	assert.False(t, ElementType(9).IsValid())
}

func TestTimetable_DecodesWireRecord(t *testing.T) {
	raw := `{
		"id": 1, "date": 20190902, "startTime": 900, "endTime": 945,
		"kl": [{"id": 42, "name": "H1A", "longname": "Class H1A"}],
		"te": [{"id": 7, "name": "ABC"}],
		"su": [{"id": 3, "name": "MATH"}],
		"ro": [{"id": 9, "name": "H.4.312"}],
		"lsnumber": 101, "lstext": "week 1", "code": "cancelled"
	}`

	var tt Timetable
	require.NoError(t, json.Unmarshal([]byte(raw), &tt))

	assert.Equal(t, 101, *tt.LessonNumber)
	assert.Equal(t, "Class H1A", tt.Classes[0].LongName)
	assert.Equal(t, "H.4.312", tt.Rooms[0].Name)
	assert.True(t, tt.IsCancelled())
}

func TestClass_DecodesOptionalReferences(t *testing.T) {
	var c Class
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"name":"H1A","did":3,"teacher1":7,"active":true}`), &c))

	require.NotNil(t, c.DepartmentID)
	assert.Equal(t, 3, *c.DepartmentID)
	assert.Equal(t, 7, *c.Teacher1ID)
	assert.Nil(t, c.Teacher2ID)
	assert.True(t, *c.Active)
}

func TestNewComprehensiveRequest(t *testing.T) {
	req := NewComprehensiveRequest(IDElement(ElementClass, 87), NewDateTimeRange(d(20200831), d(20200915)))

	assert.Equal(t, "87", req.Element.Key)
	assert.Equal(t, KeyID, req.Element.KeyType)
	assert.Equal(t, 20200831, req.StartDate)
	assert.Equal(t, 20200915, req.EndDate)
	assert.False(t, req.OnlyBaseTimetable)
	assert.True(t, req.ShowLsNumber && req.ShowLsText && req.ShowBooking && req.ShowInfo && req.ShowStudentGroup && req.ShowSubstText)
	assert.Equal(t, []ElementField{FieldID, FieldName, FieldLongName}, req.TeacherFields)
}
