package untis

import (
	"strconv"
	"time"

	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

// Timetable is a single lesson record as returned by getTimetable.
// Date is YYYYMMDD, StartTime and EndTime are HHMM.
type Timetable struct {
	ID               int       `json:"id"`
	Date             int       `json:"date"`
	StartTime        int       `json:"startTime"`
	EndTime          int       `json:"endTime"`
	Classes          []Class   `json:"kl,omitempty"`
	Teachers         []Teacher `json:"te,omitempty"`
	Subjects         []Subject `json:"su,omitempty"`
	Rooms            []Room    `json:"ro,omitempty"`
	StudentGroup     string    `json:"sg,omitempty"`
	Info             string    `json:"info,omitempty"`
	Code             string    `json:"code,omitempty"`
	LessonType       string    `json:"lstype,omitempty"`
	LessonNumber     *int      `json:"lsnumber,omitempty"`
	LessonText       string    `json:"lstext,omitempty"`
	SubstitutionText string    `json:"substText,omitempty"`
	BookingRemark    string    `json:"bkRemark,omitempty"`
	BookingText      string    `json:"bkText,omitempty"`
	StatFlags        string    `json:"statflags,omitempty"`
	ActivityType     string    `json:"activityType,omitempty"`
}

// Start returns the lesson start as an instant in loc.
func (t Timetable) Start(loc *time.Location) time.Time {
	return untisdate.DateTime(t.Date, t.StartTime, loc)
}

// End returns the lesson end as an instant in loc.
func (t Timetable) End(loc *time.Location) time.Time {
	return untisdate.DateTime(t.Date, t.EndTime, loc)
}

// IsCancelled reports whether WebUntis flagged the lesson as cancelled.
func (t Timetable) IsCancelled() bool { return t.Code == "cancelled" }

// TimeUnit is one slot of a timegrid day.
type TimeUnit struct {
	Name      string `json:"name"`
	StartTime int    `json:"startTime"`
	EndTime   int    `json:"endTime"`
}

// TimegridUnits is the slot layout of one weekday. Day runs from
// 1 (Sunday) to 7 (Saturday).
type TimegridUnits struct {
	Day       int        `json:"day"`
	TimeUnits []TimeUnit `json:"timeUnits"`
}

// Weekday converts Day to a time.Weekday.
func (g TimegridUnits) Weekday() time.Weekday {
	return time.Weekday(g.Day - 1)
}

// TimetableGroup is a run of adjacent lessons of one period family.
type TimetableGroup struct {
	Date          int         `json:"date"`
	StartTime     int         `json:"startTime"`
	EndTime       int         `json:"endTime"`
	LessonNumbers []int       `json:"lsnumbers"`
	Timetables    []Timetable `json:"timetables"`
}

func (g TimetableGroup) Start(loc *time.Location) time.Time {
	return untisdate.DateTime(g.Date, g.StartTime, loc)
}

func (g TimetableGroup) End(loc *time.Location) time.Time {
	return untisdate.DateTime(g.Date, g.EndTime, loc)
}

// TimetableElement addresses the element of a comprehensive timetable query.
type TimetableElement struct {
	Type    ElementType
	Key     string
	KeyType KeyType
}

// TimetableRequest holds the options of a comprehensive getTimetable call.
type TimetableRequest struct {
	Element           TimetableElement
	StartDate         int
	EndDate           int
	OnlyBaseTimetable bool
	ShowBooking       bool
	ShowInfo          bool
	ShowSubstText     bool
	ShowLsText        bool
	ShowLsNumber      bool
	ShowStudentGroup  bool
	ClassFields       []ElementField
	RoomFields        []ElementField
	SubjectFields     []ElementField
	TeacherFields     []ElementField
}

// DefaultElementFields is the projection requested for all element lists.
func DefaultElementFields() []ElementField {
	return []ElementField{FieldID, FieldName, FieldLongName}
}

// NewComprehensiveRequest builds the request used for timetable retrieval:
// every show flag enabled, the full timetable rather than the base one,
// and id/name/longname projections for classes, teachers, rooms and subjects.
func NewComprehensiveRequest(element TimetableElement, period DateTimeRange) TimetableRequest {
	return TimetableRequest{
		Element:           element,
		StartDate:         untisdate.FromDate(period.Start),
		EndDate:           untisdate.FromDate(period.End),
		OnlyBaseTimetable: false,
		ShowBooking:       true,
		ShowInfo:          true,
		ShowSubstText:     true,
		ShowLsText:        true,
		ShowLsNumber:      true,
		ShowStudentGroup:  true,
		ClassFields:       DefaultElementFields(),
		RoomFields:        DefaultElementFields(),
		SubjectFields:     DefaultElementFields(),
		TeacherFields:     DefaultElementFields(),
	}
}

// IDElement addresses an element by numeric id.
func IDElement(t ElementType, id int) TimetableElement {
	return TimetableElement{Type: t, Key: strconv.Itoa(id), KeyType: KeyID}
}
