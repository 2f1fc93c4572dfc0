package webuntis

import "github.com/roosterhub/untis-connector/internal/domain/untis"

// RPC method names.
const (
	methodAuthenticate      = "authenticate"
	methodLogout            = "logout"
	methodLatestImportTime  = "getLatestImportTime"
	methodDepartments       = "getDepartments"
	methodTeachers          = "getTeachers"
	methodStudents          = "getStudents"
	methodClasses           = "getKlassen"
	methodRooms             = "getRooms"
	methodSubjects          = "getSubjects"
	methodHolidays          = "getHolidays"
	methodSchoolYears       = "getSchoolyears"
	methodCurrentSchoolYear = "getCurrentSchoolyear"
	methodTimegridUnits     = "getTimegridUnits"
	methodTimetable         = "getTimetable"
)

type authenticateParams struct {
	User     string `json:"user"`
	Password string `json:"password"`
	Client   string `json:"client"`
}

// AuthenticateResult is the answer to authenticate.
type AuthenticateResult struct {
	SessionID  string `json:"sessionId"`
	PersonType int    `json:"personType"`
	PersonID   int    `json:"personId"`
}

type classParams struct {
	SchoolYearID int `json:"schoolyearId"`
}

// TimetableParams are the parameters of the simple getTimetable form.
// Dates are YYYYMMDD.
type TimetableParams struct {
	ID        int               `json:"id"`
	Type      untis.ElementType `json:"type"`
	StartDate int               `json:"startDate"`
	EndDate   int               `json:"endDate"`
}

type comprehensiveParams struct {
	Options comprehensiveOptions `json:"options"`
}

type comprehensiveOptions struct {
	Element           comprehensiveElement `json:"element"`
	StartDate         int                  `json:"startDate"`
	EndDate           int                  `json:"endDate"`
	OnlyBaseTimetable bool                 `json:"onlyBaseTimetable"`
	ShowBooking       bool                 `json:"showBooking"`
	ShowInfo          bool                 `json:"showInfo"`
	ShowSubstText     bool                 `json:"showSubstText"`
	ShowLsText        bool                 `json:"showLsText"`
	ShowLsNumber      bool                 `json:"showLsNumber"`
	ShowStudentgroup  bool                 `json:"showStudentgroup"`
	KlasseFields      []untis.ElementField `json:"klasseFields"`
	RoomFields        []untis.ElementField `json:"roomFields"`
	SubjectFields     []untis.ElementField `json:"subjectFields"`
	TeacherFields     []untis.ElementField `json:"teacherFields"`
}

// comprehensiveElement carries the key as a string even for numeric ids.
type comprehensiveElement struct {
	ID      string            `json:"id"`
	Type    untis.ElementType `json:"type"`
	KeyType untis.KeyType     `json:"keyType"`
}

func toComprehensiveParams(req untis.TimetableRequest) comprehensiveParams {
	keyType := req.Element.KeyType
	if keyType == "" {
		keyType = untis.KeyID
	}
	return comprehensiveParams{Options: comprehensiveOptions{
		Element: comprehensiveElement{
			ID:      req.Element.Key,
			Type:    req.Element.Type,
			KeyType: keyType,
		},
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		OnlyBaseTimetable: req.OnlyBaseTimetable,
		ShowBooking:       req.ShowBooking,
		ShowInfo:          req.ShowInfo,
		ShowSubstText:     req.ShowSubstText,
		ShowLsText:        req.ShowLsText,
		ShowLsNumber:      req.ShowLsNumber,
		ShowStudentgroup:  req.ShowStudentGroup,
		KlasseFields:      nonNilFields(req.ClassFields),
		RoomFields:        nonNilFields(req.RoomFields),
		SubjectFields:     nonNilFields(req.SubjectFields),
		TeacherFields:     nonNilFields(req.TeacherFields),
	}}
}

// nonNilFields keeps empty projections encoded as [] rather than null.
func nonNilFields(fields []untis.ElementField) []untis.ElementField {
	if fields == nil {
		return []untis.ElementField{}
	}
	return fields
}

func elementLabel(e untis.TimetableElement) string {
	if e.KeyType == untis.KeyID || e.KeyType == "" {
		return e.Type.String() + ":" + e.Key
	}
	return e.Type.String() + ":" + string(e.KeyType) + "=" + e.Key
}
