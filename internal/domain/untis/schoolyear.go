package untis

import "github.com/roosterhub/untis-connector/pkg/untisdate"

// SchoolYear is an academic year with YYYYMMDD bounds.
type SchoolYear struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	StartDate int        `json:"startDate"`
	EndDate   int        `json:"endDate"`
	Semesters []Semester `json:"semesters,omitempty"`
}

// Range returns the school year as a date range.
func (y SchoolYear) Range() DateTimeRange {
	return NewDateTimeRange(untisdate.Date(y.StartDate), untisdate.Date(y.EndDate))
}

type Semester struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	StartDate int    `json:"startDate"`
	EndDate   int    `json:"endDate"`
}

func (s Semester) Range() DateTimeRange {
	return NewDateTimeRange(untisdate.Date(s.StartDate), untisdate.Date(s.EndDate))
}

type Holiday struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	LongName  string `json:"longName"`
	StartDate int    `json:"startDate"`
	EndDate   int    `json:"endDate"`
}

func (h Holiday) Range() DateTimeRange {
	return NewDateTimeRange(untisdate.Date(h.StartDate), untisdate.Date(h.EndDate))
}
