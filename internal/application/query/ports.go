// Package query contains the read operations built on top of the WebUntis
// API: class resolution across school years, timetable retrieval over
// arbitrary date ranges and lesson grouping.
package query

import (
	"context"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
)

// ReferenceData provides the school years and the classes of a school year.
type ReferenceData interface {
	SchoolYears(ctx context.Context) ([]untis.SchoolYear, error)
	Classes(ctx context.Context, schoolYearID int) ([]untis.Class, error)
}

// TimetableSource executes comprehensive timetable queries.
type TimetableSource interface {
	ComprehensiveTimetable(ctx context.Context, req untis.TimetableRequest) ([]untis.Timetable, error)
}

// TimegridSource provides the weekly timegrid.
type TimegridSource interface {
	Timegrids(ctx context.Context) ([]untis.TimegridUnits, error)
}
