package query

import (
	"context"
	"fmt"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
)

// GetTimetableGroupsQuery fetches a timetable and groups it into lesson blocks.
type GetTimetableGroupsQuery struct {
	GetTimetablesQuery

	// UseTimegrid lets lessons in consecutive timegrid slots merge across breaks.
	UseTimegrid bool
}

// GetTimetableGroupsResult carries the groups and the underlying fetch result.
type GetTimetableGroupsResult struct {
	*GetTimetablesResult
	Groups []untis.TimetableGroup
}

// GetTimetableGroupsHandler runs GetTimetableGroupsQuery.
type GetTimetableGroupsHandler struct {
	timetables *GetTimetablesHandler
	timegrids  TimegridSource
}

// NewGetTimetableGroupsHandler creates a new handler. timegrids may be nil
// when UseTimegrid is never requested.
func NewGetTimetableGroupsHandler(timetables *GetTimetablesHandler, timegrids TimegridSource) *GetTimetableGroupsHandler {
	return &GetTimetableGroupsHandler{timetables: timetables, timegrids: timegrids}
}

// Handle executes the query.
func (h *GetTimetableGroupsHandler) Handle(ctx context.Context, q GetTimetableGroupsQuery) (*GetTimetableGroupsResult, error) {
	fetched, err := h.timetables.Handle(ctx, q.GetTimetablesQuery)
	if err != nil {
		return nil, err
	}

	var grid []untis.TimegridUnits
	if q.UseTimegrid && h.timegrids != nil {
		grid, err = h.timegrids.Timegrids(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch timegrid: %w", err)
		}
	}

	return &GetTimetableGroupsResult{
		GetTimetablesResult: fetched,
		Groups:              untis.GroupLessons(fetched.Timetables, grid),
	}, nil
}
