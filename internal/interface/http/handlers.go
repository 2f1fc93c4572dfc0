package http

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roosterhub/untis-connector/internal/application/query"
	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/export"
	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHOOL YEARS
// ══════════════════════════════════════════════════════════════════════════════

// handleSchoolYears handles GET /api/v1/schoolyears?school=...
func (s *Server) handleSchoolYears(c *fiber.Ctx) error {
	years, err := s.deps.Service.SchoolYears(c.UserContext(), c.Query("school"))
	if err != nil {
		return err
	}
	return s.writeJSON(c, years, len(years))
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMETABLES
// ══════════════════════════════════════════════════════════════════════════════

// timetablesResponse is the payload of /api/v1/timetables.
type timetablesResponse struct {
	Timetables        []untis.Timetable      `json:"timetables,omitempty"`
	Groups            []untis.TimetableGroup `json:"groups,omitempty"`
	ElementIDs        []int                  `json:"element_ids,omitempty"`
	UnresolvedPeriods []periodResponse       `json:"unresolved_periods,omitempty"`
}

type periodResponse struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	ElementID int    `json:"element_id"`
}

// handleTimetables handles GET /api/v1/timetables.
//
// Query parameters: school, type, id or name, start, end (YYYY-MM-DD),
// grouped, timegrid and format=ics.
func (s *Server) handleTimetables(c *fiber.Ctx) error {
	q, err := parseTimetablesQuery(c)
	if err != nil {
		return shared.WrapError("http", "GetTimetables", shared.ErrValidation, "invalid parameters", err)
	}

	school := c.Query("school")
	asICS := strings.EqualFold(c.Query("format"), "ics")
	grouped := c.QueryBool("grouped") || asICS

	if !grouped {
		result, err := s.deps.Service.Timetables(c.UserContext(), school, q)
		if err != nil {
			return err
		}
		return s.writeJSON(c, timetablesResponse{
			Timetables:        result.Timetables,
			ElementIDs:        result.ElementIDs,
			UnresolvedPeriods: periods(result.UnresolvedPeriods),
		}, len(result.Timetables))
	}

	result, err := s.deps.Service.TimetableGroups(c.UserContext(), school, query.GetTimetableGroupsQuery{
		GetTimetablesQuery: q,
		UseTimegrid:        c.QueryBool("timegrid"),
	})
	if err != nil {
		return err
	}

	if asICS {
		var buf bytes.Buffer
		name := fmt.Sprintf("%s %s", q.ElementType, elementLabel(q))
		if err := export.WriteICS(&buf, result.Groups, s.config.Location, export.WithCalendarName(name)); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
		return c.Status(fiber.StatusOK).Send(buf.Bytes())
	}

	return s.writeJSON(c, timetablesResponse{
		Groups:            result.Groups,
		ElementIDs:        result.ElementIDs,
		UnresolvedPeriods: periods(result.UnresolvedPeriods),
	}, len(result.Groups))
}

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE
// ══════════════════════════════════════════════════════════════════════════════

type archiveResponse struct {
	School    string                 `json:"school"`
	Type      string                 `json:"type"`
	ElementID int                    `json:"element_id"`
	Groups    []untis.TimetableGroup `json:"groups"`
	LastRun   *time.Time             `json:"last_run,omitempty"`
}

// handleArchive handles GET /api/v1/archive with the parameters of
// /api/v1/timetables. Elements are addressed by id only.
func (s *Server) handleArchive(c *fiber.Ctx) error {
	if s.deps.Archive == nil {
		return fiber.NewError(fiber.StatusNotFound, "archive database is not configured")
	}

	q, err := parseTimetablesQuery(c)
	if err == nil && q.KeyType != untis.KeyID {
		err = fmt.Errorf("the archive is addressed by id")
	}
	if err != nil {
		return shared.WrapError("http", "GetArchive", shared.ErrValidation, "invalid parameters", err)
	}

	archived, err := s.deps.Archive.Timetable(c.UserContext(), c.Query("school"), q.ElementType, q.ElementID,
		untis.NewDateTimeRange(q.StartDate, q.EndDate))
	if err != nil {
		return err
	}

	resp := archiveResponse{
		School:    archived.Key.School,
		Type:      archived.Key.ElementType.String(),
		ElementID: archived.Key.ElementID,
		Groups:    archived.Groups,
	}
	if !archived.LastRun.IsZero() {
		resp.LastRun = &archived.LastRun
	}
	return s.writeJSON(c, resp, len(archived.Groups))
}

func parseTimetablesQuery(c *fiber.Ctx) (query.GetTimetablesQuery, error) {
	var q query.GetTimetablesQuery

	elementType, err := untis.ParseElementType(c.Query("type"))
	if err != nil {
		return q, err
	}
	q.ElementType = elementType

	switch id, name := c.Query("id"), c.Query("name"); {
	case id != "" && name != "":
		return q, fmt.Errorf("id and name are mutually exclusive")
	case id != "":
		n, err := strconv.Atoi(id)
		if err != nil {
			return q, fmt.Errorf("id must be a number, got %q", id)
		}
		q.KeyType = untis.KeyID
		q.ElementID = n
	case name != "":
		q.KeyType = untis.KeyName
		q.ElementName = name
	default:
		return q, fmt.Errorf("id or name is required")
	}

	if q.StartDate, err = parseDate(c, "start"); err != nil {
		return q, err
	}
	if q.EndDate, err = parseDate(c, "end"); err != nil {
		return q, err
	}
	return q, nil
}

func parseDate(c *fiber.Ctx, key string) (time.Time, error) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	t, err := untisdate.ParseISODate(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func periods(unresolved []query.UnresolvedPeriod) []periodResponse {
	out := make([]periodResponse, len(unresolved))
	for i, p := range unresolved {
		out[i] = periodResponse{
			Start:     untisdate.FormatISODate(p.Start),
			End:       untisdate.FormatISODate(p.End),
			ElementID: p.ElementID,
		}
	}
	return out
}

func elementLabel(q query.GetTimetablesQuery) string {
	if q.KeyType == untis.KeyID {
		return strconv.Itoa(q.ElementID)
	}
	return q.ElementName
}
