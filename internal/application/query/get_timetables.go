package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET TIMETABLES QUERY
// Fetches the timetable of one element over a date range that may span
// several school years. Class ids are remapped per school year by name.
// ══════════════════════════════════════════════════════════════════════════════

// GetTimetablesQuery selects an element and a date range.
type GetTimetablesQuery struct {
	ElementType untis.ElementType

	// KeyType defaults to untis.KeyID.
	KeyType untis.KeyType

	// ElementID is used with untis.KeyID.
	ElementID int

	// ElementName is used with untis.KeyName and untis.KeyExternalKey.
	ElementName string

	// StartDate and EndDate bound the range, both inclusive, in either order.
	StartDate time.Time
	EndDate   time.Time
}

// Validate checks the query and fills in defaults.
func (q *GetTimetablesQuery) Validate() error {
	if !q.ElementType.IsValid() {
		return fmt.Errorf("unknown element type %d", int(q.ElementType))
	}
	if q.KeyType == "" {
		q.KeyType = untis.KeyID
	}
	if !q.KeyType.IsValid() {
		return fmt.Errorf("unknown key type %q", q.KeyType)
	}
	if q.KeyType == untis.KeyID && q.ElementID <= 0 {
		return fmt.Errorf("element id must be positive, got %d", q.ElementID)
	}
	if q.KeyType != untis.KeyID && q.ElementName == "" {
		return fmt.Errorf("element name is required for key type %q", q.KeyType)
	}
	if q.StartDate.IsZero() || q.EndDate.IsZero() {
		return fmt.Errorf("start and end date are required")
	}
	return nil
}

// remapsClassIDs reports whether ids must be translated per school year.
func (q GetTimetablesQuery) remapsClassIDs() bool {
	return q.ElementType == untis.ElementClass && q.KeyType == untis.KeyID
}

// GetTimetablesResult is the outcome of a GetTimetablesQuery.
type GetTimetablesResult struct {
	// Timetables are ordered by date, then start time.
	Timetables []untis.Timetable

	// ElementIDs lists the initial id followed by every other id that was
	// queried, in first-use order. Empty for name-keyed queries.
	ElementIDs []int

	// Periods are the per-school-year sub-ranges that were queried.
	Periods []untis.DateTimeRange

	// UnresolvedPeriods are sub-ranges for which a class id could not be
	// remapped because zero or several school years contain them. The
	// previous id was used for those.
	UnresolvedPeriods []UnresolvedPeriod
}

// UnresolvedPeriod is a sub-range queried with a carried-over class id.
type UnresolvedPeriod struct {
	untis.DateTimeRange

	// ElementID is the id the sub-range was queried with.
	ElementID int
}

// GetTimetablesHandler runs GetTimetablesQuery.
type GetTimetablesHandler struct {
	reference ReferenceData
	source    TimetableSource
	resolver  *ClassResolver
	log       *logger.Logger
}

// NewGetTimetablesHandler creates a new handler.
func NewGetTimetablesHandler(reference ReferenceData, source TimetableSource, log *logger.Logger) *GetTimetablesHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetTimetablesHandler{
		reference: reference,
		source:    source,
		resolver:  NewClassResolver(reference),
		log:       log.With(logger.Component("get_timetables")),
	}
}

// Handle executes the query. Any failure aborts the whole call.
func (h *GetTimetablesHandler) Handle(ctx context.Context, q GetTimetablesQuery) (*GetTimetablesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetTimetables", shared.ErrValidation, "invalid query", err)
	}

	years, err := h.reference.SchoolYears(ctx)
	if err != nil {
		return nil, fmt.Errorf("list school years: %w", err)
	}

	result := &GetTimetablesResult{
		Periods: untis.SplitPeriods(years, q.StartDate, q.EndDate),
	}

	ids := newIDSet()
	if q.KeyType == untis.KeyID {
		ids.add(q.ElementID)
	}

	currentID := q.ElementID
	for _, period := range result.Periods {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		element := untis.TimetableElement{Type: q.ElementType, Key: q.ElementName, KeyType: q.KeyType}
		if q.KeyType == untis.KeyID {
			if q.remapsClassIDs() {
				remapped, resolved, err := h.remapClassID(ctx, years, currentID, period)
				if err != nil {
					return nil, err
				}
				currentID = remapped
				if !resolved {
					result.UnresolvedPeriods = append(result.UnresolvedPeriods, UnresolvedPeriod{DateTimeRange: period, ElementID: currentID})
				}
			}
			ids.add(currentID)
			element = untis.IDElement(q.ElementType, currentID)
		}

		timetables, err := h.source.ComprehensiveTimetable(ctx, untis.NewComprehensiveRequest(element, period))
		if err != nil {
			return nil, fmt.Errorf("fetch timetable of %s %s for %s: %w", q.ElementType, element.Key, period, err)
		}
		result.Timetables = append(result.Timetables, timetables...)
	}

	sort.SliceStable(result.Timetables, func(i, j int) bool {
		a, b := result.Timetables[i], result.Timetables[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.StartTime < b.StartTime
	})
	result.ElementIDs = ids.values()

	return result, nil
}

// remapClassID translates a class id into the id valid for period. It
// returns the id to use and false when the target school year was ambiguous
// or missing, in which case the id is returned unchanged.
func (h *GetTimetablesHandler) remapClassID(ctx context.Context, years []untis.SchoolYear, id int, period untis.DateTimeRange) (int, bool, error) {
	class, year, err := h.resolver.findClassIn(ctx, years, id)
	if err != nil {
		return id, false, fmt.Errorf("resolve class %d: %w", id, err)
	}
	if class == nil || year.Range().IncludesRange(period) {
		return id, true, nil
	}

	containing := untis.ContainingYears(years, period)
	if len(containing) != 1 {
		h.log.Warn("cannot remap class id: no unique school year contains period",
			logger.ElementID(id),
			logger.Period(period.Start, period.End),
			logger.Int("containing_years", len(containing)),
		)
		return id, false, nil
	}

	target, err := h.resolver.FindClassByNameInYear(ctx, class.Name, containing[0])
	if err != nil {
		return id, false, fmt.Errorf("resolve class %q: %w", class.Name, err)
	}
	if target == nil {
		h.log.Info("class not present in school year, keeping id",
			logger.ElementID(id),
			logger.String("class", class.Name),
			logger.SchoolYearID(containing[0].ID),
		)
		return id, true, nil
	}

	if target.ID != id {
		h.log.Info("remapped class id",
			logger.String("class", class.Name),
			logger.Int("from_id", id),
			logger.Int("to_id", target.ID),
			logger.SchoolYearID(containing[0].ID),
		)
	}
	return target.ID, true, nil
}

type idSet struct {
	seen  map[int]bool
	order []int
}

func newIDSet() *idSet { return &idSet{seen: make(map[int]bool)} }

func (s *idSet) add(id int) {
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.order = append(s.order, id)
}

func (s *idSet) values() []int { return s.order }
