package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
)

// ClassResolver locates classes across school years. Class ids are only
// valid within one school year, while class names usually carry over.
type ClassResolver struct {
	reference ReferenceData
}

// NewClassResolver creates a resolver over the given reference data.
func NewClassResolver(reference ReferenceData) *ClassResolver {
	return &ClassResolver{reference: reference}
}

// FindClassAcrossYears scans the school years from oldest to newest and
// returns the first class with the given id together with its year. Both
// results are nil when no year knows the id.
func (r *ClassResolver) FindClassAcrossYears(ctx context.Context, id int) (*untis.Class, *untis.SchoolYear, error) {
	years, err := r.reference.SchoolYears(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list school years: %w", err)
	}
	return r.findClassIn(ctx, years, id)
}

func (r *ClassResolver) findClassIn(ctx context.Context, years []untis.SchoolYear, id int) (*untis.Class, *untis.SchoolYear, error) {
	ordered := make([]untis.SchoolYear, len(years))
	copy(ordered, years)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartDate < ordered[j].StartDate
	})

	for i := range ordered {
		year := ordered[i]
		classes, err := r.reference.Classes(ctx, year.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("list classes of school year %d: %w", year.ID, err)
		}
		for j := range classes {
			if classes[j].ID == id {
				class := classes[j]
				return &class, &year, nil
			}
		}
	}
	return nil, nil, nil
}

// FindClassByNameInYear returns the first class of the year whose name
// equals name under Unicode simple case folding, or nil.
func (r *ClassResolver) FindClassByNameInYear(ctx context.Context, name string, year untis.SchoolYear) (*untis.Class, error) {
	classes, err := r.reference.Classes(ctx, year.ID)
	if err != nil {
		return nil, fmt.Errorf("list classes of school year %d: %w", year.ID, err)
	}
	for i := range classes {
		if strings.EqualFold(classes[i].Name, name) {
			class := classes[i]
			return &class, nil
		}
	}
	return nil, nil
}
