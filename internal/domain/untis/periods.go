package untis

import (
	"sort"
	"time"
)

// SplitPeriods cuts [start, end] into one sub-range per school year it
// overlaps, clipped to the year's bounds. Sub-ranges come back in
// chronological order of the years. Parts of the range that fall outside
// every school year are dropped.
func SplitPeriods(years []SchoolYear, start, end time.Time) []DateTimeRange {
	query := NewDateTimeRange(start, end)

	sorted := make([]SchoolYear, len(years))
	copy(sorted, years)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartDate < sorted[j].StartDate
	})

	periods := make([]DateTimeRange, 0, len(sorted))
	for _, year := range sorted {
		yr := year.Range()
		if !yr.Overlaps(query) {
			continue
		}
		periods = append(periods, DateTimeRange{
			Start: latest(yr.Start, query.Start),
			End:   earliest(yr.End, query.End),
		})
	}
	return periods
}

// ContainingYears returns every school year whose range includes period.
func ContainingYears(years []SchoolYear, period DateTimeRange) []SchoolYear {
	var out []SchoolYear
	for _, y := range years {
		if y.Range().IncludesRange(period) {
			out = append(out, y)
		}
	}
	return out
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
