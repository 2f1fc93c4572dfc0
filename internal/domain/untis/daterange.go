package untis

import (
	"fmt"
	"time"
)

// DateTimeRange is a closed interval [Start, End]. Start never lies after End.
type DateTimeRange struct {
	Start time.Time
	End   time.Time
}

// NewDateTimeRange builds a range from two points in either order.
func NewDateTimeRange(a, b time.Time) DateTimeRange {
	if b.Before(a) {
		a, b = b, a
	}
	return DateTimeRange{Start: a, End: b}
}

// Includes reports whether t lies within the range, endpoints included.
func (r DateTimeRange) Includes(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// IncludesRange reports whether o lies entirely within r.
func (r DateTimeRange) IncludesRange(o DateTimeRange) bool {
	return !o.Start.Before(r.Start) && !o.End.After(r.End)
}

// Overlaps reports whether r and o share at least one point. Ranges that
// only touch at an endpoint overlap.
func (r DateTimeRange) Overlaps(o DateTimeRange) bool {
	return !r.Start.After(o.End) && !r.End.Before(o.Start)
}

// Duration returns End - Start.
func (r DateTimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Equal compares both endpoints with time.Time.Equal.
func (r DateTimeRange) Equal(o DateTimeRange) bool {
	return r.Start.Equal(o.Start) && r.End.Equal(o.End)
}

func (r DateTimeRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
