// Package untisdate converts between the WebUntis wire formats and time.Time.
//
// WebUntis encodes dates as YYYYMMDD integers and clock times as HHMM
// integers. Dates are represented here as midnight UTC so that calendar
// arithmetic never crosses a DST boundary; callers attach a real location
// only when they build an instant with DateTime.
package untisdate

import (
	"fmt"
	"time"
)

// ISODateLayout is the layout accepted by ParseISODate.
const ISODateLayout = "2006-01-02"

// Date converts a YYYYMMDD integer to midnight UTC. Out-of-range parts are
// normalized by time.Date; use ParseDate to reject them instead.
func Date(v int) time.Time {
	return time.Date(v/10000, time.Month((v/100)%100), v%100, 0, 0, 0, 0, time.UTC)
}

// ParseDate converts a YYYYMMDD integer and rejects impossible dates.
func ParseDate(v int) (time.Time, error) {
	t := Date(v)
	if v <= 0 || FromDate(t) != v {
		return time.Time{}, fmt.Errorf("untisdate: invalid date %d", v)
	}
	return t, nil
}

// FromDate converts the calendar date of t to a YYYYMMDD integer.
func FromDate(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// Clock splits an HHMM integer into hour and minute.
func Clock(hhmm int) (hour, minute int) {
	return hhmm / 100, hhmm % 100
}

// FormatClock renders an HHMM integer as "HH:MM".
func FormatClock(hhmm int) string {
	h, m := Clock(hhmm)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// DateTime combines a YYYYMMDD date and an HHMM time into an instant in loc.
func DateTime(date, hhmm int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	h, m := Clock(hhmm)
	return time.Date(date/10000, time.Month((date/100)%100), date%100, h, m, 0, 0, loc)
}

// ParseISODate parses "YYYY-MM-DD" into midnight UTC.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ISODateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("untisdate: parse %q: %w", s, err)
	}
	return t, nil
}

// FormatISODate renders the calendar date of t as "YYYY-MM-DD".
func FormatISODate(t time.Time) string {
	return t.Format(ISODateLayout)
}

// StartOfDay truncates t to midnight UTC of its calendar date.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ISOWeek returns the ISO-8601 week number of t.
func ISOWeek(t time.Time) int {
	_, week := t.ISOWeek()
	return week
}

// FirstWeekday returns the Monday of the week t falls in. A Sunday maps to
// the Monday that follows it, matching the WebUntis week view.
func FirstWeekday(t time.Time) time.Time {
	return t.AddDate(0, 0, -(int(t.Weekday()) - int(time.Monday)))
}

// LastWeekday returns the Friday of the week t falls in.
func LastWeekday(t time.Time) time.Time {
	return FirstWeekday(t).AddDate(0, 0, int(time.Friday-time.Monday))
}

// FirstWeekdayOfWeek returns the Monday of ISO week `week` in `year`.
func FirstWeekdayOfWeek(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := (int(jan4.Weekday()) + 6) % 7
	return jan4.AddDate(0, 0, -offset+(week-1)*7)
}
