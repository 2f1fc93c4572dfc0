// Package export renders timetable groups into calendar formats.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
)

type icsOptions struct {
	name      string
	uidDomain string
	now       func() time.Time
}

// Option customizes WriteICS.
type Option func(*icsOptions)

// WithCalendarName sets X-WR-CALNAME.
func WithCalendarName(name string) Option {
	return func(o *icsOptions) { o.name = name }
}

// WithUIDDomain sets the host part of event UIDs.
func WithUIDDomain(domain string) Option {
	return func(o *icsOptions) { o.uidDomain = domain }
}

// WithNow fixes the DTSTAMP clock.
func WithNow(now func() time.Time) Option {
	return func(o *icsOptions) { o.now = now }
}

// WriteICS writes one VEVENT per group. Dates and times are interpreted in
// loc. A group whose lessons are all cancelled gets STATUS:CANCELLED.
func WriteICS(w io.Writer, groups []untis.TimetableGroup, loc *time.Location, opts ...Option) error {
	o := icsOptions{uidDomain: "untis-connector", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if loc == nil {
		loc = time.UTC
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//roosterhub//untis-connector//EN")
	if o.name != "" {
		cal.SetXWRCalName(o.name)
	}

	stamp := o.now()
	for _, g := range groups {
		event := cal.AddEvent(eventUID(g, o.uidDomain))
		event.SetDtStampTime(stamp)
		event.SetStartAt(g.Start(loc))
		event.SetEndAt(g.End(loc))
		event.SetSummary(summary(g))
		if rooms := names(g, func(t untis.Timetable) []string { return roomNames(t.Rooms) }); rooms != "" {
			event.SetLocation(rooms)
		}
		if desc := description(g); desc != "" {
			event.SetDescription(desc)
		}
		if allCancelled(g) {
			event.SetStatus(ics.ObjectStatusCancelled)
		}
	}

	if err := cal.SerializeTo(w); err != nil {
		return fmt.Errorf("write ics: %w", err)
	}
	return nil
}

func eventUID(g untis.TimetableGroup, domain string) string {
	parts := make([]string, len(g.LessonNumbers))
	for i, n := range g.LessonNumbers {
		parts[i] = strconv.Itoa(n)
	}
	ids := make([]string, len(g.Timetables))
	for i, t := range g.Timetables {
		ids[i] = strconv.Itoa(t.ID)
	}
	return fmt.Sprintf("%d-%04d-%s-%s@%s", g.Date, g.StartTime, strings.Join(parts, "."), strings.Join(ids, "."), domain)
}

func summary(g untis.TimetableGroup) string {
	s := names(g, func(t untis.Timetable) []string { return subjectNames(t.Subjects) })
	if s == "" {
		for _, t := range g.Timetables {
			if t.LessonText != "" {
				return t.LessonText
			}
		}
		return "Lesson"
	}
	return s
}

func description(g untis.TimetableGroup) string {
	var lines []string
	if v := names(g, func(t untis.Timetable) []string { return teacherNames(t.Teachers) }); v != "" {
		lines = append(lines, "Teachers: "+v)
	}
	if v := names(g, func(t untis.Timetable) []string { return classNames(t.Classes) }); v != "" {
		lines = append(lines, "Classes: "+v)
	}
	for _, t := range g.Timetables {
		for _, text := range []string{t.LessonText, t.SubstitutionText, t.Info} {
			if text != "" && !contains(lines, text) {
				lines = append(lines, text)
			}
		}
	}
	return strings.Join(lines, "\n")
}

// names collects distinct values over all lessons of g in first-seen order.
func names(g untis.TimetableGroup, pick func(untis.Timetable) []string) string {
	var out []string
	for _, t := range g.Timetables {
		for _, n := range pick(t) {
			if n != "" && !contains(out, n) {
				out = append(out, n)
			}
		}
	}
	return strings.Join(out, " / ")
}

func subjectNames(v []untis.Subject) []string {
	out := make([]string, len(v))
	for i, s := range v {
		out[i] = displayName(s.Element)
	}
	return out
}

func roomNames(v []untis.Room) []string {
	out := make([]string, len(v))
	for i, r := range v {
		out[i] = r.Name
	}
	return out
}

func teacherNames(v []untis.Teacher) []string {
	out := make([]string, len(v))
	for i, t := range v {
		out[i] = t.Name
	}
	return out
}

func classNames(v []untis.Class) []string {
	out := make([]string, len(v))
	for i, c := range v {
		out[i] = c.Name
	}
	return out
}

func displayName(e untis.Element) string {
	if e.LongName != "" {
		return e.LongName
	}
	return e.Name
}

func allCancelled(g untis.TimetableGroup) bool {
	if len(g.Timetables) == 0 {
		return false
	}
	for _, t := range g.Timetables {
		if !t.IsCancelled() {
			return false
		}
	}
	return true
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
