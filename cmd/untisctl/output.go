package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

var (
	titleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true).Padding(1, 0)
	dayStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	cancelledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Strikethrough(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

func typeTitle(t untis.ElementType) string {
	return cases.Title(language.English).String(t.String())
}

func formatDate(yyyymmdd int) string {
	d := untisdate.Date(yyyymmdd)
	return fmt.Sprintf("%s %s", d.Weekday().String()[:3], untisdate.FormatISODate(d))
}

func formatRange(start, end int) string {
	return timeStyle.Render(untisdate.FormatClock(start) + "-" + untisdate.FormatClock(end))
}

// lessonLine renders the subjects, teachers and rooms of one lesson.
func lessonLine(t untis.Timetable) string {
	subjects := make([]string, 0, len(t.Subjects))
	for _, s := range t.Subjects {
		subjects = append(subjects, s.Name)
	}
	teachers := make([]string, 0, len(t.Teachers))
	for _, te := range t.Teachers {
		teachers = append(teachers, te.Name)
	}
	rooms := make([]string, 0, len(t.Rooms))
	for _, r := range t.Rooms {
		rooms = append(rooms, r.Name)
	}

	line := strings.Join(subjects, "/")
	if line == "" {
		line = t.LessonText
	}
	if line == "" {
		line = "?"
	}
	if len(teachers) > 0 {
		line += " " + dimStyle.Render(strings.Join(teachers, ", "))
	}
	if len(rooms) > 0 {
		line += " @ " + strings.Join(rooms, ", ")
	}
	if t.IsCancelled() {
		line = cancelledStyle.Render(line) + " " + warnStyle.Render("[cancelled]")
	}
	return line
}

func noteLine(t untis.Timetable) string {
	var notes []string
	for _, s := range []string{t.SubstitutionText, t.Info} {
		if s != "" {
			notes = append(notes, s)
		}
	}
	return strings.Join(notes, " | ")
}
