package query

import (
	"context"
	"strconv"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
)

type fakeWebUntis struct {
	years     []untis.SchoolYear
	classes   map[int][]untis.Class
	lessons   map[string][]untis.Timetable // keyed by element key
	timegrids []untis.TimegridUnits

	yearsErr     error
	classesErr   error
	timetableErr error
	failOnCall   int // 1-based call that fails with timetableErr, 0 fails every call

	classCalls []int
	requests   []untis.TimetableRequest
}

func (f *fakeWebUntis) SchoolYears(ctx context.Context) ([]untis.SchoolYear, error) {
	if f.yearsErr != nil {
		return nil, f.yearsErr
	}
	return f.years, nil
}

func (f *fakeWebUntis) Classes(ctx context.Context, schoolYearID int) ([]untis.Class, error) {
	f.classCalls = append(f.classCalls, schoolYearID)
	if f.classesErr != nil {
		return nil, f.classesErr
	}
	return f.classes[schoolYearID], nil
}

func (f *fakeWebUntis) ComprehensiveTimetable(ctx context.Context, req untis.TimetableRequest) ([]untis.Timetable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	if f.timetableErr != nil && (f.failOnCall == 0 || len(f.requests) == f.failOnCall) {
		return nil, f.timetableErr
	}

	var out []untis.Timetable
	for _, l := range f.lessons[req.Element.Key] {
		if l.Date >= req.StartDate && l.Date <= req.EndDate {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeWebUntis) Timegrids(ctx context.Context) ([]untis.TimegridUnits, error) {
	return f.timegrids, nil
}

func class(id int, name string) untis.Class {
	return untis.Class{Element: untis.Element{ID: id, Name: name}}
}

func key(id int) string { return strconv.Itoa(id) }

func num(n int) *int { return &n }
