package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosterhub/untis-connector/internal/application/query"
	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/postgres"
	"github.com/roosterhub/untis-connector/internal/infrastructure/service"
	"github.com/roosterhub/untis-connector/internal/interface/http/handlers"
)

type fakeService struct {
	years      []untis.SchoolYear
	err        error
	school     string
	unresolved []query.UnresolvedPeriod

	lastQuery  query.GetTimetablesQuery
	lastGroups query.GetTimetableGroupsQuery
}

func (f *fakeService) SchoolYears(ctx context.Context, school string) ([]untis.SchoolYear, error) {
	f.school = school
	return f.years, f.err
}

func (f *fakeService) Timetables(ctx context.Context, school string, q query.GetTimetablesQuery) (*query.GetTimetablesResult, error) {
	f.school = school
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return &query.GetTimetablesResult{
		Timetables:        []untis.Timetable{{ID: 1, Date: 20190902, StartTime: 800, EndTime: 845}},
		ElementIDs:        []int{q.ElementID},
		UnresolvedPeriods: f.unresolved,
	}, nil
}

func (f *fakeService) TimetableGroups(ctx context.Context, school string, q query.GetTimetableGroupsQuery) (*query.GetTimetableGroupsResult, error) {
	f.school = school
	f.lastGroups = q
	if f.err != nil {
		return nil, f.err
	}
	lesson := 3
	lessons := []untis.Timetable{{
		ID: 1, Date: 20190902, StartTime: 800, EndTime: 845, LessonNumber: &lesson,
		Subjects: []untis.Subject{{Element: untis.Element{ID: 9, Name: "EN"}}},
	}}
	return &query.GetTimetableGroupsResult{
		GetTimetablesResult: &query.GetTimetablesResult{Timetables: lessons, ElementIDs: []int{q.ElementID}},
		Groups:              untis.GroupLessons(lessons, nil),
	}, nil
}

func newTestServer(svc *fakeService) *Server {
	return NewServer(DefaultConfig(), Dependencies{Service: svc})
}

func get(t *testing.T, s *Server, target string) (int, JSONResponse) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest("GET", target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body JSONResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeService{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(handlers.RequestIDHeader))
}

func TestHealthz_FailingCheck(t *testing.T) {
	health := handlers.NewHealthChecker("test")
	health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	s := NewServer(DefaultConfig(), Dependencies{Service: &fakeService{}, Health: health})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 503, resp.StatusCode)

	var status handlers.HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
}

func TestSchoolYears(t *testing.T) {
	svc := &fakeService{years: []untis.SchoolYear{{ID: 1, Name: "2019/2020", StartDate: 20190902, EndDate: 20200703}}}
	s := newTestServer(svc)

	status, body := get(t, s, "/api/v1/schoolyears?school=demo")
	assert.Equal(t, 200, status)
	assert.True(t, body.Success)
	assert.Equal(t, 1, body.Meta.TotalCount)
	assert.Equal(t, "demo", svc.school)
}

func TestTimetables_ParsesQuery(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	status, body := get(t, s, "/api/v1/timetables?type=class&id=42&start=2019-09-06&end=2019-09-02")
	require.Equal(t, 200, status)
	assert.True(t, body.Success)

	q := svc.lastQuery
	assert.Equal(t, untis.ElementClass, q.ElementType)
	assert.Equal(t, untis.KeyID, q.KeyType)
	assert.Equal(t, 42, q.ElementID)
	assert.Equal(t, time.Date(2019, 9, 6, 0, 0, 0, 0, time.UTC), q.StartDate)
	assert.Equal(t, time.Date(2019, 9, 2, 0, 0, 0, 0, time.UTC), q.EndDate)
}

func TestTimetables_ByNameGrouped(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(svc)

	status, body := get(t, s, "/api/v1/timetables?type=teacher&name=JDO&start=2019-09-02&end=2019-09-06&grouped=true&timegrid=true")
	require.Equal(t, 200, status)
	assert.Equal(t, 1, body.Meta.TotalCount)

	q := svc.lastGroups
	assert.Equal(t, untis.KeyName, q.KeyType)
	assert.Equal(t, "JDO", q.ElementName)
	assert.True(t, q.UseTimegrid)
}

func TestTimetables_UnresolvedPeriodsCarryElementID(t *testing.T) {
	svc := &fakeService{unresolved: []query.UnresolvedPeriod{{
		DateTimeRange: untis.NewDateTimeRange(time.Date(2020, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 9, 10, 0, 0, 0, 0, time.UTC)),
		ElementID:     87,
	}}}
	s := newTestServer(svc)

	status, body := get(t, s, "/api/v1/timetables?type=class&id=42&start=2019-12-01&end=2020-09-10")
	require.Equal(t, 200, status)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	periods, ok := data["unresolved_periods"].([]any)
	require.True(t, ok)
	require.Len(t, periods, 1)
	assert.Equal(t, map[string]any{"start": "2020-08-01", "end": "2020-09-10", "element_id": float64(87)}, periods[0])
}

type fakeArchive struct {
	archived *service.ArchivedTimetable
	school   string
	period   untis.DateTimeRange
}

func (f *fakeArchive) Timetable(_ context.Context, school string, elementType untis.ElementType, elementID int, period untis.DateTimeRange) (*service.ArchivedTimetable, error) {
	f.school = school
	f.period = period
	if f.archived == nil {
		return &service.ArchivedTimetable{Key: postgres.ArchiveKey{School: "demo", ElementType: elementType, ElementID: elementID}}, nil
	}
	return f.archived, nil
}

func TestArchive_ReturnsGroupsAndLastRun(t *testing.T) {
	finished := time.Date(2019, 9, 1, 3, 0, 0, 0, time.UTC)
	archive := &fakeArchive{archived: &service.ArchivedTimetable{
		Key:     postgres.ArchiveKey{School: "demo", ElementType: untis.ElementClass, ElementID: 42},
		Groups:  []untis.TimetableGroup{{Date: 20190902, StartTime: 800, EndTime: 935}},
		LastRun: finished,
	}}
	s := NewServer(DefaultConfig(), Dependencies{Service: &fakeService{}, Archive: archive})

	status, body := get(t, s, "/api/v1/archive?school=Demo&type=class&id=42&start=2019-09-02&end=2019-09-06")
	require.Equal(t, 200, status)
	assert.Equal(t, 1, body.Meta.TotalCount)
	assert.Equal(t, "Demo", archive.school)
	assert.Equal(t, time.Date(2019, 9, 6, 0, 0, 0, 0, time.UTC), archive.period.End)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "demo", data["school"])
	assert.Equal(t, float64(42), data["element_id"])
	assert.Equal(t, "2019-09-01T03:00:00Z", data["last_run"])
}

func TestArchive_NeverArchivedOmitsLastRun(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Service: &fakeService{}, Archive: &fakeArchive{}})

	status, body := get(t, s, "/api/v1/archive?type=teacher&id=7&start=2019-09-02&end=2019-09-06")
	require.Equal(t, 200, status)

	data, ok := body.Data.(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, data, "last_run")
	assert.Equal(t, 0, body.Meta.TotalCount)
}

func TestArchive_Errors(t *testing.T) {
	status, body := get(t, newTestServer(&fakeService{}), "/api/v1/archive?type=class&id=42&start=2019-09-02&end=2019-09-06")
	assert.Equal(t, 404, status)
	assert.False(t, body.Success)

	s := NewServer(DefaultConfig(), Dependencies{Service: &fakeService{}, Archive: &fakeArchive{}})
	status, body = get(t, s, "/api/v1/archive?type=class&name=5a&start=2019-09-02&end=2019-09-06")
	assert.Equal(t, 400, status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "invalid_request", body.Error.Code)
}

func TestTimetables_ICS(t *testing.T) {
	s := newTestServer(&fakeService{})

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/v1/timetables?type=class&id=1&start=2019-09-02&end=2019-09-02&format=ics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "SUMMARY:EN")
	assert.Contains(t, string(raw), "DTSTART:20190902T080000Z")
}

func TestTimetables_InvalidParameters(t *testing.T) {
	s := newTestServer(&fakeService{})

	cases := map[string]string{
		"unknown type":   "/api/v1/timetables?type=parent&id=1&start=2019-09-02&end=2019-09-06",
		"missing key":    "/api/v1/timetables?type=class&start=2019-09-02&end=2019-09-06",
		"both keys":      "/api/v1/timetables?type=class&id=1&name=5a&start=2019-09-02&end=2019-09-06",
		"bad id":         "/api/v1/timetables?type=class&id=x&start=2019-09-02&end=2019-09-06",
		"missing start":  "/api/v1/timetables?type=class&id=1&end=2019-09-06",
		"malformed date": "/api/v1/timetables?type=class&id=1&start=02.09.2019&end=2019-09-06",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			status, body := get(t, s, target)
			assert.Equal(t, 400, status)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, "invalid_request", body.Error.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", shared.WrapError("query", "GetTimetables", shared.ErrValidation, "invalid query", errors.New("bad")), 400},
		{"unauthenticated", shared.NewDomainError("webuntis", "LogIn", shared.ErrUnauthenticated, "invalid credentials"), 401},
		{"session expired", shared.NewDomainError("webuntis", "getTimetable", shared.ErrSessionExpired, "session expired"), 401},
		{"unknown school", shared.NewDomainError("config", "ResolveSchool", shared.ErrSchoolNotConfigured, "no school"), 404},
		{"upstream", errors.New("jsonrpc: unexpected http status 503"), 502},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&fakeService{err: tc.err})
			status, body := get(t, s, "/api/v1/schoolyears")
			assert.Equal(t, tc.status, status)
			assert.False(t, body.Success)
		})
	}
}
