package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
)

type countingSource struct {
	calls map[string]int
	err   error
}

func newCountingSource() *countingSource {
	return &countingSource{calls: map[string]int{}}
}

func (s *countingSource) SchoolYears(context.Context) ([]untis.SchoolYear, error) {
	s.calls["schoolyears"]++
	if s.err != nil {
		return nil, s.err
	}
	return []untis.SchoolYear{{ID: 1, Name: "2019/2020", StartDate: 20190902, EndDate: 20200703}}, nil
}

func (s *countingSource) Classes(_ context.Context, schoolYearID int) ([]untis.Class, error) {
	s.calls["classes"]++
	return []untis.Class{{Element: untis.Element{ID: 40 + schoolYearID, Name: "H1A"}}}, nil
}

func (s *countingSource) Teachers(context.Context) ([]untis.Teacher, error) {
	s.calls["teachers"]++
	return nil, nil
}

func (s *countingSource) Subjects(context.Context) ([]untis.Subject, error) {
	s.calls["subjects"]++
	return nil, nil
}

func (s *countingSource) Rooms(context.Context) ([]untis.Room, error) {
	s.calls["rooms"]++
	return nil, nil
}

func (s *countingSource) Departments(context.Context) ([]untis.Department, error) {
	s.calls["departments"]++
	return nil, nil
}

func (s *countingSource) Holidays(context.Context) ([]untis.Holiday, error) {
	s.calls["holidays"]++
	return nil, nil
}

func (s *countingSource) Timegrids(context.Context) ([]untis.TimegridUnits, error) {
	s.calls["timegrids"]++
	return []untis.TimegridUnits{{Day: 2}}, nil
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenStore) Delete(context.Context, ...string) error { return errors.New("down") }
func (brokenStore) Close() error                            { return nil }

func newMemory(t *testing.T) *MemoryStore {
	t.Helper()
	s, err := NewMemoryStore(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReferenceData_CachesWithinTTL(t *testing.T) {
	src := newCountingSource()
	ref := NewReferenceData(src, newMemory(t), "hr", "untis:", time.Minute, nil)
	ctx := context.Background()

	first, err := ref.SchoolYears(ctx)
	require.NoError(t, err)
	second, err := ref.SchoolYears(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls["schoolyears"])
}

func TestReferenceData_ClassesKeyedBySchoolYear(t *testing.T) {
	src := newCountingSource()
	ref := NewReferenceData(src, newMemory(t), "hr", "untis:", time.Minute, nil)
	ctx := context.Background()

	y1, err := ref.Classes(ctx, 1)
	require.NoError(t, err)
	y2, err := ref.Classes(ctx, 2)
	require.NoError(t, err)
	_, err = ref.Classes(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 41, y1[0].ID)
	assert.Equal(t, 42, y2[0].ID)
	assert.Equal(t, 2, src.calls["classes"])
}

func TestReferenceData_SchoolsDoNotShareEntries(t *testing.T) {
	store := newMemory(t)
	src := newCountingSource()
	ctx := context.Background()

	_, err := NewReferenceData(src, store, "hr", "untis:", time.Minute, nil).Timegrids(ctx)
	require.NoError(t, err)
	_, err = NewReferenceData(src, store, "other", "untis:", time.Minute, nil).Timegrids(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls["timegrids"])
}

func TestReferenceData_ZeroTTLPassesThrough(t *testing.T) {
	src := newCountingSource()
	ref := NewReferenceData(src, newMemory(t), "hr", "untis:", 0, nil)

	_, _ = ref.Teachers(context.Background())
	_, _ = ref.Teachers(context.Background())

	assert.Equal(t, 2, src.calls["teachers"])
}

func TestReferenceData_LoadErrorsAreNotCached(t *testing.T) {
	src := newCountingSource()
	src.err = errors.New("boom")
	ref := NewReferenceData(src, newMemory(t), "hr", "untis:", time.Minute, nil)

	_, err := ref.SchoolYears(context.Background())
	assert.Error(t, err)

	src.err = nil
	years, err := ref.SchoolYears(context.Background())
	require.NoError(t, err)
	assert.Len(t, years, 1)
	assert.Equal(t, 2, src.calls["schoolyears"])
}

func TestReferenceData_BrokenStoreFallsBackToSource(t *testing.T) {
	src := newCountingSource()
	ref := NewReferenceData(src, brokenStore{}, "hr", "untis:", time.Minute, nil)

	years, err := ref.SchoolYears(context.Background())
	require.NoError(t, err)
	assert.Len(t, years, 1)
}

func TestReferenceData_Invalidate(t *testing.T) {
	src := newCountingSource()
	ref := NewReferenceData(src, newMemory(t), "hr", "untis:", time.Minute, nil)
	ctx := context.Background()

	_, _ = ref.Rooms(ctx)
	require.NoError(t, ref.Invalidate(ctx))
	_, _ = ref.Rooms(ctx)

	assert.Equal(t, 2, src.calls["rooms"])
}

func TestMemoryStore(t *testing.T) {
	s := newMemory(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	assert.ErrorIs(t, s.Set(ctx, "", []byte("v"), time.Minute), ErrKeyEmpty)
	assert.ErrorIs(t, s.Set(ctx, "k", []byte("v"), -time.Second), ErrInvalidTTL)
}
