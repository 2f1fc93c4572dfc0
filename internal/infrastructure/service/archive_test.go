package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/postgres"
)

type fakeArchiveReader struct {
	groups  []untis.TimetableGroup
	lastRun time.Time

	keys   []postgres.ArchiveKey
	period untis.DateTimeRange
}

func (f *fakeArchiveReader) ListGroups(_ context.Context, key postgres.ArchiveKey, period untis.DateTimeRange) ([]untis.TimetableGroup, error) {
	f.keys = append(f.keys, key)
	f.period = period
	return f.groups, nil
}

func (f *fakeArchiveReader) LastRun(_ context.Context, key postgres.ArchiveKey) (time.Time, bool, error) {
	f.keys = append(f.keys, key)
	return f.lastRun, !f.lastRun.IsZero(), nil
}

func TestArchive_TimetableUsesConfiguredSchoolName(t *testing.T) {
	stub := &untisStub{}
	sessions := newSessions(t, stub)
	finished := time.Date(2019, 9, 1, 3, 0, 0, 0, time.UTC)
	reader := &fakeArchiveReader{
		groups:  []untis.TimetableGroup{{Date: 20190902, StartTime: 800, EndTime: 935}},
		lastRun: finished,
	}
	period := untis.NewDateTimeRange(time.Date(2019, 9, 2, 0, 0, 0, 0, time.UTC), time.Date(2019, 9, 6, 0, 0, 0, 0, time.UTC))

	got, err := NewArchive(reader, sessions).Timetable(context.Background(), "campus north", untis.ElementClass, 42, period)
	require.NoError(t, err)

	want := postgres.ArchiveKey{School: "demo", ElementType: untis.ElementClass, ElementID: 42}
	assert.Equal(t, want, got.Key)
	assert.Equal(t, []postgres.ArchiveKey{want, want}, reader.keys)
	assert.Equal(t, period, reader.period)
	assert.Len(t, got.Groups, 1)
	assert.Equal(t, finished, got.LastRun)
	assert.Zero(t, stub.count("authenticate"))
}

func TestArchive_NeverArchived(t *testing.T) {
	sessions := newSessions(t, &untisStub{})

	got, err := NewArchive(&fakeArchiveReader{}, sessions).Timetable(context.Background(), "", untis.ElementTeacher, 7, untis.DateTimeRange{})
	require.NoError(t, err)
	assert.Equal(t, "demo", got.Key.School)
	assert.True(t, got.LastRun.IsZero())
	assert.Empty(t, got.Groups)
}

func TestArchive_UnknownSchool(t *testing.T) {
	sessions := newSessions(t, &untisStub{})
	reader := &fakeArchiveReader{}

	_, err := NewArchive(reader, sessions).Timetable(context.Background(), "elsewhere", untis.ElementClass, 1, untis.DateTimeRange{})
	assert.ErrorIs(t, err, shared.ErrSchoolNotConfigured)
	assert.Empty(t, reader.keys)
}
