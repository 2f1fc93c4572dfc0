package service

import (
	"context"
	"fmt"
	"time"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/postgres"
)

// ArchiveReader reads archived timetable blocks.
type ArchiveReader interface {
	ListGroups(ctx context.Context, key postgres.ArchiveKey, period untis.DateTimeRange) ([]untis.TimetableGroup, error)
	LastRun(ctx context.Context, key postgres.ArchiveKey) (time.Time, bool, error)
}

// ArchivedTimetable is the archived state of one element over a period.
type ArchivedTimetable struct {
	Key    postgres.ArchiveKey
	Groups []untis.TimetableGroup

	// LastRun is the zero time when the element was never archived.
	LastRun time.Time
}

// Archive serves archived timetables keyed by the configured school names.
type Archive struct {
	reader   ArchiveReader
	sessions *Sessions
}

// NewArchive creates an Archive. sessions is only used to resolve school
// names and never logs in.
func NewArchive(reader ArchiveReader, sessions *Sessions) *Archive {
	return &Archive{reader: reader, sessions: sessions}
}

// Timetable returns the archived blocks of an element within period.
func (a *Archive) Timetable(ctx context.Context, school string, elementType untis.ElementType, elementID int, period untis.DateTimeRange) (*ArchivedTimetable, error) {
	name, err := a.sessions.SchoolName(school)
	if err != nil {
		return nil, err
	}
	key := postgres.ArchiveKey{School: name, ElementType: elementType, ElementID: elementID}

	groups, err := a.reader.ListGroups(ctx, key, period)
	if err != nil {
		return nil, err
	}
	lastRun, ok, err := a.reader.LastRun(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("archived timetable %s: %w", key, err)
	}
	if !ok {
		lastRun = time.Time{}
	}
	return &ArchivedTimetable{Key: key, Groups: groups, LastRun: lastRun}, nil
}
