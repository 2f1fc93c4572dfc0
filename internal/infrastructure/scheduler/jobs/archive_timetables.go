// Package jobs contains the scheduled jobs of the archive worker.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roosterhub/untis-connector/internal/application/query"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/postgres"
	"github.com/roosterhub/untis-connector/pkg/logger"
	"github.com/roosterhub/untis-connector/pkg/untisdate"
)

// GroupFetcher fetches grouped timetables for a school.
type GroupFetcher interface {
	TimetableGroups(ctx context.Context, school string, q query.GetTimetableGroupsQuery) (*query.GetTimetableGroupsResult, error)
}

// GroupStore persists the groups of one element and period.
type GroupStore interface {
	SaveGroups(ctx context.Context, key postgres.ArchiveKey, period untis.DateTimeRange, groups []untis.TimetableGroup) error
}

// ArchiveTarget is one element to archive.
type ArchiveTarget struct {
	Type untis.ElementType
	ID   int
}

// ArchiveTimetablesConfig configures ArchiveTimetablesJob.
type ArchiveTimetablesConfig struct {
	School  string
	Targets []ArchiveTarget

	// WindowDays is the number of days, starting today, refreshed per run.
	WindowDays int

	// UseTimegrid merges lessons across breaks.
	UseTimegrid bool
}

// ArchiveStats summarizes one run.
type ArchiveStats struct {
	Elements int
	Failed   int
	Groups   int
}

// ArchiveTimetablesJob refreshes the archived timetable of each target over
// a rolling window.
type ArchiveTimetablesJob struct {
	fetcher GroupFetcher
	store   GroupStore
	config  ArchiveTimetablesConfig
	log     *logger.Logger
	now     func() time.Time

	lastStats ArchiveStats
}

// NewArchiveTimetablesJob creates the job.
func NewArchiveTimetablesJob(fetcher GroupFetcher, store GroupStore, config ArchiveTimetablesConfig, log *logger.Logger) *ArchiveTimetablesJob {
	if log == nil {
		log = logger.Nop()
	}
	if config.WindowDays < 1 {
		config.WindowDays = 1
	}
	return &ArchiveTimetablesJob{
		fetcher: fetcher,
		store:   store,
		config:  config,
		log:     log.With(logger.Component("archive_timetables"), logger.School(config.School)),
		now:     time.Now,
	}
}

func (j *ArchiveTimetablesJob) Name() string { return "archive_timetables" }

// Window returns the period refreshed by a run started at now.
func (j *ArchiveTimetablesJob) Window(now time.Time) untis.DateTimeRange {
	start := untisdate.StartOfDay(now)
	return untis.NewDateTimeRange(start, start.AddDate(0, 0, j.config.WindowDays-1))
}

// Run archives every target. A failing target does not stop the others;
// their errors are joined.
func (j *ArchiveTimetablesJob) Run(ctx context.Context) error {
	period := j.Window(j.now())
	stats := ArchiveStats{Elements: len(j.config.Targets)}

	var errs []error
	for _, target := range j.config.Targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		n, err := j.archive(ctx, target, period)
		if err != nil {
			stats.Failed++
			errs = append(errs, err)
			j.log.Warn("archive failed",
				logger.ElementType(target.Type.String()),
				logger.ElementID(target.ID),
				logger.Err(err),
			)
			continue
		}
		stats.Groups += n
	}

	j.lastStats = stats
	j.log.Info("archive run finished",
		logger.Period(period.Start, period.End),
		logger.Int("elements", stats.Elements),
		logger.Int("failed", stats.Failed),
		logger.Int("groups", stats.Groups),
	)
	return errors.Join(errs...)
}

// LastStats returns the statistics of the most recent run.
func (j *ArchiveTimetablesJob) LastStats() ArchiveStats { return j.lastStats }

func (j *ArchiveTimetablesJob) archive(ctx context.Context, target ArchiveTarget, period untis.DateTimeRange) (int, error) {
	result, err := j.fetcher.TimetableGroups(ctx, j.config.School, query.GetTimetableGroupsQuery{
		GetTimetablesQuery: query.GetTimetablesQuery{
			ElementType: target.Type,
			KeyType:     untis.KeyID,
			ElementID:   target.ID,
			StartDate:   period.Start,
			EndDate:     period.End,
		},
		UseTimegrid: j.config.UseTimegrid,
	})
	if err != nil {
		return 0, fmt.Errorf("fetch %s %d: %w", target.Type, target.ID, err)
	}

	key := postgres.ArchiveKey{School: j.config.School, ElementType: target.Type, ElementID: target.ID}
	if err := j.store.SaveGroups(ctx, key, period, result.Groups); err != nil {
		return 0, err
	}
	return len(result.Groups), nil
}
