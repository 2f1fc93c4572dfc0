// Package main is the archive worker of untis-connector.
//
// The worker periodically fetches the grouped timetables of the elements
// listed in ARCHIVE_ELEMENTS over a rolling window of ARCHIVE_WINDOW_DAYS
// and stores them in PostgreSQL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roosterhub/untis-connector/config"
	"github.com/roosterhub/untis-connector/internal/bootstrap"
	"github.com/roosterhub/untis-connector/internal/infrastructure/scheduler"
	"github.com/roosterhub/untis-connector/internal/infrastructure/scheduler/jobs"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	targets, err := bootstrap.ArchiveTargets(cfg)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("ARCHIVE_ELEMENTS is empty, nothing to archive")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := bootstrap.NewLogger(cfg, "").With(logger.Component("worker"))
	log.Info("starting untis-connector worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone),
		logger.School(cfg.Untis.DefaultSchool),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. RUNTIME (cache, sessions)
	// ─────────────────────────────────────────────────────────────────────────
	rt, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := rt.Close(closeCtx); err != nil {
			log.Warn("close failed", logger.Err(err))
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. DATABASE (connect and migrate)
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	archive, err := rt.Archive(ctx)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	school, err := rt.Sessions.SchoolName(cfg.Untis.DefaultSchool)
	if err != nil {
		return err
	}
	archiveJob := jobs.NewArchiveTimetablesJob(rt.Sessions, archive, jobs.ArchiveTimetablesConfig{
		School:     school,
		Targets:    targets,
		WindowDays: cfg.Archive.WindowDays,
	}, log)

	schedCfg := scheduler.DefaultSchedulerConfig()
	schedCfg.Logger = log
	sched := scheduler.NewScheduler(schedCfg)
	if err := sched.Register(archiveJob, scheduler.Every(cfg.Archive.Interval), cfg.Archive.RunOnStart); err != nil {
		return err
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success {
			log.Error("job failed", logger.String("job", r.JobName), logger.Err(r.Error))
		}
	})

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	log.Info("worker is running",
		logger.Int("elements", len(targets)),
		logger.Int("window_days", cfg.Archive.WindowDays),
		logger.Duration("interval", cfg.Archive.Interval),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", logger.Err(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}
