// Package bootstrap builds the shared runtime of the CLI and the worker
// from the loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roosterhub/untis-connector/config"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/external/webuntis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/cache"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/postgres"
	"github.com/roosterhub/untis-connector/internal/infrastructure/scheduler/jobs"
	"github.com/roosterhub/untis-connector/internal/infrastructure/service"
	"github.com/roosterhub/untis-connector/internal/interface/http/handlers"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// ErrNoDatabase is returned by Archive when DATABASE_URL is not set.
var ErrNoDatabase = errors.New("DATABASE_URL is not set")

// Runtime holds the long-lived dependencies of a process.
type Runtime struct {
	Config   *config.Config
	Log      *logger.Logger
	Sessions *service.Sessions

	store   cache.Store
	redis   *cache.RedisStore
	db      *postgres.Connection
	archive *postgres.TimetableArchive
}

// NewLogger builds the process logger. levelOverride wins over LOG_LEVEL.
func NewLogger(cfg *config.Config, levelOverride string) *logger.Logger {
	level := cfg.Observability.LogLevel
	if levelOverride != "" {
		level = levelOverride
	}
	opts := logger.DefaultOptions()
	opts.Output = os.Stderr
	opts.Level = logger.ParseLevel(level)
	return logger.New(opts).With(
		logger.String("app", cfg.App.Name),
		logger.String("env", string(cfg.App.Environment)),
	)
}

// New connects the reference-data cache and prepares the session pool.
// Nothing talks to WebUntis until a session is first used.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Log: log}

	switch cfg.Cache.Backend {
	case "redis":
		redisCfg := cache.DefaultRedisConfig()
		redisCfg.URL = cfg.Redis.URL
		if cfg.Redis.Host != "" {
			redisCfg.Host = cfg.Redis.Host
		}
		if cfg.Redis.Port != 0 {
			redisCfg.Port = cfg.Redis.Port
		}
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisCfg.PoolSize = cfg.Redis.PoolSize
		}

		store, err := cache.NewRedisStore(redisCfg)
		if err != nil {
			// the cache is an optimization, keep serving without it
			log.Warn("redis unavailable, reference data is not cached", logger.Err(err))
			break
		}
		rt.redis = store
		rt.store = store
	case "memory":
		store, err := cache.NewMemoryStore(0)
		if err != nil {
			return nil, err
		}
		rt.store = store
	}

	factory := webuntis.NewFactory(cfg.Untis, webuntis.WithLogger(log))
	rt.Sessions = service.NewSessions(factory, service.SessionsConfig{
		DefaultSchool: cfg.Untis.DefaultSchool,
		Store:         rt.store,
		KeyPrefix:     cfg.Cache.KeyPrefix,
		CacheTTL:      cfg.Untis.CacheTTL,
		Logger:        log,
	})

	return rt, nil
}

// Archive opens the database on first use and applies pending migrations.
func (rt *Runtime) Archive(ctx context.Context) (*postgres.TimetableArchive, error) {
	if rt.archive != nil {
		return rt.archive, nil
	}
	if rt.Config.Database.URL == "" {
		return nil, ErrNoDatabase
	}

	conn, err := postgres.NewConnectionFromURL(ctx, rt.Config.Database.URL, postgres.PoolOptions{
		MaxConns:        int32(rt.Config.Database.MaxOpenConns),
		MaxConnLifetime: rt.Config.Database.ConnMaxLifetime,
		MaxConnIdleTime: rt.Config.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	archive := postgres.NewTimetableArchive(conn)
	applied, err := archive.Migrate(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(applied) > 0 {
		rt.Log.Info("database migrated", logger.Any("versions", applied))
	}

	rt.db = conn
	rt.archive = archive
	return archive, nil
}

// Migrator returns a migrator on the archive database.
func (rt *Runtime) Migrator(ctx context.Context) (*postgres.Migrator, error) {
	if _, err := rt.Archive(ctx); err != nil {
		return nil, err
	}
	return postgres.NewMigrator(rt.db), nil
}

// Health returns a checker covering the backends in use.
func (rt *Runtime) Health() *handlers.HealthChecker {
	h := handlers.NewHealthChecker(rt.Config.App.Version)
	if rt.redis != nil {
		h.AddCheck("redis", handlers.PingCheck(rt.redis))
	}
	if rt.db != nil {
		h.AddCheck("postgres", handlers.PingCheck(rt.db))
	}
	return h
}

// Close logs out of all schools and releases connections.
func (rt *Runtime) Close(ctx context.Context) error {
	errs := []error{rt.Sessions.Close(ctx)}
	if rt.store != nil {
		errs = append(errs, rt.store.Close())
	}
	if rt.db != nil {
		rt.db.Close()
	}
	return errors.Join(errs...)
}

// ArchiveTargets converts the configured ARCHIVE_ELEMENTS.
func ArchiveTargets(cfg *config.Config) ([]jobs.ArchiveTarget, error) {
	targets := make([]jobs.ArchiveTarget, 0, len(cfg.Archive.Elements))
	for _, e := range cfg.Archive.Elements {
		typ, err := untis.ParseElementType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("ARCHIVE_ELEMENTS: %w", err)
		}
		targets = append(targets, jobs.ArchiveTarget{Type: typ, ID: e.ID})
	}
	return targets, nil
}
