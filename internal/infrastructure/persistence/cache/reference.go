package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// Source is the set of reference calls that can be cached.
type Source interface {
	SchoolYears(ctx context.Context) ([]untis.SchoolYear, error)
	Classes(ctx context.Context, schoolYearID int) ([]untis.Class, error)
	Teachers(ctx context.Context) ([]untis.Teacher, error)
	Subjects(ctx context.Context) ([]untis.Subject, error)
	Rooms(ctx context.Context) ([]untis.Room, error)
	Departments(ctx context.Context) ([]untis.Department, error)
	Holidays(ctx context.Context) ([]untis.Holiday, error)
	Timegrids(ctx context.Context) ([]untis.TimegridUnits, error)
}

// ReferenceData caches the reference calls of one school. Keys are
// <prefix><school>:<kind>[:<arg>].
type ReferenceData struct {
	source Source
	store  Store
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// NewReferenceData decorates source. A ttl of 0 or a nil store disables
// caching.
func NewReferenceData(source Source, store Store, school, keyPrefix string, ttl time.Duration, log *logger.Logger) *ReferenceData {
	if log == nil {
		log = logger.Nop()
	}
	return &ReferenceData{
		source: source,
		store:  store,
		ttl:    ttl,
		prefix: keyPrefix + school + ":",
		log:    log.With(logger.Component("cache"), logger.School(school)),
	}
}

func (r *ReferenceData) SchoolYears(ctx context.Context) ([]untis.SchoolYear, error) {
	return getOrLoad(ctx, r, "schoolyears", r.source.SchoolYears)
}

func (r *ReferenceData) Classes(ctx context.Context, schoolYearID int) ([]untis.Class, error) {
	return getOrLoad(ctx, r, "classes:"+strconv.Itoa(schoolYearID), func(ctx context.Context) ([]untis.Class, error) {
		return r.source.Classes(ctx, schoolYearID)
	})
}

func (r *ReferenceData) Teachers(ctx context.Context) ([]untis.Teacher, error) {
	return getOrLoad(ctx, r, "teachers", r.source.Teachers)
}

func (r *ReferenceData) Subjects(ctx context.Context) ([]untis.Subject, error) {
	return getOrLoad(ctx, r, "subjects", r.source.Subjects)
}

func (r *ReferenceData) Rooms(ctx context.Context) ([]untis.Room, error) {
	return getOrLoad(ctx, r, "rooms", r.source.Rooms)
}

func (r *ReferenceData) Departments(ctx context.Context) ([]untis.Department, error) {
	return getOrLoad(ctx, r, "departments", r.source.Departments)
}

func (r *ReferenceData) Holidays(ctx context.Context) ([]untis.Holiday, error) {
	return getOrLoad(ctx, r, "holidays", r.source.Holidays)
}

func (r *ReferenceData) Timegrids(ctx context.Context) ([]untis.TimegridUnits, error) {
	return getOrLoad(ctx, r, "timegrids", r.source.Timegrids)
}

// Invalidate drops every cached kind of this school except per-year classes.
func (r *ReferenceData) Invalidate(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	kinds := []string{"schoolyears", "teachers", "subjects", "rooms", "departments", "holidays", "timegrids"}
	keys := make([]string, len(kinds))
	for i, k := range kinds {
		keys[i] = r.prefix + k
	}
	return r.store.Delete(ctx, keys...)
}

// getOrLoad serves kind from the store, loading and storing it on a miss.
// Store failures degrade to a direct load.
func getOrLoad[T any](ctx context.Context, r *ReferenceData, kind string, load func(context.Context) (T, error)) (T, error) {
	if r.ttl <= 0 || r.store == nil {
		return load(ctx)
	}

	key := r.prefix + kind
	data, err := r.store.Get(ctx, key)
	if err == nil {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
		r.log.Warn("dropping undecodable cache entry", logger.String("key", key))
	} else if !errors.Is(err, ErrMiss) {
		r.log.Warn("cache read failed", logger.String("key", key), logger.Err(err))
	}

	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	if data, err := json.Marshal(value); err == nil {
		if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
			r.log.Warn("cache write failed", logger.String("key", key), logger.Err(err))
		}
	}
	return value, nil
}
