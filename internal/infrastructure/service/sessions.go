// Package service wires WebUntis clients, the reference-data cache and the
// read handlers into per-school sessions shared by the HTTP API, the CLI
// and the archive worker.
package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/roosterhub/untis-connector/internal/application/query"
	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/external/webuntis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/persistence/cache"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// Session is a logged-in client for one school together with the read
// handlers built on it.
type Session struct {
	School     string
	Client     *webuntis.Client
	Reference  *cache.ReferenceData
	Resolver   *query.ClassResolver
	Timetables *query.GetTimetablesHandler
	Groups     *query.GetTimetableGroupsHandler

	userName string
	password string
}

// SessionsConfig configures a Sessions pool.
type SessionsConfig struct {
	// DefaultSchool is used when a caller passes an empty school name.
	DefaultSchool string

	// Store backs the reference-data cache. Nil disables caching.
	Store     cache.Store
	KeyPrefix string
	CacheTTL  time.Duration

	Logger *logger.Logger
}

// Sessions hands out one session per school, logging in lazily.
type Sessions struct {
	factory *webuntis.Factory
	config  SessionsConfig
	log     *logger.Logger

	mu       sync.Mutex
	sessions map[string]*pending
}

// pending is a session whose login may still be running. ready is closed
// once sess or err is set.
type pending struct {
	ready chan struct{}
	sess  *Session
	err   error
}

// NewSessions creates an empty pool.
func NewSessions(factory *webuntis.Factory, config SessionsConfig) *Sessions {
	log := config.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Sessions{
		factory:  factory,
		config:   config,
		log:      log.With(logger.Component("sessions")),
		sessions: make(map[string]*pending),
	}
}

// Get returns the session of school, creating and logging in on first use.
// School and institute names are matched ignoring case. Concurrent callers
// for the same school share one login; other schools are never held up by it.
func (s *Sessions) Get(ctx context.Context, school string) (*Session, error) {
	if school == "" {
		school = s.config.DefaultSchool
	}
	key := strings.ToLower(school)

	s.mu.Lock()
	if p, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		select {
		case <-p.ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		// the caller that ran the login gave up, try again with our context
		if p.err != nil && isContextErr(p.err) && ctx.Err() == nil {
			return s.Get(ctx, school)
		}
		return p.sess, p.err
	}
	p := &pending{ready: make(chan struct{})}
	s.sessions[key] = p
	s.mu.Unlock()

	p.sess, p.err = s.logIn(ctx, school)
	if p.err != nil {
		s.mu.Lock()
		if s.sessions[key] == p {
			delete(s.sessions, key)
		}
		s.mu.Unlock()
	}
	close(p.ready)
	return p.sess, p.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Sessions) logIn(ctx context.Context, school string) (*Session, error) {
	result, err := s.factory.CreateClientAndLogIn(ctx, school)
	if err != nil {
		return nil, err
	}

	reference := cache.NewReferenceData(result.Client, s.config.Store, result.SchoolName, s.config.KeyPrefix, s.config.CacheTTL, s.log)
	timetables := query.NewGetTimetablesHandler(reference, result.Client, s.log.With(logger.School(result.SchoolName)))
	sess := &Session{
		School:     result.SchoolName,
		Client:     result.Client,
		Reference:  reference,
		Resolver:   query.NewClassResolver(reference),
		Timetables: timetables,
		Groups:     query.NewGetTimetableGroupsHandler(timetables, reference),
		userName:   result.UserName,
		password:   result.Password,
	}

	s.log.Info("logged in", logger.School(sess.School))
	return sess, nil
}

// Do runs fn with the session of school. When fn fails because the session
// is missing or has expired, Do logs in again and runs fn once more.
func (s *Sessions) Do(ctx context.Context, school string, fn func(context.Context, *Session) error) error {
	sess, err := s.Get(ctx, school)
	if err != nil {
		return err
	}

	err = fn(ctx, sess)
	if err == nil || !shared.IsUnauthenticated(err) {
		return err
	}

	s.log.Warn("session lost, logging in again", logger.School(sess.School), logger.Err(err))
	if err := sess.Client.LogIn(ctx, sess.userName, sess.password); err != nil {
		return err
	}
	return fn(ctx, sess)
}

// Close logs out of every school. Logins still running are left alone.
func (s *Sessions) Close(ctx context.Context) error {
	s.mu.Lock()
	var done []*Session
	for key, p := range s.sessions {
		select {
		case <-p.ready:
		default:
			continue
		}
		if p.sess != nil {
			done = append(done, p.sess)
		}
		delete(s.sessions, key)
	}
	s.mu.Unlock()

	var errs []error
	for _, sess := range done {
		if err := sess.Client.LogOut(ctx); err != nil {
			errs = append(errs, err)
			s.log.Warn("log out failed", logger.School(sess.School), logger.Err(err))
		}
	}
	return errors.Join(errs...)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SchoolName returns the configured name of school without logging in.
// An empty name selects the default school.
func (s *Sessions) SchoolName(school string) (string, error) {
	if school == "" {
		school = s.config.DefaultSchool
	}
	return s.factory.SchoolName(school)
}

// RefreshReference drops the cached reference data of school so the next
// read goes to WebUntis.
func (s *Sessions) RefreshReference(ctx context.Context, school string) error {
	return s.Do(ctx, school, func(ctx context.Context, sess *Session) error {
		if err := sess.Reference.Invalidate(ctx); err != nil {
			return err
		}
		s.log.Info("reference data invalidated", logger.School(sess.School))
		return nil
	})
}

// SchoolYears returns the (cached) school years of school.
func (s *Sessions) SchoolYears(ctx context.Context, school string) ([]untis.SchoolYear, error) {
	var years []untis.SchoolYear
	err := s.Do(ctx, school, func(ctx context.Context, sess *Session) error {
		var err error
		years, err = sess.Reference.SchoolYears(ctx)
		return err
	})
	return years, err
}

// Classes returns the classes of a school year, or of the current school
// year when schoolYearID is 0.
func (s *Sessions) Classes(ctx context.Context, school string, schoolYearID int) ([]untis.Class, error) {
	var classes []untis.Class
	err := s.Do(ctx, school, func(ctx context.Context, sess *Session) error {
		var err error
		if schoolYearID == 0 {
			classes, err = sess.Client.AllClasses(ctx)
			return err
		}
		classes, err = sess.Reference.Classes(ctx, schoolYearID)
		return err
	})
	return classes, err
}

// Timetables runs a GetTimetablesQuery for school.
func (s *Sessions) Timetables(ctx context.Context, school string, q query.GetTimetablesQuery) (*query.GetTimetablesResult, error) {
	var result *query.GetTimetablesResult
	err := s.Do(ctx, school, func(ctx context.Context, sess *Session) error {
		var err error
		result, err = sess.Timetables.Handle(ctx, q)
		return err
	})
	return result, err
}

// TimetableGroups runs a GetTimetableGroupsQuery for school.
func (s *Sessions) TimetableGroups(ctx context.Context, school string, q query.GetTimetableGroupsQuery) (*query.GetTimetableGroupsResult, error) {
	var result *query.GetTimetableGroupsResult
	err := s.Do(ctx, school, func(ctx context.Context, sess *Session) error {
		var err error
		result, err = sess.Groups.Handle(ctx, q)
		return err
	})
	return result, err
}
