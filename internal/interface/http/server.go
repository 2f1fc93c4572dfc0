// Package http serves a read-only JSON API over the WebUntis timetables of
// the configured schools.
package http

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/roosterhub/untis-connector/internal/application/query"
	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/service"
	"github.com/roosterhub/untis-connector/internal/interface/http/handlers"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Addr to listen on (default: ":8080").
	Addr string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RequestTimeout bounds the upstream work of one request. 0 disables it.
	RequestTimeout time.Duration

	// Location is used to render lesson times in calendar output.
	Location *time.Location

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 45 * time.Second,
		Location:       time.UTC,
		Version:        "v1",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// TimetableService performs the read operations behind the API. School
// names are matched ignoring case and "" selects the default school.
type TimetableService interface {
	SchoolYears(ctx context.Context, school string) ([]untis.SchoolYear, error)
	Timetables(ctx context.Context, school string, q query.GetTimetablesQuery) (*query.GetTimetablesResult, error)
	TimetableGroups(ctx context.Context, school string, q query.GetTimetableGroupsQuery) (*query.GetTimetableGroupsResult, error)
}

// ArchiveService reads timetables stored by the archive worker.
type ArchiveService interface {
	Timetable(ctx context.Context, school string, elementType untis.ElementType, elementID int, period untis.DateTimeRange) (*service.ArchivedTimetable, error)
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	Service TimetableService

	// Archive is optional. Without it /api/v1/archive answers 404.
	Archive ArchiveService

	// Health is optional. Without it /healthz always reports healthy.
	Health *handlers.HealthChecker

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	deps   Dependencies
	app    *fiber.App
	logger *logger.Logger

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewHealthChecker(config.Version)
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger.With(logger.Component("http")),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "untis-connector",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(handlers.Recover(s.logger))
	s.app.Use(handlers.RequestID())
	s.app.Use(handlers.AccessLog(s.logger))

	s.setupRoutes()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	s.app.Get("/healthz", s.deps.Health.Handler())

	api := s.app.Group("/api/v1", handlers.NoCache(), handlers.Timeout(s.config.RequestTimeout))
	api.Get("/schoolyears", s.handleSchoolYears)
	api.Get("/timetables", s.handleTimetables)
	api.Get("/archive", s.handleArchive)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Addr))
	if err := s.app.Listen(s.config.Addr); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// Uptime returns how long the server has been running.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ══════════════════════════════════════════════════════════════════════════════

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta carries response metadata.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count"`
}

func (s *Server) writeJSON(c *fiber.Ctx, data any, count int) error {
	return c.Status(fiber.StatusOK).JSON(JSONResponse{
		Success: true,
		Data:    data,
		Meta: &ResponseMeta{
			Timestamp:  time.Now().UTC(),
			Version:    s.config.Version,
			TotalCount: count,
		},
		RequestID: handlers.GetRequestID(c),
	})
}

// errorHandler maps errors onto status codes: validation 400,
// authentication 401, unknown school 404, anything else from upstream 502.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	status, code := classify(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			logger.String("path", c.Path()),
			logger.String("request_id", handlers.GetRequestID(c)),
			logger.Err(err),
		)
	}

	return c.Status(status).JSON(JSONResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: err.Error(),
		},
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: s.config.Version},
		RequestID: handlers.GetRequestID(c),
	})
}

func classify(err error) (int, string) {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code, "http_error"
	case shared.IsValidation(err):
		return fiber.StatusBadRequest, "invalid_request"
	case shared.IsUnauthenticated(err):
		return fiber.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, shared.ErrSchoolNotConfigured):
		return fiber.StatusNotFound, "school_not_configured"
	case shared.IsNotFound(err):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "upstream_timeout"
	default:
		return fiber.StatusBadGateway, "upstream_error"
	}
}
