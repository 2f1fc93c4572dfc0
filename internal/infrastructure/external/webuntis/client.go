// Package webuntis implements the typed WebUntis API client on top of the
// JSON-RPC transport, together with the factory that builds clients from the
// school registry.
package webuntis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roosterhub/untis-connector/internal/domain/shared"
	"github.com/roosterhub/untis-connector/internal/domain/untis"
	"github.com/roosterhub/untis-connector/internal/infrastructure/jsonrpc"
	"github.com/roosterhub/untis-connector/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// RPC is the transport the client talks through.
type RPC interface {
	Call(ctx context.Context, method string, params any, result any) error
	SetSessionID(id string)
}

// ClientConfig contains configuration for the WebUntis client.
type ClientConfig struct {
	// School is used for logging only
	School string

	// ClientName is sent with authenticate
	ClientName string

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(school string) ClientConfig {
	return ClientConfig{
		School:     school,
		ClientName: "untis-connector",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the WebUntis API client. Calls on one client are serialized
// because they share a single session.
type Client struct {
	rpc    RPC
	config ClientConfig
	log    *logger.Logger

	callMu        sync.Mutex
	authenticated atomic.Bool
}

// NewClient creates a new WebUntis client.
func NewClient(rpc RPC, config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	if config.ClientName == "" {
		config.ClientName = "untis-connector"
	}
	return &Client{
		rpc:    rpc,
		config: config,
		log:    config.Logger.With(logger.Component("webuntis"), logger.School(config.School)),
	}
}

// IsAuthenticated reports whether the client holds a live session.
func (c *Client) IsAuthenticated() bool {
	return c.authenticated.Load()
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// LogIn authenticates and stores the session id. It does nothing when the
// client is already authenticated.
func (c *Client) LogIn(ctx context.Context, userName, password string) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.authenticated.Load() {
		return nil
	}

	var result AuthenticateResult
	params := authenticateParams{User: userName, Password: password, Client: c.config.ClientName}
	if err := c.rpc.Call(ctx, methodAuthenticate, params, &result); err != nil {
		var rpcErr *jsonrpc.Error
		if errors.As(err, &rpcErr) && rpcErr.Code == jsonrpc.CodeInvalidCredentials {
			return shared.WrapError("webuntis", "LogIn", shared.ErrUnauthenticated, "invalid credentials", err)
		}
		return fmt.Errorf("log in: %w", err)
	}

	if result.SessionID == "" {
		return shared.NewDomainError("webuntis", "LogIn", shared.ErrUnauthenticated, "authenticate returned no session")
	}

	c.rpc.SetSessionID(result.SessionID)
	c.authenticated.Store(true)
	c.log.Info("logged in", logger.Int("person_type", result.PersonType), logger.Int("person_id", result.PersonID))
	return nil
}

// LogOut ends the session. It does nothing when not authenticated.
func (c *Client) LogOut(ctx context.Context) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if !c.authenticated.Load() {
		return nil
	}

	var result json.RawMessage
	if err := c.call(ctx, methodLogout, nil, &result); err != nil {
		return fmt.Errorf("log out: %w", err)
	}

	// WebUntis answers logout with a null result once the session is gone.
	if string(result) == "null" {
		c.authenticated.Store(false)
		c.rpc.SetSessionID("")
		c.log.Info("logged out")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REFERENCE DATA OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// LatestImportTime returns the time of the last data import into WebUntis.
func (c *Client) LatestImportTime(ctx context.Context) (time.Time, error) {
	var millis int64
	if err := c.guardedCall(ctx, "LatestImportTime", methodLatestImportTime, nil, &millis); err != nil {
		return time.Time{}, fmt.Errorf("get latest import time: %w", err)
	}
	return time.UnixMilli(millis), nil
}

func (c *Client) Departments(ctx context.Context) ([]untis.Department, error) {
	var out []untis.Department
	if err := c.guardedCall(ctx, "Departments", methodDepartments, nil, &out); err != nil {
		return nil, fmt.Errorf("get departments: %w", err)
	}
	return out, nil
}

func (c *Client) Teachers(ctx context.Context) ([]untis.Teacher, error) {
	var out []untis.Teacher
	if err := c.guardedCall(ctx, "Teachers", methodTeachers, nil, &out); err != nil {
		return nil, fmt.Errorf("get teachers: %w", err)
	}
	return out, nil
}

func (c *Client) Students(ctx context.Context) ([]untis.Student, error) {
	var out []untis.Student
	if err := c.guardedCall(ctx, "Students", methodStudents, nil, &out); err != nil {
		return nil, fmt.Errorf("get students: %w", err)
	}
	return out, nil
}

// AllClasses returns the classes of the current school year.
func (c *Client) AllClasses(ctx context.Context) ([]untis.Class, error) {
	var out []untis.Class
	if err := c.guardedCall(ctx, "AllClasses", methodClasses, nil, &out); err != nil {
		return nil, fmt.Errorf("get classes: %w", err)
	}
	return out, nil
}

// Classes returns the classes of the given school year.
func (c *Client) Classes(ctx context.Context, schoolYearID int) ([]untis.Class, error) {
	var out []untis.Class
	if err := c.guardedCall(ctx, "Classes", methodClasses, classParams{SchoolYearID: schoolYearID}, &out); err != nil {
		return nil, fmt.Errorf("get classes of school year %d: %w", schoolYearID, err)
	}
	return out, nil
}

func (c *Client) Rooms(ctx context.Context) ([]untis.Room, error) {
	var out []untis.Room
	if err := c.guardedCall(ctx, "Rooms", methodRooms, nil, &out); err != nil {
		return nil, fmt.Errorf("get rooms: %w", err)
	}
	return out, nil
}

func (c *Client) Subjects(ctx context.Context) ([]untis.Subject, error) {
	var out []untis.Subject
	if err := c.guardedCall(ctx, "Subjects", methodSubjects, nil, &out); err != nil {
		return nil, fmt.Errorf("get subjects: %w", err)
	}
	return out, nil
}

func (c *Client) Holidays(ctx context.Context) ([]untis.Holiday, error) {
	var out []untis.Holiday
	if err := c.guardedCall(ctx, "Holidays", methodHolidays, nil, &out); err != nil {
		return nil, fmt.Errorf("get holidays: %w", err)
	}
	return out, nil
}

func (c *Client) SchoolYears(ctx context.Context) ([]untis.SchoolYear, error) {
	var out []untis.SchoolYear
	if err := c.guardedCall(ctx, "SchoolYears", methodSchoolYears, nil, &out); err != nil {
		return nil, fmt.Errorf("get school years: %w", err)
	}
	return out, nil
}

// CurrentSchoolYear returns nil when WebUntis reports no current year.
func (c *Client) CurrentSchoolYear(ctx context.Context) (*untis.SchoolYear, error) {
	var out *untis.SchoolYear
	if err := c.guardedCall(ctx, "CurrentSchoolYear", methodCurrentSchoolYear, nil, &out); err != nil {
		return nil, fmt.Errorf("get current school year: %w", err)
	}
	return out, nil
}

func (c *Client) Timegrids(ctx context.Context) ([]untis.TimegridUnits, error) {
	var out []untis.TimegridUnits
	if err := c.guardedCall(ctx, "Timegrids", methodTimegridUnits, nil, &out); err != nil {
		return nil, fmt.Errorf("get timegrid units: %w", err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMETABLE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Timetable runs the simple form of getTimetable.
func (c *Client) Timetable(ctx context.Context, params TimetableParams) ([]untis.Timetable, error) {
	var out []untis.Timetable
	if err := c.guardedCall(ctx, "Timetable", methodTimetable, params, &out); err != nil {
		return nil, fmt.Errorf("get timetable %s:%d: %w", params.Type, params.ID, err)
	}
	return out, nil
}

// ComprehensiveTimetable runs the options form of getTimetable.
func (c *Client) ComprehensiveTimetable(ctx context.Context, req untis.TimetableRequest) ([]untis.Timetable, error) {
	var out []untis.Timetable
	if err := c.guardedCall(ctx, "ComprehensiveTimetable", methodTimetable, toComprehensiveParams(req), &out); err != nil {
		return nil, fmt.Errorf("get timetable %s %d..%d: %w", elementLabel(req.Element), req.StartDate, req.EndDate, err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// guardedCall fails fast without a session, then serializes the call.
func (c *Client) guardedCall(ctx context.Context, op, method string, params, result any) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if !c.authenticated.Load() {
		return shared.NewDomainError("webuntis", op, shared.ErrUnauthenticated, "log in first")
	}
	return c.call(ctx, method, params, result)
}

// call must run under callMu.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	err := c.rpc.Call(ctx, method, params, result)
	if err == nil {
		return nil
	}
	if jsonrpc.IsSessionExpired(err) {
		c.authenticated.Store(false)
		c.rpc.SetSessionID("")
		c.log.Warn("session expired", logger.Method(method))
		return shared.WrapError("webuntis", method, shared.ErrSessionExpired, "session expired", err)
	}
	return err
}
