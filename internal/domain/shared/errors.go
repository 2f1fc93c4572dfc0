// Package shared holds the error taxonomy used by every layer of the connector.
package shared

import (
	"errors"
	"fmt"
)

// Base errors for errors.Is checks.
var (
	ErrNotFound     = errors.New("entity not found")
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthenticated is returned when a data call is made without a session.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrSessionExpired is returned when WebUntis rejects an expired session.
	ErrSessionExpired = errors.New("session expired")

	ErrConfiguration       = errors.New("configuration error")
	ErrSchoolNotConfigured = errors.New("school not configured")

	ErrExternalService = errors.New("external service error")
)

// DomainError carries the layer, operation and kind of a failure.
type DomainError struct {
	Domain  string // e.g. "webuntis", "query", "config"
	Op      string // e.g. "LogIn", "GetTimetables"
	Kind    error  // base error for errors.Is
	Message string
	Err     error // underlying error, optional
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches both the Kind and the wrapped error.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{Domain: domain, Op: op, Kind: kind, Message: message, Err: err}
}

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidInput)
}

// IsUnauthenticated reports a missing or expired session.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrSessionExpired)
}
