package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the protocol version sent with every request.
const Version = "2.0"

// WebUntis error codes.
const (
	CodeInvalidSchool      = -8500
	CodeInvalidCredentials = -8504
	CodeNoRight            = -8509
	CodeNotAuthenticated   = -8520
)

// Request is the JSON-RPC request envelope.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Response is the JSON-RPC response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// idString returns the response id as a string, accepting both string and
// numeric encodings.
func (r Response) idString() string {
	var s string
	if err := json.Unmarshal(r.ID, &s); err == nil {
		return s
	}
	return string(r.ID)
}

// Error is the error member of a JSON-RPC response.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// IsSessionExpired reports whether err carries the WebUntis
// "not authenticated" code.
func IsSessionExpired(err error) bool {
	var rpcErr *Error
	return errors.As(err, &rpcErr) && rpcErr.Code == CodeNotAuthenticated
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("jsonrpc: unexpected http status %d", e.StatusCode)
}

var (
	// ErrIDMismatch is returned when the response id differs from the request id.
	ErrIDMismatch = errors.New("jsonrpc: response id does not match request id")

	// ErrEmptyResponse is returned when a response has neither result nor error.
	ErrEmptyResponse = errors.New("jsonrpc: response has neither result nor error")
)
