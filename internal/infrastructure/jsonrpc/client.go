// Package jsonrpc implements the JSON-RPC 2.0 over HTTP transport used by
// WebUntis, including the JSESSIONID session cookie.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/roosterhub/untis-connector/pkg/circuitbreaker"
	"github.com/roosterhub/untis-connector/pkg/logger"
	"github.com/roosterhub/untis-connector/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

const (
	// SessionCookie is the cookie carrying the WebUntis session id.
	SessionCookie = "JSESSIONID"

	contentType   = "application/json"
	acceptType    = "application/json-rpc"
	maxBodyBytes  = 32 << 20
	maxErrorBytes = 4 << 10
)

// Config contains configuration for the JSON-RPC client.
type Config struct {
	// URL is the full endpoint, e.g. https://host/WebUntis/jsonrpc.do?school=name
	URL string

	UserAgent string
	Timeout   time.Duration

	// MaxAttempts bounds transport retries. JSON-RPC errors are never retried.
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	// BreakerThreshold consecutive transport failures open the circuit
	// for BreakerTimeout.
	BreakerThreshold int
	BreakerTimeout   time.Duration

	// IDs defaults to UUIDGenerator.
	IDs IDGenerator

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Logger *logger.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		UserAgent:        "untis-connector/1.0",
		Timeout:          30 * time.Second,
		MaxAttempts:      3,
		RetryBaseDelay:   250 * time.Millisecond,
		RetryMaxDelay:    5 * time.Second,
		BreakerThreshold: 5,
		BreakerTimeout:   30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client issues JSON-RPC calls against one endpoint.
type Client struct {
	config     Config
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	ids        IDGenerator
	log        *logger.Logger

	sessionMu sync.RWMutex
	sessionID string
}

// NewClient creates a new JSON-RPC client.
func NewClient(config Config) *Client {
	if config.IDs == nil {
		config.IDs = UUIDGenerator{}
	}
	if config.Logger == nil {
		config.Logger = logger.Nop()
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	log := config.Logger.With(logger.Component("jsonrpc"))

	return &Client{
		config:     config,
		httpClient: httpClient,
		ids:        config.IDs,
		log:        log,
		retrier: retry.New(
			retry.WithMaxAttempts(config.MaxAttempts),
			retry.WithInitialDelay(config.RetryBaseDelay),
			retry.WithMaxDelay(config.RetryMaxDelay),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Warn("retrying jsonrpc call", logger.Attempt(attempt), logger.Err(err), logger.Duration("delay", delay))
			}),
		),
		breaker: circuitbreaker.New(config.URL,
			circuitbreaker.WithFailureThreshold(config.BreakerThreshold),
			circuitbreaker.WithTimeout(config.BreakerTimeout),
			circuitbreaker.WithIsFailure(isTransportFailure),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed", logger.String("from", from.String()), logger.String("to", to.String()))
			}),
		),
	}
}

// URL returns the endpoint.
func (c *Client) URL() string { return c.config.URL }

// SessionID returns the current session id, or "".
func (c *Client) SessionID() string {
	c.sessionMu.RLock()
	defer c.sessionMu.RUnlock()
	return c.sessionID
}

// SetSessionID sets the session id sent as JSESSIONID cookie. An empty id
// clears the session.
func (c *Client) SetSessionID(id string) {
	c.sessionMu.Lock()
	c.sessionID = id
	c.sessionMu.Unlock()
}

// Call invokes method with params and decodes the result into result,
// which may be nil. Params are omitted from the envelope when nil.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	req := Request{JSONRPC: Version, ID: c.ids.NextID(), Method: method, Params: params}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.roundTrip(ctx, req, result)
		})
	})
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	return nil
}

// Notify sends a notification: a request without id whose response is ignored.
func (c *Client) Notify(ctx context.Context, method string, params any) error {
	body, err := json.Marshal(struct {
		JSONRPC string `json:"jsonrpc"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{Version, method, params})
	if err != nil {
		return fmt.Errorf("notify %s: marshal: %w", method, err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return fmt.Errorf("notify %s: %w", method, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notify %s: %w", method, &StatusError{StatusCode: resp.StatusCode})
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (c *Client) roundTrip(ctx context.Context, req Request, result any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return retry.Permanent(fmt.Errorf("marshal request: %w", err))
	}

	start := time.Now()
	resp, err := c.post(ctx, body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	c.log.Debug("jsonrpc call",
		logger.Method(req.Method),
		logger.Int("status", resp.StatusCode),
		logger.Latency(time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return retry.Retryable(statusErr)
		}
		return statusErr
	}

	var envelope Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if envelope.Error != nil {
		return envelope.Error
	}
	if envelope.idString() != req.ID {
		return ErrIDMismatch
	}
	if len(envelope.Result) == 0 {
		return ErrEmptyResponse
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", acceptType)
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if sid := c.SessionID(); sid != "" {
		httpReq.AddCookie(&http.Cookie{Name: SessionCookie, Value: sid})
	}
	return c.httpClient.Do(httpReq)
}

// isTransportFailure counts only faults of the endpoint itself against the
// circuit breaker. Protocol errors and cancellations are answers, not outages.
func isTransportFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}
