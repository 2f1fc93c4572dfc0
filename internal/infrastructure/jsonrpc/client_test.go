package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Header http.Header
	Cookie string
	Raw    map[string]json.RawMessage
	ID     string
	Method string
}

// rpcServer answers every request with reply(req). The returned counter
// tracks hits.
func rpcServer(t *testing.T, reply func(w http.ResponseWriter, req capturedRequest)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		req := capturedRequest{Header: r.Header.Clone(), Raw: raw}
		if c, err := r.Cookie(SessionCookie); err == nil {
			req.Cookie = c.Value
		}
		_ = json.Unmarshal(raw["id"], &req.ID)
		_ = json.Unmarshal(raw["method"], &req.Method)
		reply(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeResult(w http.ResponseWriter, id string, result any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
}

func writeError(w http.ResponseWriter, id string, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0", "id": id,
		"error": map[string]any{"code": code, "message": msg},
	})
}

func testClient(url string) *Client {
	cfg := DefaultConfig(url)
	cfg.RetryBaseDelay = time.Millisecond
	cfg.RetryMaxDelay = 5 * time.Millisecond
	cfg.IDs = &SequenceGenerator{}
	return NewClient(cfg)
}

func TestCall_SendsEnvelopeHeadersAndCookie(t *testing.T) {
	var got capturedRequest
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		got = req
		writeResult(w, req.ID, []map[string]any{{"id": 1, "name": "2019/2020"}})
	})

	c := testClient(srv.URL)
	c.SetSessionID("abc123")

	var years []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	err := c.Call(context.Background(), "getSchoolyears", nil, &years)
	require.NoError(t, err)

	assert.Equal(t, "getSchoolyears", got.Method)
	assert.Equal(t, "1", got.ID)
	assert.Equal(t, "abc123", got.Cookie)
	assert.Equal(t, "application/json-rpc", got.Header.Get("Accept"))
	assert.Equal(t, "untis-connector/1.0", got.Header.Get("User-Agent"))
	assert.NotContains(t, got.Raw, "params")
	assert.JSONEq(t, `"2.0"`, string(got.Raw["jsonrpc"]))

	require.Len(t, years, 1)
	assert.Equal(t, "2019/2020", years[0].Name)
}

func TestCall_NoCookieWithoutSession(t *testing.T) {
	var got capturedRequest
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		got = req
		writeResult(w, req.ID, true)
	})

	c := testClient(srv.URL)
	c.SetSessionID("gone")
	c.SetSessionID("")

	require.NoError(t, c.Call(context.Background(), "logout", nil, nil))
	assert.Empty(t, got.Cookie)
	assert.Empty(t, c.SessionID())
}

func TestCall_SendsParams(t *testing.T) {
	var got capturedRequest
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		got = req
		writeResult(w, req.ID, []any{})
	})

	c := testClient(srv.URL)
	err := c.Call(context.Background(), "getKlassen", map[string]int{"schoolyearId": 7}, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"schoolyearId":7}`, string(got.Raw["params"]))
}

func TestCall_MapsErrorMember(t *testing.T) {
	srv, hits := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		writeError(w, req.ID, CodeNotAuthenticated, "not authenticated")
	})

	c := testClient(srv.URL)
	err := c.Call(context.Background(), "getTeachers", nil, nil)
	require.Error(t, err)

	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeNotAuthenticated, rpcErr.Code)
	assert.Equal(t, "not authenticated", rpcErr.Message)
	assert.True(t, IsSessionExpired(err))
	assert.Equal(t, int32(1), hits.Load(), "rpc errors are not retried")
}

func TestCall_OtherErrorCodeIsNotSessionExpiry(t *testing.T) {
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		writeError(w, req.ID, CodeNoRight, "no right")
	})

	err := testClient(srv.URL).Call(context.Background(), "getStudents", nil, nil)
	require.Error(t, err)
	assert.False(t, IsSessionExpired(err))
}

func TestCall_IDMismatch(t *testing.T) {
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		writeResult(w, "someone-else", 1)
	})

	err := testClient(srv.URL).Call(context.Background(), "getRooms", nil, nil)
	assert.ErrorIs(t, err, ErrIDMismatch)
}

func TestCall_NumericResponseIDMatches(t *testing.T) {
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":1571234567890}`))
	})

	var ts int64
	require.NoError(t, testClient(srv.URL).Call(context.Background(), "getLatestImportTime", nil, &ts))
	assert.Equal(t, int64(1571234567890), ts)
}

func TestCall_EmptyResponse(t *testing.T) {
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID})
	})

	err := testClient(srv.URL).Call(context.Background(), "getSubjects", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv, hits := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		// attempts reuse the request id
		assert.Equal(t, "1", req.ID)
		if calls.Add(1) == 1 {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		writeResult(w, req.ID, "ok")
	})

	var out string
	require.NoError(t, testClient(srv.URL).Call(context.Background(), "getDepartments", nil, &out))
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCall_ClientErrorStatusNotRetried(t *testing.T) {
	srv, hits := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	err := testClient(srv.URL).Call(context.Background(), "getHolidays", nil, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCall_GivesUpAfterMaxAttempts(t *testing.T) {
	srv, hits := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	})

	err := testClient(srv.URL).Call(context.Background(), "getTimegridUnits", nil, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestCall_Cancelled(t *testing.T) {
	srv, hits := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		writeResult(w, req.ID, 1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := testClient(srv.URL).Call(ctx, "getSchoolyears", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestNotify_OmitsID(t *testing.T) {
	var got capturedRequest
	srv, _ := rpcServer(t, func(w http.ResponseWriter, req capturedRequest) {
		got = req
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, testClient(srv.URL).Notify(context.Background(), "ping", nil))
	assert.Equal(t, "ping", got.Method)
	assert.NotContains(t, got.Raw, "id")
}

func TestIsTransportFailure(t *testing.T) {
	assert.False(t, isTransportFailure(&Error{Code: CodeInvalidCredentials}))
	assert.False(t, isTransportFailure(context.Canceled))
	assert.False(t, isTransportFailure(&StatusError{StatusCode: 404}))
	assert.True(t, isTransportFailure(&StatusError{StatusCode: 502}))
	assert.True(t, isTransportFailure(context.DeadlineExceeded))
}
