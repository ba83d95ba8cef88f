package jsonrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/journal"
)

// handlerFunc answers a decoded request with a result or an error.
type handlerFunc func(r *http.Request, req Request) (result any, rpcErr *Error)

func newServer(t *testing.T, h handlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Request
			Params json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var params any
		_ = json.Unmarshal(req.Params, &params)
		req.Request.Params = params

		result, rpcErr := h(r, req.Request)
		resp := map[string]any{"jsonrpc": Version, "id": req.ID}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	c, err := New(url, opts...)
	require.NoError(t, err)
	return c
}

// ===========================================================================
// New
// ===========================================================================

func TestNew_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	for _, ep := range []string{"", "localhost:8080", "ftp://host/api", "http://", "http://[::1"} {
		_, err := New(ep)
		assert.True(t, sserr.IsValidation(err), "endpoint %q: got %v", ep, err)
	}
}

// ===========================================================================
// Call
// ===========================================================================

func TestCall_Success(t *testing.T) {
	t.Parallel()

	var gotContentType string
	srv := newServer(t, func(r *http.Request, req Request) (any, *Error) {
		gotContentType = r.Header.Get("Content-Type")
		assert.Equal(t, "host.create", req.Method)
		assert.Equal(t, Version, req.JSONRPC)
		return map[string]any{"hostids": []string{"10084"}}, nil
	})

	resp, err := newClient(t, srv.URL).Call(context.Background(), "host.create", map[string]any{"host": "h1"})
	require.NoError(t, err)
	assert.Equal(t, ContentType, gotContentType)
	assert.True(t, resp.HasResult())
	assert.False(t, resp.Failed())
	assert.Equal(t, "", resp.ErrorData())

	ids, err := resp.IDs("hostids")
	require.NoError(t, err)
	assert.Equal(t, []string{"10084"}, ids)
}

func TestCall_APIErrorIsNotAGoError(t *testing.T) {
	t.Parallel()

	msg := `Invalid parameter "/1/attempt_interval": value must be "5s".`
	srv := newServer(t, func(*http.Request, Request) (any, *Error) {
		return nil, &Error{Code: -32602, Message: "Invalid params.", Data: msg}
	})

	resp, err := newClient(t, srv.URL).Call(context.Background(), "connector.create", []any{})
	require.NoError(t, err)
	assert.True(t, resp.Failed())
	assert.False(t, resp.HasResult())
	assert.Equal(t, msg, resp.ErrorData())
	assert.Equal(t, -32602, resp.Error.Code)
}

func TestCall_RequestIDsAreMonotonic(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var ids []int64
	srv := newServer(t, func(_ *http.Request, req Request) (any, *Error) {
		mu.Lock()
		ids = append(ids, req.ID)
		mu.Unlock()
		return true, nil
	})

	c := newClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), "apiinfo.version", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestCall_TransportErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    sserr.Code
	}{
		{
			name: "http status",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "bad gateway", http.StatusBadGateway)
			},
			code: sserr.CodeRPCTransport,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
			code: sserr.CodeRPCProtocol,
		},
		{
			name: "id mismatch",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","result":true,"id":42}`))
			},
			code: sserr.CodeRPCProtocol,
		},
		{
			name: "neither result nor error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
			},
			code: sserr.CodeRPCProtocol,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := newClient(t, srv.URL).Call(context.Background(), "user.get", nil)
			require.Error(t, err)
			assert.Equal(t, tt.code, sserr.GetCode(err))
			assert.True(t, sserr.IsRPC(err))
		})
	}
}

func TestCall_ConnectionRefused(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).Call(context.Background(), "user.get", nil)
	assert.True(t, sserr.HasCode(err, sserr.CodeRPCTransport), "got %v", err)
}

func TestCall_Timeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClient(t, srv.URL).Call(ctx, "configuration.import", nil)
	assert.True(t, sserr.HasCode(err, sserr.CodeTimeoutRPC), "got %v", err)
	assert.True(t, sserr.IsRetryable(err))
}

func TestCall_UnencodableParams(t *testing.T) {
	t.Parallel()

	c := newClient(t, "http://127.0.0.1:1")
	_, err := c.Call(context.Background(), "host.create", map[string]any{"x": func() {}})
	assert.True(t, sserr.IsValidation(err))
}

func TestCall_SendsSessionToken(t *testing.T) {
	t.Parallel()

	var got string
	srv := newServer(t, func(r *http.Request, _ Request) (any, *Error) {
		got = r.Header.Get(auth.HeaderAuthorization)
		return []any{}, nil
	})
	c := newClient(t, srv.URL, WithHTTPClient(srv.Client()))

	_, err := c.Call(context.Background(), "user.get", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	ctx := auth.ContextWithSession(context.Background(), auth.Session{UserRef: ":user:guest", Token: "tok-1"})
	_, err = c.Call(ctx, "user.get", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", got)
}

// ===========================================================================
// Journal / tracing
// ===========================================================================

func TestCall_RecordsJournal(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(_ *http.Request, req Request) (any, *Error) {
		if req.Method == "user.delete" {
			return nil, &Error{Code: -32500, Message: "Application error.", Data: "User is not allowed to delete himself."}
		}
		return map[string]any{"userids": []string{"3"}}, nil
	})
	mem := journal.NewMemoryJournal()
	c := newClient(t, srv.URL, WithJournal(mem, "run-1"))

	ctx := auth.ContextWithSession(context.Background(), auth.Session{UserRef: ":user:admin", Token: "t"})
	_, err := c.Call(ctx, "user.create", map[string]any{"username": "u"})
	require.NoError(t, err)
	_, err = c.Call(ctx, "user.delete", []string{"1"})
	require.NoError(t, err)

	entries := mem.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, journal.OutcomeSuccess, entries[0].Outcome)
	assert.Equal(t, ":user:admin", entries[0].Actor)
	assert.Equal(t, "run-1", entries[0].RunID)
	assert.Equal(t, int64(1), entries[0].RequestID)
	assert.JSONEq(t, `{"username":"u"}`, string(entries[0].Params))

	assert.Equal(t, journal.OutcomeAPIError, entries[1].Outcome)
	assert.Equal(t, "User is not allowed to delete himself.", entries[1].ErrorData)
	assert.Equal(t, -32500, entries[1].ErrorCode)
}

func TestCall_Span(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := newServer(t, func(*http.Request, Request) (any, *Error) {
		return nil, &Error{Code: -32602, Data: "bad"}
	})
	mem := journal.NewMemoryJournal()
	_, err := newClient(t, srv.URL, WithJournal(mem, "r")).Call(context.Background(), "service.create", nil)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "jsonrpc.service.create", spans[0].Name)

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "service.create", attrs["rpc.method"])
	assert.Equal(t, int64(-32602), attrs["rpc.jsonrpc.error_code"])

	assert.Equal(t, spans[0].SpanContext.TraceID().String(), mem.Entries()[0].TraceID)
}

// ===========================================================================
// Login
// ===========================================================================

func TestLogin(t *testing.T) {
	t.Parallel()

	srv := newServer(t, func(_ *http.Request, req Request) (any, *Error) {
		p := req.Params.(map[string]any)
		if p["username"] == "Admin" && p["password"] == "zabbix" {
			return "0424bd59b807674191e7d77572075f33", nil
		}
		return nil, &Error{Code: -32500, Message: "Application error.", Data: "Incorrect user name or password or account is temporarily blocked."}
	})
	mem := journal.NewMemoryJournal()
	c := newClient(t, srv.URL, WithJournal(mem, "r"))

	s, err := c.Login(context.Background(), "Admin", "zabbix")
	require.NoError(t, err)
	assert.Equal(t, "Admin", s.Username)
	assert.Equal(t, "0424bd59b807674191e7d77572075f33", s.Token.Value())
	assert.True(t, s.Valid())

	_, err = c.Login(context.Background(), "Admin", "wrong")
	require.Error(t, err)
	assert.True(t, sserr.HasCode(err, sserr.CodeRPC))
	assert.Contains(t, err.Error(), "Incorrect user name")

	for _, e := range mem.Entries() {
		assert.False(t, strings.Contains(string(e.Params), "zabbix"), "password leaked into journal")
		assert.Contains(t, string(e.Params), "[REDACTED]")
	}
}

// ===========================================================================
// Response helpers
// ===========================================================================

func TestResponse_IDs(t *testing.T) {
	t.Parallel()

	r := &Response{Result: json.RawMessage(`{"itemids":["1",2,"3"],"flag":true}`)}
	ids, err := r.IDs("itemids")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, ids)

	_, err = r.IDs("hostids")
	assert.True(t, sserr.HasCode(err, sserr.CodeRPCProtocol))
	_, err = r.IDs("flag")
	assert.Error(t, err)
	_, err = (&Response{}).IDs("x")
	assert.Error(t, err)
}

func TestResponse_Value(t *testing.T) {
	t.Parallel()

	r := &Response{Result: json.RawMessage(`[{"hostid":"1","status":0}]`)}
	v, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"hostid": "1", "status": json.Number("0")}}, v)
}

func TestError_UnmarshalNonStringData(t *testing.T) {
	t.Parallel()

	var e Error
	require.NoError(t, json.Unmarshal([]byte(`{"code":1,"message":"m","data":{"x":1}}`), &e))
	assert.Equal(t, `{"x":1}`, e.Data)

	require.NoError(t, json.Unmarshal([]byte(`{"code":1,"message":"m","data":null}`), &e))
	assert.Equal(t, "", e.Data)
	assert.Contains(t, (&Error{Code: 7, Message: "m", Data: "d"}).Error(), "7")
}
