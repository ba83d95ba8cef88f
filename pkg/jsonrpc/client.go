// Package jsonrpc is the HTTP client for the JSON-RPC management API under
// test.
//
// Transport failures (network errors, non-2xx status codes, bodies that
// are not a JSON-RPC response) are returned as errors with RPC_xxx or
// TIMEOUT_003 codes. An error object returned by the API is not a Go
// error: it is part of the [Response] and is what tests assert on.
//
// Calls are never retried. The session of the context, if any, is sent as
// a bearer token.
package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/auth"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/journal"
)

const tracerName = "github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"

const (
	// ContentType is sent on every request.
	ContentType = "application/json-rpc"

	// MethodLogin exchanges credentials for a session token.
	MethodLogin = "user.login"

	DefaultTimeout = 30 * time.Second

	// maxBodyBytes bounds how much of a response is read.
	maxBodyBytes = 32 << 20
)

// Client sends JSON-RPC requests to one endpoint. It is safe for
// concurrent use; request ids are unique per Client.
type Client struct {
	endpoint string
	http     *http.Client
	journal  journal.Journal
	runID    string
	logger   *slog.Logger
	tracer   trace.Tracer

	lastID atomic.Int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is wrapped with
// [auth.RoundTripper].
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			clone := *hc
			c.http = &clone
		}
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithJournal records every call in j under runID.
func WithJournal(j journal.Journal, runID string) Option {
	return func(c *Client) {
		if j != nil {
			c.journal = j
			c.runID = runID
		}
	}
}

// WithLogger sets the logger used for journal failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a Client for endpoint, for example
// "http://localhost:8080/api_jsonrpc.php".
func New(endpoint string, opts ...Option) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidationFormat, "jsonrpc: invalid endpoint %q", endpoint)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, sserr.Newf(sserr.CodeValidationFormat,
			"jsonrpc: endpoint %q must be an absolute http(s) URL", endpoint)
	}

	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: DefaultTimeout},
		journal:  journal.Discard,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.Transport = auth.NewRoundTripper(c.http.Transport)
	return c, nil
}

// Endpoint returns the endpoint URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Call sends method with params and returns the decoded response. An API
// error is returned inside the response with a nil error.
//
// Error codes returned:
//   - [sserr.CodeValidation]: params cannot be encoded
//   - [sserr.CodeRPCTransport]: network failure or non-2xx status
//   - [sserr.CodeRPCProtocol]: body is not a matching JSON-RPC response
//   - [sserr.CodeTimeoutRPC]: the context or the HTTP client timed out
func (c *Client) Call(ctx context.Context, method string, params any) (*Response, error) {
	id := c.lastID.Add(1)

	ctx, span := c.tracer.Start(ctx, "jsonrpc."+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", method),
		attribute.Int64("rpc.jsonrpc.request_id", id),
	)

	entry, err := journal.NewEntry(c.runID, method, journalParams(method, params))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, sserr.Wrap(err, sserr.CodeValidation, "jsonrpc: cannot encode params")
	}
	entry.RequestID = id
	if s, ok := auth.SessionFromContext(ctx); ok {
		entry.Actor = s.UserRef
		span.SetAttributes(attribute.String("apitest.actor", s.UserRef))
	}
	if traceID, ok := auth.TraceIDFromContext(ctx); ok {
		entry.TraceID = traceID
	}

	resp, err := c.roundTrip(ctx, method, params, id)
	switch {
	case err != nil:
		entry.FailTransport(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp.Error != nil:
		entry.FailAPI(resp.Error.Code, resp.Error.Data)
		span.SetAttributes(attribute.Int("rpc.jsonrpc.error_code", resp.Error.Code))
		span.SetStatus(codes.Error, resp.Error.Data)
	default:
		entry.Succeed()
		span.SetStatus(codes.Ok, "")
	}

	if jerr := c.journal.Record(ctx, *entry); jerr != nil {
		c.logger.WarnContext(ctx, "failed to record api call", "method", method, "error", jerr)
	}
	return resp, err
}

func (c *Client) roundTrip(ctx context.Context, method string, params any, id int64) (*Response, error) {
	body, err := json.Marshal(Request{JSONRPC: Version, Method: method, Params: params, ID: id})
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "jsonrpc: cannot encode params")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeRPCTransport, "jsonrpc: cannot build request")
	}
	req.Header.Set("Content-Type", ContentType)
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapTransport(ctx, err, method)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, wrapTransport(ctx, err, method)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, sserr.Newf(sserr.CodeRPCTransport,
			"jsonrpc: %s: unexpected HTTP status %d", method, httpResp.StatusCode).
			WithDetail("status", httpResp.StatusCode).
			WithDetail("body", truncate(string(data), 512))
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeRPCProtocol,
			"jsonrpc: %s: response is not valid JSON-RPC", method).
			WithDetail("body", truncate(string(data), 512))
	}
	if resp.ID != id {
		return nil, sserr.Newf(sserr.CodeRPCProtocol,
			"jsonrpc: %s: response id %d does not match request id %d", method, resp.ID, id)
	}
	if resp.Error == nil && !resp.HasResult() {
		return nil, sserr.Newf(sserr.CodeRPCProtocol,
			"jsonrpc: %s: response has neither result nor error", method)
	}
	return &resp, nil
}

// Login calls user.login and returns the session. UserRef is left empty
// for the caller to fill in. A rejected login is an RPC_001 error carrying
// the API's error data.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Session, error) {
	resp, err := c.Call(ctx, MethodLogin, map[string]any{
		"username": username,
		"password": password,
	})
	if err != nil {
		return auth.Session{}, err
	}
	if resp.Error != nil {
		return auth.Session{}, sserr.Newf(sserr.CodeRPC, "jsonrpc: login as %q rejected: %s", username, resp.Error.Data).
			WithDetail("data", resp.Error.Data)
	}
	var token string
	if err := resp.Decode(&token); err != nil {
		return auth.Session{}, err
	}
	if token == "" {
		return auth.Session{}, sserr.Newf(sserr.CodeRPCProtocol, "jsonrpc: login as %q returned an empty token", username)
	}
	return auth.Session{Username: username, Token: auth.Token(token)}, nil
}

// journalParams keeps credentials out of the journal.
func journalParams(method string, params any) any {
	if method != MethodLogin {
		return params
	}
	m, ok := params.(map[string]any)
	if !ok {
		return params
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	if _, ok := out["password"]; ok {
		out["password"] = "[REDACTED]"
	}
	return out
}

func wrapTransport(ctx context.Context, err error, method string) error {
	var netErr interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return sserr.Wrapf(err, sserr.CodeTimeoutRPC, "jsonrpc: %s timed out", method)
	}
	return sserr.Wrapf(err, sserr.CodeRPCTransport, "jsonrpc: %s failed", method)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + fmt.Sprintf("... (%d bytes)", len(s))
}
