// Package journal records every API call the harness makes: the method,
// the resolved params, the acting user, the outcome and the duration.
//
// An entry moves through a short lifecycle:
//
//	started → success
//	        → api_error        (the API answered with an error object)
//	        → transport_error  (no usable answer: network, HTTP status, body)
//
// Sinks implement [Journal]. Entries are written to slog by default and
// can additionally be pushed to a Redis list or archived to an S3/MinIO
// bucket, which keeps a replayable trail of what a CI run sent.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion is written with every entry. Bump it on breaking changes
// to the JSON form.
const SchemaVersion = 1

// Outcome classifies how a call ended.
type Outcome string

const (
	// OutcomeStarted marks an entry that has not finished yet.
	OutcomeStarted Outcome = "started"

	OutcomeSuccess        Outcome = "success"
	OutcomeAPIError       Outcome = "api_error"
	OutcomeTransportError Outcome = "transport_error"
)

func (o Outcome) String() string { return string(o) }

// Valid reports whether o is a recognized outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeStarted, OutcomeSuccess, OutcomeAPIError, OutcomeTransportError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether o is a final outcome.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeSuccess || o == OutcomeAPIError || o == OutcomeTransportError
}

// Entry is one API call.
type Entry struct {
	Schema int    `json:"schema"`
	ID     string `json:"id"`
	RunID  string `json:"run_id"`

	// RequestID is the JSON-RPC id sent with the request.
	RequestID int64 `json:"request_id"`

	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`

	// Actor is the user reference of the session the call ran under, or
	// empty for unauthenticated calls.
	Actor string `json:"actor,omitempty"`

	Outcome   Outcome `json:"outcome"`
	ErrorCode int     `json:"error_code,omitempty"`
	ErrorData string  `json:"error_data,omitempty"`

	TraceID   string        `json:"trace_id,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// NewRunID returns a fresh identifier for a test run.
func NewRunID() string {
	return uuid.NewString()
}

// NewEntry starts an entry for method. params are marshaled immediately so
// later mutation of the caller's map does not change the record.
func NewEntry(runID, method string, params any) (*Entry, error) {
	if method == "" {
		return nil, errors.New("journal: entry method must not be empty")
	}
	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("journal: cannot marshal params of %s: %w", method, err)
		}
		raw = b
	}
	return &Entry{
		Schema:    SchemaVersion,
		ID:        uuid.NewString(),
		RunID:     runID,
		Method:    method,
		Params:    raw,
		Outcome:   OutcomeStarted,
		StartedAt: time.Now().UTC(),
	}, nil
}

// Succeed finishes the entry with [OutcomeSuccess].
func (e *Entry) Succeed() {
	e.finish(OutcomeSuccess)
}

// FailAPI finishes the entry with the API error the server returned.
func (e *Entry) FailAPI(code int, data string) {
	e.ErrorCode = code
	e.ErrorData = data
	e.finish(OutcomeAPIError)
}

// FailTransport finishes the entry with a transport failure.
func (e *Entry) FailTransport(err error) {
	if err != nil {
		e.ErrorData = err.Error()
	}
	e.finish(OutcomeTransportError)
}

func (e *Entry) finish(o Outcome) {
	e.Outcome = o
	e.Duration = time.Since(e.StartedAt)
}

// Validate checks required fields.
func (e *Entry) Validate() error {
	if e.ID == "" {
		return errors.New("journal: entry ID is required")
	}
	if e.Method == "" {
		return errors.New("journal: entry method is required")
	}
	if !e.Outcome.Valid() {
		return fmt.Errorf("journal: invalid entry outcome %q", e.Outcome)
	}
	if e.StartedAt.IsZero() {
		return errors.New("journal: entry started_at is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("journal: entry duration must not be negative, got %s", e.Duration)
	}
	return nil
}
