package journal

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
)

// Journal receives finished entries. Record must not retain e after it
// returns; Flush persists anything buffered.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	Flush(ctx context.Context) error
}

// Discard drops every entry.
var Discard Journal = discard{}

type discard struct{}

func (discard) Record(context.Context, Entry) error { return nil }
func (discard) Flush(context.Context) error         { return nil }

// ===========================================================================
// slog
// ===========================================================================

// LogJournal writes one structured log line per entry. Transport errors
// are logged at error level, everything else at info.
type LogJournal struct {
	logger *slog.Logger
}

// NewLogJournal returns a LogJournal. A nil logger uses slog.Default().
func NewLogJournal(logger *slog.Logger) *LogJournal {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogJournal{logger: logger}
}

func (j *LogJournal) Record(ctx context.Context, e Entry) error {
	attrs := []any{
		"method", e.Method,
		"outcome", e.Outcome,
		"duration", e.Duration,
		"request_id", e.RequestID,
		"run_id", e.RunID,
	}
	if e.Actor != "" {
		attrs = append(attrs, "actor", e.Actor)
	}
	if e.TraceID != "" {
		attrs = append(attrs, "trace_id", e.TraceID)
	}
	switch e.Outcome {
	case OutcomeTransportError:
		j.logger.ErrorContext(ctx, "api call failed", append(attrs, "error", e.ErrorData)...)
	case OutcomeAPIError:
		j.logger.InfoContext(ctx, "api call returned error",
			append(attrs, "error_code", e.ErrorCode, "error_data", e.ErrorData)...)
	default:
		j.logger.InfoContext(ctx, "api call", attrs...)
	}
	return nil
}

func (j *LogJournal) Flush(context.Context) error { return nil }

// ===========================================================================
// Memory
// ===========================================================================

// MemoryJournal keeps entries in memory. It is safe for concurrent use.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

func (j *MemoryJournal) Record(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

func (j *MemoryJournal) Flush(context.Context) error { return nil }

// Entries returns a copy of the recorded entries in order.
func (j *MemoryJournal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Methods returns the recorded method names in order.
func (j *MemoryJournal) Methods() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.Method
	}
	return out
}

// Reset drops all entries.
func (j *MemoryJournal) Reset() {
	j.mu.Lock()
	j.entries = nil
	j.mu.Unlock()
}

// ===========================================================================
// Tee
// ===========================================================================

type tee []Journal

// Tee fans entries out to every journal. Nil journals are skipped. All
// sinks are tried; their errors are joined.
func Tee(journals ...Journal) Journal {
	var t tee
	for _, j := range journals {
		if j != nil {
			t = append(t, j)
		}
	}
	return t
}

func (t tee) Record(ctx context.Context, e Entry) error {
	var errs []error
	for _, j := range t {
		if err := j.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t tee) Flush(ctx context.Context) error {
	var errs []error
	for _, j := range t {
		if err := j.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func marshalLine(e Entry) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
