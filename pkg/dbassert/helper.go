// Package dbassert reads the database behind the API under test so tests
// can verify persisted state directly: rows, counts and order-independent
// content hashes.
//
// The helper is read-only except for [Helper.Exec], which exists for
// backdoor seeding of rows the API cannot create.
//
// A typical no-write check around a call expected to fail:
//
//	snap, err := db.Snapshot(ctx, "connector")
//	// ... call the API ...
//	changed, err := snap.Changed(ctx)
package dbassert

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

const tracerName = "github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"

const maxStatementLen = 100

var identRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidIdentifier reports whether name is a plain or schema-qualified SQL
// identifier.
func ValidIdentifier(name string) bool {
	return identRE.MatchString(name)
}

// Helper runs assertion queries against one database. It is safe for
// concurrent use if its backend is.
type Helper struct {
	backend Backend
	tracer  trace.Tracer
}

// New returns a Helper over backend.
func New(backend Backend) *Helper {
	return &Helper{backend: backend, tracer: otel.Tracer(tracerName)}
}

// Dialect returns the backend dialect.
func (h *Helper) Dialect() Dialect { return h.backend.Dialect() }

// Close closes the backend.
func (h *Helper) Close() error { return h.backend.Close() }

// Select returns all rows of query.
func (h *Helper) Select(ctx context.Context, query string, args ...any) ([]Row, error) {
	ctx, span := h.startSpan(ctx, "Select", query)
	rows, _, err := h.backend.Query(ctx, query, args...)
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "dbassert: select failed")
	}
	return rows, nil
}

// SelectRow returns the single row of query. No row is NF_001, more than
// one row is ASSERT_003.
func (h *Helper) SelectRow(ctx context.Context, query string, args ...any) (Row, error) {
	rows, err := h.Select(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, sserr.New(sserr.CodeNotFound, "dbassert: query returned no rows").
			WithDetail("query", truncate(query))
	case 1:
		return rows[0], nil
	default:
		return nil, sserr.Newf(sserr.CodeAssertionState, "dbassert: query returned %d rows, want 1", len(rows)).
			WithDetail("query", truncate(query))
	}
}

// SelectColumn returns the first column of every row of query.
func (h *Helper) SelectColumn(ctx context.Context, query string, args ...any) ([]any, error) {
	ctx, span := h.startSpan(ctx, "SelectColumn", query)
	rows, cols, err := h.backend.Query(ctx, query, args...)
	finishSpan(span, err)
	if err != nil {
		return nil, wrapError(err, "dbassert: select failed")
	}
	if len(cols) == 0 {
		return nil, sserr.New(sserr.CodeValidation, "dbassert: query returned no columns")
	}
	out := make([]any, len(rows))
	for i, r := range rows {
		out[i] = r[cols[0]]
	}
	return out, nil
}

// Count returns the number of rows query produces.
func (h *Helper) Count(ctx context.Context, query string, args ...any) (int64, error) {
	wrapped := "SELECT COUNT(*) AS row_count FROM (" + trimStatement(query) + ") count_subquery"
	ctx, span := h.startSpan(ctx, "Count", wrapped)
	rows, _, err := h.backend.Query(ctx, wrapped, args...)
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "dbassert: count failed")
	}
	if len(rows) != 1 {
		return 0, sserr.New(sserr.CodeInternalDatabase, "dbassert: count returned no row")
	}
	return toInt64(rows[0]["row_count"])
}

// Hash returns the content hash of query's result set. See [HashRows].
func (h *Helper) Hash(ctx context.Context, query string, args ...any) (string, error) {
	ctx, span := h.startSpan(ctx, "Hash", query)
	rows, _, err := h.backend.Query(ctx, query, args...)
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "dbassert: hash query failed")
	}
	return HashRows(rows), nil
}

// TableHash returns the content hash of a whole table.
func (h *Helper) TableHash(ctx context.Context, table string) (string, error) {
	if !ValidIdentifier(table) {
		return "", sserr.Newf(sserr.CodeValidationFormat, "dbassert: invalid table name %q", table)
	}
	return h.Hash(ctx, "SELECT * FROM "+h.backend.Dialect().QuoteIdent(table))
}

// Exec runs a write statement. Only for seeding preconditions the API
// offers no creation path for.
func (h *Helper) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, span := h.startSpan(ctx, "Exec", query)
	n, err := h.backend.Exec(ctx, query, args...)
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "dbassert: exec failed")
	}
	return n, nil
}

func (h *Helper) startSpan(ctx context.Context, op, statement string) (context.Context, trace.Span) {
	ctx, span := h.tracer.Start(ctx, "dbassert."+op, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", h.backend.Dialect().String()),
		attribute.String("db.statement", truncate(statement)),
	)
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError keeps codes assigned by the postgres client and classifies
// everything else.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := sserr.AsError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sserr.Wrap(err, sserr.CodeTimeoutDatabase, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalDatabase, message)
}

func trimStatement(q string) string {
	return strings.TrimRight(strings.TrimSpace(q), "; \n\t")
}

func truncate(s string) string {
	if len(s) <= maxStatementLen {
		return s
	}
	return s[:maxStatementLen] + "..."
}
