package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const (
	sessionKey contextKey = iota
)

// ContextWithSession returns a context carrying s. Calls made with the
// returned context are authenticated as s by [RoundTripper].
func ContextWithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session attached to ctx.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// MustSessionFromContext is SessionFromContext for code paths where a
// session is guaranteed, such as handlers behind [HTTPMiddleware].
func MustSessionFromContext(ctx context.Context) Session {
	s, ok := SessionFromContext(ctx)
	if !ok {
		panic("auth: no session in context")
	}
	return s
}

// TraceIDFromContext returns the active OpenTelemetry trace ID, if any.
// The call journal records it so a failed call can be found in traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
