package auth

import (
	"context"
	"net/http"
	"strings"
)

// HeaderAuthorization carries the bearer token.
const HeaderAuthorization = "Authorization"

const bearerPrefix = "Bearer "

// ExtractBearerToken returns the token of a "Bearer <token>" header value.
// The prefix is matched case-insensitively. Returns "" otherwise.
func ExtractBearerToken(header string) string {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return header[len(bearerPrefix):]
}

// RoundTripper sets the Authorization header from the session found in
// the request context. Requests without a session fall back to the
// default session, if one is set, and are otherwise sent unchanged.
type RoundTripper struct {
	wrapped  http.RoundTripper
	fallback Session
}

// NewRoundTripper wraps transport. If transport is nil,
// http.DefaultTransport is used.
func NewRoundTripper(transport http.RoundTripper) *RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &RoundTripper{wrapped: transport}
}

// WithDefault returns a copy of t that authenticates session-less requests
// as s.
func (t *RoundTripper) WithDefault(s Session) *RoundTripper {
	return &RoundTripper{wrapped: t.wrapped, fallback: s}
}

// RoundTrip implements http.RoundTripper. The request is cloned before its
// headers are modified.
func (t *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	s, ok := SessionFromContext(r.Context())
	if !ok {
		s = t.fallback
	}
	if !s.Valid() {
		return t.wrapped.RoundTrip(r)
	}
	clone := r.Clone(r.Context())
	clone.Header.Set(HeaderAuthorization, bearerPrefix+s.Token.Value())
	return t.wrapped.RoundTrip(clone)
}

// SessionValidator maps a bearer token back to its session on the server
// side.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (Session, error)
}

// HTTPMiddleware attaches the session of the request's bearer token to the
// request context. Requests without a token pass through unauthenticated,
// since the login method itself needs no session. An unknown token is
// answered with 401.
func HTTPMiddleware(validator SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			s, err := validator.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid session", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), s)))
		})
	}
}
