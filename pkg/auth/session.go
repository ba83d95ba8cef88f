// Package auth carries API sessions through contexts and HTTP requests.
//
// A [Session] is the opaque token returned by user.login, bound to the
// reference of the user it belongs to. Sessions are obtained once per test
// class and never refreshed; an expired session fails the test.
package auth

import (
	"fmt"
	"log/slog"
)

// Token is an API session token. It is redacted when printed or logged.
type Token string

// String implements fmt.Stringer and always returns "[REDACTED]".
func (t Token) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer so %#v does not leak the value.
func (t Token) GoString() string { return `auth.Token("[REDACTED]")` }

// LogValue implements slog.LogValuer.
func (t Token) LogValue() slog.Value { return slog.StringValue("[REDACTED]") }

// Value returns the raw token for use in Authorization headers.
func (t Token) Value() string { return string(t) }

// Session is an authenticated API session.
type Session struct {
	// UserRef is the ":user:name" reference of the session owner, or "" for
	// sessions not created from a fixture user (the harness admin).
	UserRef string

	// Username is the login name used to obtain the session.
	Username string

	// Token is the session token.
	Token Token
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool { return s.Token != "" }

// String implements fmt.Stringer without exposing the token.
func (s Session) String() string {
	return fmt.Sprintf("Session{User: %q, Ref: %q}", s.Username, s.UserRef)
}

// LogValue implements slog.LogValuer.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", s.Username),
		slog.String("user_ref", s.UserRef),
	)
}
