package apitest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/auth"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
)

// ResultCheck runs literal assertions on a successful response.
type ResultCheck func(t testing.TB, resp *jsonrpc.Response)

type callOptions struct {
	unchanged []string
	result    any
	hasResult bool
	checks    []ResultCheck
}

// CallOption configures one call.
type CallOption func(*callOptions)

// WithUnchangedTables hashes tables before a call that is expected to
// fail and fails the test if any of them changed. Ignored for calls that
// are expected to succeed.
func WithUnchangedTables(tables ...string) CallOption {
	return func(o *callOptions) { o.unchanged = append(o.unchanged, tables...) }
}

// WithResult requires the decoded result to equal want after the
// references in want are resolved.
func WithResult(want any) CallOption {
	return func(o *callOptions) {
		o.result = want
		o.hasResult = true
	}
}

// WithResultCheck adds an assertion on a successful response.
func WithResultCheck(check ResultCheck) CallOption {
	return func(o *callOptions) { o.checks = append(o.checks, check) }
}

// Call sends method as the admin user. See [Actor.Call].
func (e *Env) Call(t testing.TB, method string, params any, exp expect.Expectation, opts ...CallOption) *jsonrpc.Response {
	t.Helper()
	e.mu.Lock()
	admin := e.admin
	e.mu.Unlock()
	return e.call(t, admin, method, params, exp, opts...)
}

// Actor sends calls with the session of one user.
type Actor struct {
	env     *Env
	session auth.Session
}

// As returns an Actor calling with the session stored for userRef by
// [Env.Login]. The test fails if there is none.
func (e *Env) As(t testing.TB, userRef string) *Actor {
	t.Helper()
	s, ok := e.Session(userRef)
	require.True(t, ok, "apitest: no session for %s; call Login first", userRef)
	return &Actor{env: e, session: s}
}

// Session returns the session the actor calls with.
func (a *Actor) Session() auth.Session { return a.session }

// Call resolves the references in params, sends method and checks the
// response against exp. With [WithUnchangedTables] and an error
// expectation, the listed tables must hash the same before and after.
// Any mismatch fails the test immediately. The response is returned for
// further assertions.
func (a *Actor) Call(t testing.TB, method string, params any, exp expect.Expectation, opts ...CallOption) *jsonrpc.Response {
	t.Helper()
	return a.env.call(t, a.session, method, params, exp, opts...)
}

func (e *Env) call(t testing.TB, session auth.Session, method string, params any, exp expect.Expectation, opts ...CallOption) *jsonrpc.Response {
	t.Helper()
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx := t.Context()
	if session.Valid() {
		ctx = auth.ContextWithSession(ctx, session)
	}

	resolved, err := e.resolver.Resolve(params)
	require.NoError(t, err, "%s: cannot resolve params", method)

	var snap *dbassert.Snapshot
	if exp.ExpectsError() && len(o.unchanged) > 0 {
		require.NotNil(t, e.db, "%s: unchanged tables need a database", method)
		snap, err = e.db.Snapshot(ctx, o.unchanged...)
		require.NoError(t, err, "%s: cannot hash tables", method)
	}

	resp, err := e.client.Call(ctx, method, resolved)
	require.NoError(t, err, "%s: call failed", method)
	require.NoError(t, exp.Verify(resp), "%s: unexpected outcome", method)

	if snap != nil {
		require.NoError(t, snap.Verify(ctx), "%s: a rejected call changed the database", method)
	}

	if o.hasResult {
		want, err := e.resolver.Resolve(o.result)
		require.NoError(t, err, "%s: cannot resolve expected result", method)
		require.NoError(t, expect.MatchResult(resp, want), "%s: result mismatch", method)
	}
	if !exp.ExpectsError() {
		for _, check := range o.checks {
			check(t, resp)
		}
	}
	return resp
}
