package apitest

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-apitest/internal/testutil"
	"github.com/StricklySoft/stricklysoft-apitest/internal/testutil/fakeapi"
	"github.com/StricklySoft/stricklysoft-apitest/internal/testutil/fixtures"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/catalog"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/journal"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/preprocessing"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
)

// ===========================================================================
// Test Helpers
// ===========================================================================

func fakeSettings(srv *fakeapi.Server) Settings {
	return Settings{
		API: APISettings{
			URL:      srv.URL,
			Username: fakeapi.AdminUsername,
			Password: fakeapi.AdminPassword,
			Timeout:  5 * time.Second,
		},
		DB: dbassert.Config{Driver: dbassert.DriverSQLite, DSN: srv.DSN},
	}
}

func newTestEnv(t *testing.T) (*Env, *fakeapi.Server, *journal.MemoryJournal) {
	t.Helper()
	srv := fakeapi.New(t)
	mem := journal.NewMemoryJournal()
	env, err := NewEnv(context.Background(), fakeSettings(srv), WithJournal(mem))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env, srv, mem
}

func count(t *testing.T, srv *fakeapi.Server, table string) int {
	t.Helper()
	var n int
	require.NoError(t, srv.DB().QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&n))
	return n
}

// failRecorder captures require failures instead of failing the test.
type failRecorder struct {
	testing.TB
	messages []string
}

type failNow struct{}

func (r *failRecorder) Helper() {}

func (r *failRecorder) Errorf(format string, args ...any) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func (r *failRecorder) FailNow() { panic(failNow{}) }

// expectFailure runs fn and reports the recorded failure messages.
func expectFailure(t *testing.T, fn func(tb testing.TB)) string {
	t.Helper()
	r := &failRecorder{TB: t}
	func() {
		defer func() {
			if v := recover(); v != nil {
				if _, ok := v.(failNow); !ok {
					panic(v)
				}
			}
		}()
		fn(r)
	}()
	require.NotEmpty(t, r.messages, "expected a failure")
	return strings.Join(r.messages, "\n")
}

// ===========================================================================
// Env Tests
// ===========================================================================

func TestNewEnv_InvalidURL(t *testing.T) {
	_, err := NewEnv(context.Background(), Settings{API: APISettings{URL: "localhost", Timeout: time.Second}})
	testutil.RequireErrorCode(t, err, sserr.CodeValidationFormat)
}

func TestNewEnv_BadCredentials(t *testing.T) {
	srv := fakeapi.New(t)
	settings := fakeSettings(srv)
	settings.API.Password = "wrong"
	_, err := NewEnv(context.Background(), settings)
	require.Error(t, err)
	assert.True(t, sserr.IsRPC(err))
}

func TestEnv_BuildAndCall(t *testing.T) {
	env, srv, mem := newTestEnv(t)
	require.NoError(t, env.Build(context.Background(), fixtures.HostGraph()))

	resp := env.Call(t, "item.create", map[string]any{
		"hostid": fixtures.HostRef, "name": "cpu", "key_": "system.cpu", "type": 2, "value_type": 0,
	}, expect.Success())
	ids, err := resp.IDs("itemids")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	row, err := env.DB().SelectRow(context.Background(), `SELECT hostid FROM items WHERE itemid = ?`, ids[0])
	require.NoError(t, err)
	assert.Equal(t, env.ID(reference.KindHost, "web"), fmt.Sprint(row["hostid"]))
	assert.Equal(t, 1, count(t, srv, "items"))

	assert.Equal(t, []string{"user.login", "hostgroup.create", "host.create", "item.create"}, mem.Methods())
	for _, e := range mem.Entries() {
		assert.Equal(t, env.RunID(), e.RunID)
	}
}

func TestEnv_Call_ExpectedError(t *testing.T) {
	env, _, _ := newTestEnv(t)
	require.NoError(t, env.Build(context.Background(), fixtures.HostGraph()))

	env.Call(t, "host.create", map[string]any{
		"host":   "web",
		"groups": []any{map[string]any{"groupid": ":host_group:main"}},
	}, expect.Error(`Host with the same name "web" already exists.`),
		WithUnchangedTables("hosts", "hosts_groups"))

	env.Call(t, "host.create", map[string]any{
		"host":   "other",
		"groups": []any{map[string]any{"groupid": reference.InvalidIDString}},
	}, expect.Error(expect.NotFoundMessage), WithUnchangedTables("hosts"))
}

func TestEnv_Call_MismatchFails(t *testing.T) {
	env, _, _ := newTestEnv(t)

	msg := expectFailure(t, func(tb testing.TB) {
		env.Call(tb, "hostgroup.create", map[string]any{"name": ""}, expect.Success())
	})
	assert.Contains(t, msg, "hostgroup.create: unexpected outcome")

	msg = expectFailure(t, func(tb testing.TB) {
		env.Call(tb, "hostgroup.create", map[string]any{"name": ""}, expect.Error("cannot be empty."))
	})
	assert.Contains(t, msg, "unexpected outcome", "exact mode must not accept a substring")

	env.Call(t, "hostgroup.create", map[string]any{"name": ""}, expect.ErrorContains("cannot be empty."))
}

func TestEnv_Call_UnknownReferenceFails(t *testing.T) {
	env, _, mem := newTestEnv(t)
	msg := expectFailure(t, func(tb testing.TB) {
		env.Call(tb, "host.create", map[string]any{
			"host":   "web",
			"groups": []any{map[string]any{"groupid": ":host_group:nowhere"}},
		}, expect.AnyError())
	})
	assert.Contains(t, msg, ":host_group:nowhere")
	assert.Equal(t, []string{"user.login"}, mem.Methods(), "an unresolved call must not be sent")
}

func TestEnv_Call_WithResult(t *testing.T) {
	env, _, _ := newTestEnv(t)
	require.NoError(t, env.Build(context.Background(), fixture.Graph{}.
		Add("users", "gone", map[string]any{"username": "gone"})))

	env.Call(t, "user.delete", []any{":user:gone"}, expect.Success(),
		WithResult(map[string]any{"userids": []any{":user:gone"}}))
}

func TestEnv_Call_ResultCheck(t *testing.T) {
	env, _, _ := newTestEnv(t)
	require.NoError(t, env.Build(context.Background(), fixtures.HostGraph()))

	env.Call(t, "item.create", map[string]any{
		"hostid": ":host:web", "name": "ordered", "key_": "ordered", "type": 2, "value_type": 3,
		"preprocessing": []preprocessing.Step{
			preprocessing.NotSupported(preprocessing.MatchAny, ""),
			preprocessing.NotSupported(preprocessing.MatchRegex, "abc"),
			preprocessing.Trim(" "),
			preprocessing.NotSupported(preprocessing.MatchNotRegex, "abc"),
		},
	}, expect.Success())

	called := false
	env.Call(t, "item.get", map[string]any{"hostids": []any{":host:web"}}, expect.Success(),
		WithResultCheck(func(t testing.TB, resp *jsonrpc.Response) {
			called = true
			var items []struct {
				Preprocessing []preprocessing.Step `json:"preprocessing"`
			}
			require.NoError(t, resp.Decode(&items))
			require.Len(t, items, 1)
			assert.Equal(t, []preprocessing.Step{
				preprocessing.NotSupported(preprocessing.MatchRegex, "abc"),
				preprocessing.NotSupported(preprocessing.MatchNotRegex, "abc"),
				preprocessing.NotSupported(preprocessing.MatchAny, ""),
				preprocessing.Trim(" "),
			}, items[0].Preprocessing)
		}))
	assert.True(t, called)
}

func TestEnv_LoginAs(t *testing.T) {
	env, _, _ := newTestEnv(t)
	require.NoError(t, env.Build(context.Background(), fixture.Graph{}.
		Add("users", "guest", map[string]any{"username": "guest-api", "passwd": "guest#1"})))

	_, err := env.Login(context.Background(), ":user:guest", "guest-api", "guest#1")
	require.NoError(t, err)

	guest := env.As(t, ":user:guest")
	assert.Equal(t, "guest-api", guest.Session().Username)
	guest.Call(t, "user.delete", []any{":user:guest"},
		expect.Error("User is not allowed to delete himself."), WithUnchangedTables("users"))

	_, err = env.Login(context.Background(), "guest", "guest-api", "guest#1")
	assert.True(t, sserr.IsValidation(err))
}

func TestEnv_CloseRemovesFixtures(t *testing.T) {
	srv := fakeapi.New(t)
	env, err := NewEnv(context.Background(), fakeSettings(srv))
	require.NoError(t, err)
	require.NoError(t, env.Build(context.Background(), fixtures.HostGraph()))
	assert.Equal(t, 1, count(t, srv, "hosts"))

	require.NoError(t, env.Close(context.Background()))
	assert.Zero(t, count(t, srv, "hosts"))
	assert.Zero(t, count(t, srv, "hstgrp"))
	assert.Zero(t, env.Registry().Len())
}

func TestEnv_DetachThenAdopt(t *testing.T) {
	srv := fakeapi.New(t)
	first, err := NewEnv(context.Background(), fakeSettings(srv))
	require.NoError(t, err)
	require.NoError(t, first.Build(context.Background(), fixtures.HostGraph()))
	dump := first.Registry().Dump()
	require.NoError(t, first.Detach(context.Background()))
	assert.Equal(t, 1, count(t, srv, "hosts"), "detach must keep fixtures")

	second, err := NewEnv(context.Background(), fakeSettings(srv))
	require.NoError(t, err)
	require.NoError(t, second.Adopt(dump))
	assert.Equal(t, dump["host"]["web"], second.ID(reference.KindHost, "web"))

	require.NoError(t, second.Close(context.Background()))
	assert.Zero(t, count(t, srv, "hosts"))
	assert.Zero(t, count(t, srv, "hstgrp"))
}

func TestEnv_AdoptUnknownKind(t *testing.T) {
	env, _, _ := newTestEnv(t)
	err := env.Adopt(map[reference.Kind]map[string]string{
		"dashboard": {"main": "1"},
		"host":      {"web": "2"},
	})
	require.Error(t, err)
	assert.True(t, sserr.IsValidation(err))
	assert.Zero(t, env.Registry().Len(), "nothing is adopted when a kind is unknown")
}

// ===========================================================================
// Catalog Tests
// ===========================================================================

func TestRunCatalog_Builtin(t *testing.T) {
	for _, name := range catalog.BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			c, err := catalog.Builtin(name)
			require.NoError(t, err)

			env, srv, _ := newTestEnv(t)
			env.RunCatalog(t, c)
			require.NoError(t, env.Close(context.Background()))
			assert.Zero(t, count(t, srv, "hstgrp"), "fixtures left behind")
		})
	}
}
