// Package apitest runs API integration tests against a live system.
//
// An [Env] is the per-class context: it owns the API client, the fixture
// registry and builder, the optional database helper and the call
// journal. Tests create fixtures with symbolic names, call the API with
// params that refer to them as ":kind:name", and assert the outcome:
//
//	env.Build(ctx, fixture.Graph{}.
//		Add("host_groups", "main", map[string]any{"name": "main"}))
//	env.Call(t, "host.create", map[string]any{
//		"host":   "web",
//		"groups": []any{map[string]any{"groupid": ":host_group:main"}},
//	}, expect.Success())
//
// Failures are reported through require: a mismatching call stops the
// test. Nothing is retried.
package apitest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/auth"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/clients/minio"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/clients/redis"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/dbassert"
	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/journal"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/registry"
)

// Env is the context of one test class. It is not safe for concurrent
// calls; tests of one class run sequentially.
type Env struct {
	settings Settings
	runID    string

	client   *jsonrpc.Client
	registry *registry.Registry
	resolver *reference.Resolver
	builder  *fixture.Builder
	db       *dbassert.Helper
	journal  journal.Journal
	logger   *slog.Logger

	mu       sync.Mutex
	admin    auth.Session
	sessions map[string]auth.Session

	closers []func() error
}

type options struct {
	logger     *slog.Logger
	httpClient *http.Client
	db         *dbassert.Helper
	journals   []journal.Journal
	categories []fixture.Category
	noLogin    bool
}

// Option configures NewEnv.
type Option func(*options)

// WithLogger sets the logger of the env and its components.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithDB uses h instead of opening Settings.DB. The env closes it.
func WithDB(h *dbassert.Helper) Option {
	return func(o *options) { o.db = h }
}

// WithJournal adds a journal sink next to the configured ones.
func WithJournal(j journal.Journal) Option {
	return func(o *options) { o.journals = append(o.journals, j) }
}

// WithCategories replaces the default fixture categories.
func WithCategories(cats ...fixture.Category) Option {
	return func(o *options) { o.categories = cats }
}

// WithoutLogin skips the admin login; calls are sent without a session
// until Login is used.
func WithoutLogin() Option {
	return func(o *options) { o.noLogin = true }
}

// NewEnv connects the configured components and logs in as the settings
// user. On error everything opened so far is closed again.
func NewEnv(ctx context.Context, settings Settings, opts ...Option) (*Env, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Env{
		settings: settings,
		runID:    settings.Journal.RunID,
		registry: registry.New(),
		logger:   o.logger,
		sessions: make(map[string]auth.Session),
	}
	if e.runID == "" {
		e.runID = journal.NewRunID()
	}

	if err := e.openJournal(ctx, o.journals); err != nil {
		e.closeAll()
		return nil, err
	}

	clientOpts := []jsonrpc.Option{
		jsonrpc.WithJournal(e.journal, e.runID),
		jsonrpc.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, jsonrpc.WithHTTPClient(o.httpClient))
	}
	clientOpts = append(clientOpts, jsonrpc.WithTimeout(settings.API.Timeout))
	client, err := jsonrpc.New(settings.API.URL, clientOpts...)
	if err != nil {
		e.closeAll()
		return nil, err
	}
	e.client = client
	e.resolver = reference.NewResolver(e.registry)

	builderOpts := []fixture.Option{fixture.WithLogger(o.logger)}
	if len(o.categories) > 0 {
		builderOpts = append(builderOpts, fixture.WithCategories(o.categories...))
	}
	e.builder = fixture.NewBuilder(e.client, e.registry, builderOpts...)

	switch {
	case o.db != nil:
		e.db = o.db
	case settings.DB.Enabled():
		h, err := dbassert.Open(ctx, settings.DB)
		if err != nil {
			e.closeAll()
			return nil, err
		}
		e.db = h
	}
	if e.db != nil {
		e.closers = append(e.closers, e.db.Close)
	}

	if !o.noLogin {
		s, err := e.client.Login(ctx, settings.API.Username, settings.API.Password.Value())
		if err != nil {
			e.closeAll()
			return nil, err
		}
		e.admin = s
	}

	e.logger.InfoContext(ctx, "apitest: environment ready",
		"run_id", e.runID,
		"api", settings.API.URL,
		"db", e.db != nil)
	return e, nil
}

func (e *Env) openJournal(ctx context.Context, extra []journal.Journal) error {
	var sinks []journal.Journal
	js := e.settings.Journal
	if js.Log {
		sinks = append(sinks, journal.NewLogJournal(e.logger))
	}
	if js.Redis.Enabled() {
		rc, err := redis.NewClient(ctx, js.Redis)
		if err != nil {
			return err
		}
		e.closers = append(e.closers, rc.Close)
		sinks = append(sinks, journal.NewRedisJournal(rc, e.runID, js.TTL))
	}
	if js.Archive.Enabled() {
		mc, err := minio.NewClient(ctx, js.Archive)
		if err != nil {
			return err
		}
		sinks = append(sinks, journal.NewObjectJournal(mc, mc.Bucket(), e.runID))
	}
	sinks = append(sinks, extra...)
	e.journal = journal.Tee(sinks...)
	return nil
}

// Close removes the fixtures, clears the registry, flushes the journal
// and closes the database and journal connections. All steps run; their
// errors are joined.
func (e *Env) Close(ctx context.Context) error {
	var errs []error
	if err := e.builder.Cleanup(e.Context(ctx)); err != nil {
		errs = append(errs, err)
	}
	e.registry.Reset()
	if err := e.journal.Flush(ctx); err != nil {
		errs = append(errs, sserr.Wrap(err, sserr.CodeUnavailableDependency, "apitest: journal flush failed"))
	}
	if err := e.closeAll(); err != nil {
		errs = append(errs, err)
	}
	err := errors.Join(errs...)
	if err != nil {
		e.logger.ErrorContext(ctx, "apitest: teardown incomplete", "error", err)
	} else {
		e.logger.InfoContext(ctx, "apitest: environment closed", "run_id", e.runID)
	}
	return err
}

// Detach flushes the journal and closes the connections but leaves the
// fixtures in place. Pair it with a registry dump and [Env.Adopt] to tear
// the fixtures down from another process.
func (e *Env) Detach(ctx context.Context) error {
	var errs []error
	if err := e.journal.Flush(ctx); err != nil {
		errs = append(errs, sserr.Wrap(err, sserr.CodeUnavailableDependency, "apitest: journal flush failed"))
	}
	if err := e.closeAll(); err != nil {
		errs = append(errs, err)
	}
	e.logger.InfoContext(ctx, "apitest: environment detached",
		"run_id", e.runID,
		"fixtures", len(e.builder.Created()))
	return errors.Join(errs...)
}

// Adopt takes over the entities of a registry dump so that Close deletes
// them. Kinds are adopted in category order, which makes Close delete
// dependents first.
func (e *Env) Adopt(d registry.Dump) error {
	type target struct {
		kind         reference.Kind
		deleteMethod string
	}
	var order []target
	known := make(map[reference.Kind]bool)
	for _, cat := range e.builder.Categories() {
		kind := reference.Normalize(cat.Kind)
		if !known[kind] {
			known[kind] = true
			order = append(order, target{kind, cat.DeleteMethod})
		}
	}

	byKind := make(map[reference.Kind]map[string]string, len(d))
	var unknown []string
	for kind, ids := range d {
		kind = reference.Normalize(kind)
		if !known[kind] {
			unknown = append(unknown, string(kind))
			continue
		}
		if byKind[kind] == nil {
			byKind[kind] = make(map[string]string, len(ids))
		}
		for name, id := range ids {
			byKind[kind][name] = id
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return sserr.Newf(sserr.CodeValidation, "apitest: no category deletes kinds %v", unknown).
			WithDetail("kinds", unknown)
	}

	for _, tg := range order {
		names := make([]string, 0, len(byKind[tg.kind]))
		for name := range byKind[tg.kind] {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := e.builder.Adopt(tg.kind, name, byKind[tg.kind][name], tg.deleteMethod); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Env) closeAll() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}

func (e *Env) Settings() Settings            { return e.settings }
func (e *Env) RunID() string                 { return e.runID }
func (e *Env) Client() *jsonrpc.Client       { return e.client }
func (e *Env) Registry() *registry.Registry  { return e.registry }
func (e *Env) Resolver() *reference.Resolver { return e.resolver }
func (e *Env) Builder() *fixture.Builder     { return e.builder }
func (e *Env) Journal() journal.Journal      { return e.journal }

// DB returns the database helper, or nil when no database is configured.
func (e *Env) DB() *dbassert.Helper { return e.db }

// ID returns the identifier registered for (kind, name) or panics.
func (e *Env) ID(kind reference.Kind, name string) string {
	return e.registry.MustLookup(kind, name)
}

// Build creates g through the API. See fixture.Builder.Build.
func (e *Env) Build(ctx context.Context, g fixture.Graph) error {
	return e.builder.Build(e.Context(ctx), g)
}

// Context returns ctx carrying the admin session.
func (e *Env) Context(ctx context.Context) context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.admin.Valid() {
		return ctx
	}
	return auth.ContextWithSession(ctx, e.admin)
}

// Login logs in as username and keeps the session under userRef, a
// ":user:name" reference, for [Env.As].
func (e *Env) Login(ctx context.Context, userRef, username, password string) (auth.Session, error) {
	if _, ok := reference.Parse(userRef); !ok {
		return auth.Session{}, sserr.Validationf("apitest: %q is not a user reference", userRef)
	}
	s, err := e.client.Login(ctx, username, password)
	if err != nil {
		return auth.Session{}, err
	}
	s.UserRef = userRef
	e.mu.Lock()
	e.sessions[userRef] = s
	e.mu.Unlock()
	return s, nil
}

// Session returns the session stored for userRef.
func (e *Env) Session(userRef string) (auth.Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[userRef]
	return s, ok
}
