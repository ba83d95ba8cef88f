// Package fixture creates object graphs through the API under test and
// removes them again at teardown.
//
// A [Graph] names entities per category. [Builder.Build] walks the
// categories in dependency order, resolves the references in each spec
// against the registry, calls the category's create method and registers
// the returned identifier, so later specs can refer to the entity as
// ":kind:name". [Builder.Cleanup] deletes everything in reverse order.
package fixture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/jsonrpc"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/registry"
)

const tracerName = "github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"

// Caller performs one API call. *jsonrpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, params any) (*jsonrpc.Response, error)
}

var _ Caller = (*jsonrpc.Client)(nil)

// tracked is an entity the builder is responsible for deleting.
type tracked struct {
	entry        registry.Entry
	deleteMethod string
}

// Builder creates graphs and tracks what it created. Build and Cleanup
// must not run concurrently; the state machine rejects overlapping calls.
type Builder struct {
	caller   Caller
	reg      *registry.Registry
	resolver *reference.Resolver
	cats     []Category

	mu      sync.Mutex
	state   State
	created []tracked

	tracer trace.Tracer
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithCategories replaces [DefaultCategories]. The order of cats is the
// creation order.
func WithCategories(cats ...Category) Option {
	return func(b *Builder) {
		b.cats = append([]Category(nil), cats...)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a Builder creating entities through caller and
// registering them in reg. The kinds of all categories are added to reg.
func NewBuilder(caller Caller, reg *registry.Registry, opts ...Option) *Builder {
	b := &Builder{
		caller:   caller,
		reg:      reg,
		resolver: reference.NewResolver(reg),
		cats:     DefaultCategories,
		state:    StatePending,
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, c := range b.cats {
		reg.AddKind(c.Kind)
	}
	return b
}

// Categories returns the categories in creation order.
func (b *Builder) Categories() []Category {
	return append([]Category(nil), b.cats...)
}

// State returns the current state.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Created returns the registry entries of the entities the builder will
// delete at cleanup, in creation order.
func (b *Builder) Created() []registry.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]registry.Entry, len(b.created))
	for i, t := range b.created {
		out[i] = t.entry
	}
	return out
}

func (b *Builder) transition(to State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !ValidTransition(b.state, to) {
		return sserr.Newf(sserr.CodeConflictState,
			"fixture: invalid transition from %s to %s", b.state, to)
	}
	b.state = to
	return nil
}

// planned is one create call of a build.
type planned struct {
	cat  Category
	name string
	spec map[string]any
}

// plan orders g by category and checks it without calling the API.
func (b *Builder) plan(g Graph) ([]planned, error) {
	var unknown []string
	for name := range g {
		if _, ok := findCategory(b.cats, name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, sserr.Newf(sserr.CodeValidation, "fixture: unknown categories %v", unknown).
			WithDetail("categories", unknown)
	}

	seen := make(map[string]bool)
	var out []planned
	for _, cat := range b.cats {
		for i, e := range g[cat.Name] {
			name := e.Name
			if name == "" {
				name, _ = e.Spec[cat.NameField].(string)
			}
			if name == "" {
				return nil, sserr.Newf(sserr.CodeValidationRequired,
					"fixture: %s entry %d has no name (set %q or use a named map)", cat.Name, i, cat.NameField)
			}
			ref := reference.Ref(cat.Kind, name)
			if seen[ref] {
				return nil, sserr.Newf(sserr.CodeConflictAlreadyExists,
					"fixture: %s is defined twice in the graph", ref).WithDetail("reference", ref)
			}
			if _, err := b.reg.Lookup(cat.Kind, name); err == nil {
				return nil, sserr.Newf(sserr.CodeConflictAlreadyExists,
					"fixture: %s is already registered", ref).WithDetail("reference", ref)
			}
			seen[ref] = true
			out = append(out, planned{cat: cat, name: name, spec: e.Spec})
		}
	}
	return out, nil
}

// Build creates every entity of g. Categories are processed in the
// builder's order; entities of one category in graph order. The graph is
// checked first: unknown categories, unnamed entities and names that are
// already taken fail before any call is made and leave the state as is.
//
// The first failing creation aborts the build and moves the builder to
// [StateFailed]. Entities created up to that point stay registered and
// are removed by Cleanup.
//
// Error codes returned:
//   - [sserr.CodeConflictState]: the builder is building, cleaning or failed
//   - [sserr.CodeValidation], [sserr.CodeConflictAlreadyExists]: bad graph
//   - [sserr.CodeReferenceUnresolved]: a spec names an unregistered entity
//   - [sserr.CodeFixtureCreate]: the create call failed
func (b *Builder) Build(ctx context.Context, g Graph) error {
	ctx, span := b.tracer.Start(ctx, "fixture.Build",
		trace.WithAttributes(attribute.Int("fixture.entities", g.Len())))
	defer span.End()

	steps, err := b.plan(g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := b.transition(StateBuilding); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	for _, step := range steps {
		if err := b.create(ctx, step); err != nil {
			b.mu.Lock()
			b.state = StateFailed
			b.mu.Unlock()
			b.logger.ErrorContext(ctx, "fixture: build failed",
				"category", step.cat.Name, "name", step.name, "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	if err := b.transition(StateReady); err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "fixture: graph built", "entities", len(steps))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (b *Builder) create(ctx context.Context, step planned) error {
	ref := reference.Ref(step.cat.Kind, step.name)
	params, err := b.resolver.Resolve(step.spec)
	if err != nil {
		return err
	}

	resp, err := b.caller.Call(ctx, step.cat.CreateMethod, params)
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeFixtureCreate, "fixture: %s failed for %s", step.cat.CreateMethod, ref).
			WithDetail("reference", ref)
	}
	if resp.Failed() {
		return sserr.Newf(sserr.CodeFixtureCreate, "fixture: %s failed for %s: %s",
			step.cat.CreateMethod, ref, resp.ErrorData()).
			WithDetail("reference", ref).
			WithDetail("data", resp.ErrorData())
	}
	ids, err := resp.IDs(step.cat.IDField)
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeFixtureCreate, "fixture: unexpected %s result for %s", step.cat.CreateMethod, ref)
	}
	if len(ids) == 0 || ids[0] == "" {
		return sserr.Newf(sserr.CodeFixtureCreate, "fixture: %s returned no %s for %s",
			step.cat.CreateMethod, step.cat.IDField, ref)
	}

	entry := registry.Entry{Kind: step.cat.Kind, Name: step.name, ID: ids[0]}
	b.mu.Lock()
	b.created = append(b.created, tracked{entry: entry, deleteMethod: step.cat.DeleteMethod})
	b.mu.Unlock()
	if err := b.reg.Register(entry.Kind, entry.Name, entry.ID); err != nil {
		return err
	}
	b.logger.DebugContext(ctx, "fixture: entity created", "reference", ref, "id", entry.ID)
	return nil
}

// Adopt registers an entity created outside the API, for example seeded
// through the database helper, so that Cleanup removes it with
// deleteMethod. An empty deleteMethod leaves the entity itself in place
// (typically for a database restore) and only drops the registry entry.
func (b *Builder) Adopt(kind reference.Kind, name, id, deleteMethod string) error {
	if err := b.reg.Register(kind, name, id); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, tracked{
		entry:        registry.Entry{Kind: reference.Normalize(kind), Name: name, ID: id},
		deleteMethod: deleteMethod,
	})
	return nil
}

// Cleanup deletes the tracked entities in reverse creation order with one
// delete call each. A delete answered with the API's "does not exist"
// error counts as done, so running Cleanup twice is harmless. Other
// failures do not stop the teardown: they are joined into one
// [sserr.CodeFixtureCleanup] error and the affected entities stay tracked
// and registered.
//
// Only the registry entries of removed entities are dropped.
func (b *Builder) Cleanup(ctx context.Context) error {
	ctx, span := b.tracer.Start(ctx, "fixture.Cleanup")
	defer span.End()

	if err := b.transition(StateCleaning); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	b.mu.Lock()
	todo := b.created
	b.created = nil
	b.mu.Unlock()
	span.SetAttributes(attribute.Int("fixture.entities", len(todo)))

	var (
		errs   []error
		failed []string
		kept   []tracked
	)
	for i := len(todo) - 1; i >= 0; i-- {
		t := todo[i]
		if err := b.delete(ctx, t); err != nil {
			errs = append(errs, err)
			failed = append(failed, t.entry.Reference())
			kept = append([]tracked{t}, kept...)
			continue
		}
		b.reg.Remove(t.entry.Kind, t.entry.Name)
	}

	b.mu.Lock()
	b.created = append(kept, b.created...)
	b.state = StateCleaned
	b.mu.Unlock()

	if len(errs) > 0 {
		err := sserr.Wrapf(errors.Join(errs...), sserr.CodeFixtureCleanup,
			"fixture: %d of %d deletions failed", len(errs), len(todo)).
			WithDetail("references", failed)
		b.logger.ErrorContext(ctx, "fixture: cleanup incomplete", "failed", failed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	b.logger.InfoContext(ctx, "fixture: cleanup complete", "entities", len(todo))
	span.SetStatus(codes.Ok, "")
	return nil
}

func (b *Builder) delete(ctx context.Context, t tracked) error {
	if t.deleteMethod == "" {
		return nil
	}
	ref := t.entry.Reference()
	resp, err := b.caller.Call(ctx, t.deleteMethod, []string{t.entry.ID})
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.deleteMethod, ref, err)
	}
	if resp.Failed() {
		if expect.IsNotFoundMessage(resp.ErrorData()) {
			b.logger.DebugContext(ctx, "fixture: entity already gone", "reference", ref)
			return nil
		}
		return fmt.Errorf("%s %s: %s", t.deleteMethod, ref, resp.ErrorData())
	}
	return nil
}
