// Package registry records the identifiers of fixture entities under the
// names their authors gave them.
//
// A Registry belongs to one test class: it is created by the environment
// setup, filled while the fixture graph is built and reset at teardown.
// Writing the same (kind, name) twice is an error, as is reading a name
// that was never written; both point at a fixture bug that must surface
// immediately instead of being papered over.
package registry

import (
	"sync"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
)

// Entry is one registered entity.
type Entry struct {
	Kind reference.Kind `json:"kind" yaml:"kind"`
	Name string         `json:"name" yaml:"name"`
	ID   string         `json:"id" yaml:"id"`
}

// Reference returns the ":kind:name" token that resolves to this entry.
func (e Entry) Reference() string {
	return reference.Ref(e.Kind, e.Name)
}

type key struct {
	kind reference.Kind
	name string
}

// Registry maps (kind, name) to identifiers. It is safe for concurrent
// use, although a test class normally drives it from one goroutine.
type Registry struct {
	mu    sync.RWMutex
	kinds map[reference.Kind]struct{}
	ids   map[key]string
	order []key
}

var _ reference.Lookup = (*Registry)(nil)

// New returns an empty registry accepting the built-in kinds plus any
// extra kinds given.
func New(extra ...reference.Kind) *Registry {
	r := &Registry{
		kinds: make(map[reference.Kind]struct{}),
		ids:   make(map[key]string),
	}
	for _, k := range reference.Kinds() {
		r.kinds[k] = struct{}{}
	}
	for _, k := range extra {
		r.kinds[reference.Normalize(k)] = struct{}{}
	}
	return r
}

// AddKind makes kind acceptable for Register and resolution.
func (r *Registry) AddKind(kind reference.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[reference.Normalize(kind)] = struct{}{}
}

// Knows reports whether kind is accepted by the registry.
func (r *Registry) Knows(kind reference.Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[reference.Normalize(kind)]
	return ok
}

// Register records id under (kind, name).
//
// Errors:
//   - VAL_002 when name or id is empty
//   - REF_002 when kind is not accepted
//   - CONF_002 when (kind, name) is already registered
func (r *Registry) Register(kind reference.Kind, name, id string) error {
	kind = reference.Normalize(kind)
	if name == "" {
		return sserr.Newf(sserr.CodeValidationRequired, "registry: empty name for kind %q", kind)
	}
	if id == "" {
		return sserr.Newf(sserr.CodeValidationRequired, "registry: empty id for %s", reference.Ref(kind, name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.kinds[kind]; !ok {
		return sserr.Newf(sserr.CodeReferenceUnknownKind, "registry: unknown kind %q", kind).
			WithDetail("kind", string(kind))
	}
	k := key{kind: kind, name: name}
	if prev, ok := r.ids[k]; ok {
		return sserr.Newf(sserr.CodeConflictAlreadyExists,
			"registry: %s is already registered with id %s", reference.Ref(kind, name), prev).
			WithDetail("reference", reference.Ref(kind, name))
	}
	r.ids[k] = id
	r.order = append(r.order, k)
	return nil
}

// Lookup returns the identifier registered under (kind, name), or a NF_001
// error.
func (r *Registry) Lookup(kind reference.Kind, name string) (string, error) {
	kind = reference.Normalize(kind)
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.ids[key{kind: kind, name: name}]
	if !ok {
		return "", sserr.Newf(sserr.CodeNotFound, "registry: %s is not registered", reference.Ref(kind, name))
	}
	return id, nil
}

// MustLookup is Lookup for test code that cannot proceed without the id.
func (r *Registry) MustLookup(kind reference.Kind, name string) string {
	id, err := r.Lookup(kind, name)
	if err != nil {
		panic(err)
	}
	return id
}

// Remove deletes (kind, name) and reports whether it was present. Other
// entries are not affected.
func (r *Registry) Remove(kind reference.Kind, name string) bool {
	kind = reference.Normalize(kind)
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{kind: kind, name: name}
	if _, ok := r.ids[k]; !ok {
		return false
	}
	delete(r.ids, k)
	for i, o := range r.order {
		if o == k {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Entries returns the registered entities in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, Entry{Kind: k.kind, Name: k.name, ID: r.ids[k]})
	}
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// Reset drops every entry. Extra kinds stay accepted.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = make(map[key]string)
	r.order = nil
}
