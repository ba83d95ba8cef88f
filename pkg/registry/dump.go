package registry

import (
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
)

// Dump is the file form of a registry:
//
//	host_group:
//	  main: "4"
//	user:
//	  properties.admin: "17"
type Dump map[reference.Kind]map[string]string

// Dump returns the registry contents keyed by kind.
func (r *Registry) Dump() Dump {
	out := make(Dump)
	for _, e := range r.Entries() {
		if out[e.Kind] == nil {
			out[e.Kind] = make(map[string]string)
		}
		out[e.Kind][e.Name] = e.ID
	}
	return out
}

// WriteYAML writes the registry as YAML.
func (r *Registry) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Dump()); err != nil {
		return sserr.Wrap(err, sserr.CodeInternal, "registry: failed to encode dump")
	}
	return enc.Close()
}

// ReadYAML loads a dump into a new registry. Unknown kinds in the dump are
// added as extra kinds. Entries are registered in kind then name order.
func ReadYAML(rd io.Reader) (*Registry, error) {
	var d Dump
	if err := yaml.NewDecoder(rd).Decode(&d); err != nil && err != io.EOF {
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "registry: failed to decode dump")
	}
	r := New()
	kinds := make([]reference.Kind, 0, len(d))
	for k := range d {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	for _, k := range kinds {
		r.AddKind(k)
		names := make([]string, 0, len(d[k]))
		for n := range d[k] {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			if err := r.Register(k, n, d[k][n]); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}
