// Package reference parses and resolves symbolic references.
//
// A reference is a string of the form ":kind:name", for example
// ":user:properties.admin" or ":item:ssh.item.prototype[{#LLD}]". Only the
// first two colons are significant; anything after the second colon is the
// name, colons included. Test authors write references wherever the API
// expects a database identifier, and a [Resolver] replaces them with the
// identifiers recorded while the fixture graph was built.
//
// Strings that do not match the grammar are left untouched. A string that
// matches the grammar but names an unknown kind or an unregistered entity
// is an error: the literal is never sent to the API in place of an id.
package reference

import (
	"strconv"
	"strings"
)

// InvalidID is the out-of-range identifier used to probe "does not exist"
// validation paths. It is never looked up and never rewritten.
const InvalidID = 999999

// InvalidIDString is the string form of [InvalidID].
var InvalidIDString = strconv.Itoa(InvalidID)

// Reference is a parsed ":kind:name" token.
type Reference struct {
	Kind Kind
	Name string
}

// New returns the reference for kind and name.
func New(kind Kind, name string) Reference {
	return Reference{Kind: Normalize(kind), Name: name}
}

// Ref formats ":kind:name". It is the usual way to write references in Go
// fixtures.
func Ref(kind Kind, name string) string {
	return New(kind, name).String()
}

// String formats the reference as ":kind:name".
func (r Reference) String() string {
	return ":" + string(r.Kind) + ":" + r.Name
}

// Parse reports whether s matches the reference grammar and returns the
// parsed reference. The kind is normalised but not checked against a
// registry; see [Resolver] for that.
func Parse(s string) (Reference, bool) {
	if len(s) < 4 || s[0] != ':' {
		return Reference{}, false
	}
	rest := s[1:]
	i := strings.IndexByte(rest, ':')
	if i <= 0 || i == len(rest)-1 {
		return Reference{}, false
	}
	return Reference{Kind: Normalize(Kind(rest[:i])), Name: rest[i+1:]}, true
}

// IsReference reports whether s matches the reference grammar.
func IsReference(s string) bool {
	_, ok := Parse(s)
	return ok
}
