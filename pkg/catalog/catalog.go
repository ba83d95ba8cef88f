// Package catalog holds data-driven test catalogs: the validation cases of
// one API operation, grouped by the field under test.
//
// Every group lists its cases in a fixed category order (wrong type,
// empty, too long, out of range, duplicate, cross field, valid), the
// layout all operation catalogs share. A catalog may declare a fixture
// graph that is built once before its cases run.
//
//	operation: service.create
//	method: service.create
//	fixtures:
//	  services:
//	    - {name: parent, algorithm: 0, sortorder: 0}
//	groups:
//	  - field: name
//	    cases:
//	      - name: empty name
//	        category: empty
//	        params: {name: "", algorithm: 0, sortorder: 0}
//	        expected_error: 'Invalid parameter "/1/name": cannot be empty.'
//	        unchanged_tables: [services]
package catalog

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
)

// Category classifies a case by what it probes.
type Category string

const (
	CategoryWrongType  Category = "wrong_type"
	CategoryEmpty      Category = "empty"
	CategoryTooLong    Category = "too_long"
	CategoryOutOfRange Category = "out_of_range"
	CategoryDuplicate  Category = "duplicate"
	CategoryCrossField Category = "cross_field"
	CategoryValid      Category = "valid"
)

var categories = []Category{
	CategoryWrongType,
	CategoryEmpty,
	CategoryTooLong,
	CategoryOutOfRange,
	CategoryDuplicate,
	CategoryCrossField,
	CategoryValid,
}

// Categories returns the categories in canonical order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Rank returns the position of c in the canonical order, or -1.
func (c Category) Rank() int {
	for i, k := range categories {
		if k == c {
			return i
		}
	}
	return -1
}

// Case is one call with its expected outcome.
type Case struct {
	Name     string   `yaml:"name"`
	Category Category `yaml:"category"`

	// Params are sent as the call params after reference resolution.
	Params any `yaml:"params"`

	expect.Fields `yaml:",inline"`

	// Result, if set, must equal the decoded result of a successful call.
	// References in it are resolved before comparison.
	Result any `yaml:"result,omitempty"`

	// UnchangedTables must hash the same before and after a call that is
	// expected to fail.
	UnchangedTables []string `yaml:"unchanged_tables,omitempty"`

	// Field is the group field; filled in by [Catalog.Cases].
	Field string `yaml:"-"`
}

// Expectation returns the expected outcome of the case.
func (c Case) Expectation() (expect.Expectation, error) {
	return c.Fields.Expectation()
}

// FullName is "<field>/<name>", used as the subtest name.
func (c Case) FullName() string {
	if c.Field == "" {
		return c.Name
	}
	return c.Field + "/" + c.Name
}

// Group collects the cases probing one field.
type Group struct {
	Field string `yaml:"field"`
	Cases []Case `yaml:"cases"`
}

// Catalog is the case list of one operation.
type Catalog struct {
	// Operation names the catalog, for example "item.create.preprocessing".
	Operation string `yaml:"operation"`
	// Method is the API method every case calls.
	Method string `yaml:"method"`

	Fixtures fixture.Graph `yaml:"fixtures,omitempty"`
	Groups   []Group       `yaml:"groups"`
}

// Cases returns all cases in catalog order with Field set.
func (c *Catalog) Cases() []Case {
	var out []Case
	for _, g := range c.Groups {
		for _, cs := range g.Cases {
			cs.Field = g.Field
			out = append(out, cs)
		}
	}
	return out
}

// Len returns the number of cases.
func (c *Catalog) Len() int {
	n := 0
	for _, g := range c.Groups {
		n += len(g.Cases)
	}
	return n
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, sserr.New(sserr.CodeValidationRequired, "catalog: empty document")
		}
		if _, ok := sserr.AsError(err); ok {
			return nil, err
		}
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "catalog: cannot parse")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	if strings.Contains(path, "..") {
		return nil, sserr.New(sserr.CodeValidation, "catalog: path must not contain '..'")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation, "catalog: cannot read %q", path)
	}
	c, err := Parse(data)
	if err != nil {
		if se, ok := sserr.AsError(err); ok {
			return nil, se.WithDetail("path", path)
		}
		return nil, err
	}
	return c, nil
}
