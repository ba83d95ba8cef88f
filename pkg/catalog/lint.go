package catalog

import (
	"fmt"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
)

// Problem is one lint finding.
type Problem struct {
	Group   string
	Case    string
	Message string
}

func (p Problem) String() string {
	switch {
	case p.Case != "":
		return fmt.Sprintf("%s/%s: %s", p.Group, p.Case, p.Message)
	case p.Group != "":
		return fmt.Sprintf("%s: %s", p.Group, p.Message)
	default:
		return p.Message
	}
}

// Lint returns every problem found in c:
//   - missing operation, method, group field or case name
//   - duplicate case names
//   - unknown categories and categories out of canonical order
//   - invalid expectations
//   - valid cases that expect an error, results on error cases and
//     unchanged tables on success cases
func (c *Catalog) Lint() []Problem {
	var out []Problem
	add := func(group, cs, format string, args ...any) {
		out = append(out, Problem{Group: group, Case: cs, Message: fmt.Sprintf(format, args...)})
	}

	if c.Operation == "" {
		add("", "", "operation is required")
	}
	if c.Method == "" {
		add("", "", "method is required")
	}
	if len(c.Groups) == 0 {
		add("", "", "no groups")
	}

	names := make(map[string]bool)
	for gi, g := range c.Groups {
		group := g.Field
		if group == "" {
			group = fmt.Sprintf("groups[%d]", gi)
			add(group, "", "field is required")
		}
		if len(g.Cases) == 0 {
			add(group, "", "no cases")
		}

		last := -1
		for ci, cs := range g.Cases {
			name := cs.Name
			if name == "" {
				name = fmt.Sprintf("cases[%d]", ci)
				add(group, name, "name is required")
			} else if names[name] {
				add(group, name, "duplicate case name")
			}
			names[name] = true

			rank := cs.Category.Rank()
			switch {
			case rank < 0:
				add(group, name, "unknown category %q", cs.Category)
			case rank < last:
				add(group, name, "category %s after %s", cs.Category, categories[last])
			default:
				last = rank
			}

			exp, err := cs.Expectation()
			if err != nil {
				add(group, name, "%s", expectationMessage(err))
				continue
			}
			if cs.Category == CategoryValid && exp.ExpectsError() {
				add(group, name, "valid case expects an error")
			}
			if cs.Result != nil && exp.ExpectsError() {
				add(group, name, "result is set on a case that expects an error")
			}
			if len(cs.UnchangedTables) > 0 && !exp.ExpectsError() {
				add(group, name, "unchanged_tables is set on a case that expects success")
			}
		}
	}
	return out
}

func expectationMessage(err error) string {
	if se, ok := sserr.AsError(err); ok {
		return strings.TrimPrefix(se.Message, "expect: ")
	}
	return err.Error()
}

// Validate returns a VAL_001 error listing every lint problem, or nil.
func (c *Catalog) Validate() error {
	problems := c.Lint()
	if len(problems) == 0 {
		return nil
	}
	lines := make([]string, len(problems))
	for i, p := range problems {
		lines[i] = p.String()
	}
	name := c.Operation
	if name == "" {
		name = "catalog"
	}
	return sserr.Newf(sserr.CodeValidation, "catalog: %s has %d problem(s):\n  %s",
		name, len(problems), strings.Join(lines, "\n  ")).
		WithDetail("problems", lines)
}

// Expectations returns the parsed expectation of every case, keyed by
// FullName. Intended for validated catalogs.
func (c *Catalog) Expectations() map[string]expect.Expectation {
	out := make(map[string]expect.Expectation, c.Len())
	for _, cs := range c.Cases() {
		if exp, err := cs.Expectation(); err == nil {
			out[cs.FullName()] = exp
		}
	}
	return out
}
