package fakeapi

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/expect"
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func invalidParams(format string, args ...any) *apiError {
	return &apiError{Code: -32602, Message: "Invalid params.", Data: fmt.Sprintf(format, args...)}
}

func notFound() *apiError {
	return invalidParams("%s", expect.NotFoundMessage)
}

func internalError(err error) *apiError {
	return &apiError{Code: -32500, Message: "Application error.", Data: err.Error()}
}

// objects accepts a single object or a list of objects, the two shapes of
// create params.
func objects(params any) ([]map[string]any, *apiError) {
	switch v := params.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, invalidParams(`Invalid parameter "/%d": an array is expected.`, i+1)
			}
			out[i] = obj
		}
		return out, nil
	default:
		return nil, invalidParams(`Invalid parameter "/": an array is expected.`)
	}
}

// object is one create object at path "/<n>".
type object struct {
	path   string
	fields map[string]any
}

func objectAt(i int, fields map[string]any) object {
	return object{path: "/" + strconv.Itoa(i+1), fields: fields}
}

func (o object) only(allowed ...string) *apiError {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	keys := make([]string, 0, len(o.fields))
	for k := range o.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !set[k] {
			return invalidParams(`Invalid parameter "%s": unexpected parameter "%s".`, o.path, k)
		}
	}
	return nil
}

func (o object) missing(field string) *apiError {
	return invalidParams(`Invalid parameter "%s": the parameter "%s" is missing.`, o.path, field)
}

func (o object) text(field string, required bool, maxLen int) (string, *apiError) {
	raw, ok := o.fields[field]
	if !ok {
		if required {
			return "", o.missing(field)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidParams(`Invalid parameter "%s/%s": a character string is expected.`, o.path, field)
	}
	if required && s == "" {
		return "", invalidParams(`Invalid parameter "%s/%s": cannot be empty.`, o.path, field)
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return "", invalidParams(`Invalid parameter "%s/%s": value is too long.`, o.path, field)
	}
	return s, nil
}

// integer reads an integer given as a JSON number or a numeric string.
func (o object) integer(field string, required bool, def int64) (int64, *apiError) {
	raw, ok := o.fields[field]
	if !ok {
		if required {
			return 0, o.missing(field)
		}
		return def, nil
	}
	n, ok := toInt(raw)
	if !ok {
		return 0, invalidParams(`Invalid parameter "%s/%s": an integer is expected.`, o.path, field)
	}
	return n, nil
}

func (o object) between(field string, n, lo, hi int64) *apiError {
	if n < lo || n > hi {
		return invalidParams(`Invalid parameter "%s/%s": value must be one of %d-%d.`, o.path, field, lo, hi)
	}
	return nil
}

// list reads an optional array member.
func (o object) list(field string) ([]any, bool, *apiError) {
	raw, ok := o.fields[field]
	if !ok {
		return nil, false, nil
	}
	l, ok := raw.([]any)
	if !ok {
		return nil, true, invalidParams(`Invalid parameter "%s/%s": an array is expected.`, o.path, field)
	}
	return l, true, nil
}

// idsOf reads member field of every element of l, for example the groupid
// of each {"groupid": "4"}.
func (o object) idsOf(listField, field string, l []any) ([]int64, *apiError) {
	out := make([]int64, 0, len(l))
	for i, item := range l {
		sub := object{path: fmt.Sprintf("%s/%s/%d", o.path, listField, i+1)}
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalidParams(`Invalid parameter "%s": an array is expected.`, sub.path)
		}
		sub.fields = m
		raw, ok := m[field]
		if !ok {
			return nil, sub.missing(field)
		}
		id, ok := toID(raw)
		if !ok {
			return nil, invalidParams(`Invalid parameter "%s/%s": a number is expected.`, sub.path, field)
		}
		out = append(out, id)
	}
	return out, nil
}

var digits = regexp.MustCompile(`^[0-9]+$`)

func toInt(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		if t == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// toID accepts ids as digit strings or non-negative JSON integers.
func toID(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		return n, err == nil && n >= 0
	case string:
		if !digits.MatchString(t) {
			return 0, false
		}
		n, err := strconv.ParseInt(t, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// idList validates the params of a delete method: a non-empty array of
// unique ids.
func idList(params any) ([]int64, *apiError) {
	l, ok := params.([]any)
	if !ok {
		return nil, invalidParams(`Invalid parameter "/": an array is expected.`)
	}
	if len(l) == 0 {
		return nil, invalidParams(`Invalid parameter "/": cannot be empty.`)
	}
	seen := make(map[int64]bool, len(l))
	ids := make([]int64, len(l))
	for i, raw := range l {
		id, ok := toID(raw)
		if !ok {
			return nil, invalidParams(`Invalid parameter "/%d": a number is expected.`, i+1)
		}
		if seen[id] {
			return nil, invalidParams(`Invalid parameter "/%d": value (%d) already exists.`, i+1, id)
		}
		seen[id] = true
		ids[i] = id
	}
	return ids, nil
}

func idStrings(ids []int64) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}
