package reference

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Lookup is the read side of a fixture registry.
type Lookup interface {
	// Lookup returns the identifier registered for (kind, name).
	Lookup(kind Kind, name string) (string, error)

	// Knows reports whether kind is a category the registry accepts.
	Knows(kind Kind) bool
}

// Resolver rewrites references found in request parameters.
type Resolver struct {
	lookup Lookup
}

// NewResolver returns a Resolver reading identifiers from lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns a deep copy of v in which every string matching the
// reference grammar is replaced by its registered identifier. Maps,
// slices and arrays keep their types; map keys are not rewritten. Structs
// and pointers are converted to their JSON form first (see ResolveJSON).
// v itself is not modified.
func (r *Resolver) Resolve(v any) (any, error) {
	return r.resolve(v, "")
}

// ResolveString resolves a single scalar. Non-references are returned
// unchanged.
func (r *Resolver) ResolveString(s string) (string, error) {
	return r.resolveString(s, "")
}

// ResolveJSON marshals v to JSON, decodes it into maps and slices and
// resolves the result. Numbers are kept as json.Number so identifiers
// round-trip unchanged.
func (r *Resolver) ResolveJSON(v any) (any, error) {
	return r.resolveJSON(v, "")
}

// ResolveInPlace rewrites references inside v without copying the
// containers. v must be a map, a slice or a non-nil pointer; a bare
// string cannot be rewritten in place.
func (r *Resolver) ResolveInPlace(v any) error {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case map[string]any:
		return r.inPlaceMap(t, "")
	case []any:
		return r.inPlaceSlice(t, "")
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		return r.inPlaceValue(rv, "")
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		elem := rv.Elem()
		res, err := r.resolve(elem.Interface(), "")
		if err != nil {
			return err
		}
		return assign(elem, res)
	default:
		return sserr.Newf(sserr.CodeValidation,
			"reference: cannot resolve a %T in place, use Resolve", v)
	}
}

func (r *Resolver) resolve(v any, path string) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return r.resolveString(t, path)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			res, err := r.resolve(e, path+"/"+k)
			if err != nil {
				return nil, err
			}
			out[k] = res
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			res, err := r.resolve(e, path+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case []string:
		out := make([]string, len(t))
		for i, s := range t {
			res, err := r.resolveString(s, path+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		return out, nil
	case bool, int, int32, int64, uint, uint64, float32, float64, json.Number:
		return v, nil
	}
	return r.resolveValue(reflect.ValueOf(v), path)
}

// resolveValue covers typed containers, named string types and structs.
func (r *Resolver) resolveValue(rv reflect.Value, path string) (any, error) {
	if rv.Kind() != reflect.Struct && rv.Kind() != reflect.Pointer && needsJSON(rv.Type()) {
		return r.resolveJSON(rv.Interface(), path)
	}
	switch rv.Kind() {
	case reflect.String:
		res, err := r.resolveString(rv.String(), path)
		if err != nil {
			return nil, err
		}
		return reflect.ValueOf(res).Convert(rv.Type()).Interface(), nil
	case reflect.Map:
		if rv.IsNil() {
			return rv.Interface(), nil
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			res, err := r.resolve(iter.Value().Interface(), path+"/"+keyString(iter.Key()))
			if err != nil {
				return nil, err
			}
			out.SetMapIndex(iter.Key(), valueOf(res, rv.Type().Elem()))
		}
		return out.Interface(), nil
	case reflect.Slice:
		if rv.IsNil() {
			return rv.Interface(), nil
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			res, err := r.resolve(rv.Index(i).Interface(), path+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(valueOf(res, rv.Type().Elem()))
		}
		return out.Interface(), nil
	case reflect.Array:
		out := reflect.New(rv.Type()).Elem()
		for i := 0; i < rv.Len(); i++ {
			res, err := r.resolve(rv.Index(i).Interface(), path+"/"+strconv.Itoa(i))
			if err != nil {
				return nil, err
			}
			out.Index(i).Set(valueOf(res, rv.Type().Elem()))
		}
		return out.Interface(), nil
	case reflect.Struct, reflect.Pointer:
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return r.resolveJSON(rv.Interface(), path)
	default:
		return rv.Interface(), nil
	}
}

func (r *Resolver) resolveString(s, path string) (string, error) {
	ref, ok := Parse(s)
	if !ok {
		return s, nil
	}
	if path == "" {
		path = "/"
	}
	if !r.lookup.Knows(ref.Kind) {
		return "", sserr.Newf(sserr.CodeReferenceUnknownKind,
			"unknown reference kind %q in %q", ref.Kind, s).
			WithDetail("reference", s).
			WithDetail("path", path)
	}
	id, err := r.lookup.Lookup(ref.Kind, ref.Name)
	if err != nil {
		e := sserr.Unresolved(s).WithDetail("path", path)
		e.Cause = err
		return "", e
	}
	return id, nil
}

func (r *Resolver) resolveJSON(v any, path string) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation,
			"reference: cannot encode %T", v)
	}
	generic, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return r.resolve(generic, path)
}

func (r *Resolver) inPlaceMap(m map[string]any, path string) error {
	for k, e := range m {
		p := path + "/" + k
		switch t := e.(type) {
		case map[string]any:
			if err := r.inPlaceMap(t, p); err != nil {
				return err
			}
		case []any:
			if err := r.inPlaceSlice(t, p); err != nil {
				return err
			}
		default:
			res, err := r.resolve(e, p)
			if err != nil {
				return err
			}
			m[k] = res
		}
	}
	return nil
}

func (r *Resolver) inPlaceSlice(s []any, path string) error {
	for i, e := range s {
		p := path + "/" + strconv.Itoa(i)
		switch t := e.(type) {
		case map[string]any:
			if err := r.inPlaceMap(t, p); err != nil {
				return err
			}
		case []any:
			if err := r.inPlaceSlice(t, p); err != nil {
				return err
			}
		default:
			res, err := r.resolve(e, p)
			if err != nil {
				return err
			}
			s[i] = res
		}
	}
	return nil
}

func (r *Resolver) inPlaceValue(rv reflect.Value, path string) error {
	if rv.IsNil() {
		return nil
	}
	elemType := rv.Type().Elem()
	if needsJSON(elemType) {
		return sserr.Newf(sserr.CodeValidation,
			"reference: cannot resolve a %s in place, use Resolve", rv.Type())
	}
	if rv.Kind() == reflect.Map {
		iter := rv.MapRange()
		for iter.Next() {
			res, err := r.resolve(iter.Value().Interface(), path+"/"+keyString(iter.Key()))
			if err != nil {
				return err
			}
			rv.SetMapIndex(iter.Key(), valueOf(res, elemType))
		}
		return nil
	}
	for i := 0; i < rv.Len(); i++ {
		res, err := r.resolve(rv.Index(i).Interface(), path+"/"+strconv.Itoa(i))
		if err != nil {
			return err
		}
		rv.Index(i).Set(valueOf(res, elemType))
	}
	return nil
}

func assign(dst reflect.Value, v any) error {
	val := valueOf(v, dst.Type())
	if !val.Type().AssignableTo(dst.Type()) {
		return sserr.Newf(sserr.CodeValidation,
			"reference: cannot store resolved %s into %s", val.Type(), dst.Type())
	}
	dst.Set(val)
	return nil
}

// valueOf wraps v for storage in a container of type t. nil becomes the
// zero value of t.
func valueOf(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	val := reflect.ValueOf(v)
	if !val.Type().AssignableTo(t) && val.Type().ConvertibleTo(t) {
		return val.Convert(t)
	}
	return val
}

func keyString(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	return fmt.Sprint(k.Interface())
}

// needsJSON reports whether values of type t only resolve through their
// JSON form because they hold structs or pointers.
func needsJSON(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Struct, reflect.Pointer:
		return true
	case reflect.Map, reflect.Slice, reflect.Array:
		return needsJSON(t.Elem())
	default:
		return false
	}
}
