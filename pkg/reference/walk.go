package reference

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Occurrence is a reference found at a JSON-pointer-like path.
type Occurrence struct {
	Path string
	Ref  Reference
}

// Collect lists every reference in v in a deterministic order (map keys
// sorted). It does not consult any registry, so it can be used to lint
// fixture files before anything exists.
func Collect(v any) []Occurrence {
	var out []Occurrence
	collect(reflect.ValueOf(v), "", &out)
	return out
}

func collect(rv reflect.Value, path string, out *[]Occurrence) {
	if !rv.IsValid() {
		return
	}
	switch rv.Kind() {
	case reflect.Interface, reflect.Pointer:
		if !rv.IsNil() {
			collect(rv.Elem(), path, out)
		}
	case reflect.String:
		if ref, ok := Parse(rv.String()); ok {
			p := path
			if p == "" {
				p = "/"
			}
			*out = append(*out, Occurrence{Path: p, Ref: ref})
		}
	case reflect.Map:
		keys := rv.MapKeys()
		sortKeys(keys)
		for _, k := range keys {
			collect(rv.MapIndex(k), path+"/"+keyString(k), out)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			collect(rv.Index(i), path+"/"+strconv.Itoa(i), out)
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if rv.Type().Field(i).IsExported() {
				collect(rv.Field(i), path+"/"+rv.Type().Field(i).Name, out)
			}
		}
	}
}

func sortKeys(keys []reflect.Value) {
	sort.Slice(keys, func(i, j int) bool {
		return keyString(keys[i]) < keyString(keys[j])
	})
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeValidation, "reference: cannot decode JSON")
	}
	return out, nil
}
