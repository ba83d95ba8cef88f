// Package config loads harness settings from struct tag defaults, an
// optional YAML/JSON file and environment variables, in that priority
// order (environment wins):
//
//	envDefault struct tags  (lowest)
//	YAML/JSON settings file
//	environment variables   (highest)
//
// CI pipelines usually only export environment variables
// (APITEST_API_URL, APITEST_DB_DSN, ...); developers keep a local
// apitest.yaml next to the suite.
//
// # Struct Tags
//
//   - `env:"NAME"` maps a field to an environment variable. On a nested
//     struct the tag becomes a prefix for the child fields.
//   - `envDefault:"value"` is applied when the field is still zero.
//   - `required:"true"` fails validation when the field stays zero.
//
// File loading uses the `yaml` and `json` tags of the fields.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

var durationType = reflect.TypeOf(time.Duration(0))

// Loader resolves configuration layers into a struct. A Loader is not
// safe for concurrent use.
type Loader struct {
	envPrefix string
	filePath  string
	lookupEnv func(string) (string, bool)
}

// New returns a Loader reading environment variables only.
func New() *Loader {
	return &Loader{lookupEnv: os.LookupEnv}
}

// WithEnvPrefix prepends prefix and an underscore to every env name.
// The prefix is uppercased.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = strings.ToUpper(prefix)
	return l
}

// WithFile sets a .yaml, .yml or .json settings file. A missing file is
// not an error.
func (l *Loader) WithFile(path string) *Loader {
	l.filePath = path
	return l
}

// WithLookup replaces os.LookupEnv, mainly for tests and for tools that
// read variables from a dotenv map.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// Load populates cfg, which must be a non-nil pointer to a struct, and
// validates it (required tags, then [Validator]).
func (l *Loader) Load(cfg any) error {
	rv := reflect.ValueOf(cfg)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: Load requires a non-nil pointer to a struct")
	}
	rv = rv.Elem()

	if err := walk(rv, "", applyDefault); err != nil {
		return err
	}
	if l.filePath != "" {
		if err := l.loadFile(cfg); err != nil {
			return err
		}
	}
	if err := walk(rv, l.envPrefix, l.applyEnv); err != nil {
		return err
	}
	return validate(cfg, rv)
}

// MustLoad loads a T or panics. Intended for TestMain and CLI startup.
func MustLoad[T any](loader *Loader) T {
	var cfg T
	if err := loader.Load(&cfg); err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}

func (l *Loader) loadFile(cfg any) error {
	if strings.Contains(l.filePath, "..") {
		return sserr.New(sserr.CodeInternalConfiguration,
			"config: file path must not contain directory traversal (..) sequences")
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to read file %q", l.filePath)
	}

	switch ext := strings.ToLower(filepath.Ext(l.filePath)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return sserr.Newf(sserr.CodeInternalConfiguration,
			"config: unsupported file extension %q (use .yaml, .yml, or .json)", ext)
	}
	if err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to parse file %q", l.filePath)
	}
	return nil
}

// fieldFunc is applied to every settable leaf field. envKey is the fully
// prefixed environment variable name, or "" when the field has no env tag.
type fieldFunc func(field reflect.Value, sf reflect.StructField, envKey string) error

// walk visits the leaf fields of rv. Nested structs extend the env prefix
// with their own env tag.
func walk(rv reflect.Value, prefix string, fn fieldFunc) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rv.Field(i)
		sf := rt.Field(i)
		if !field.CanSet() {
			continue
		}
		tag := sf.Tag.Get("env")

		if field.Kind() == reflect.Struct && sf.Type != durationType {
			if err := walk(field, joinEnv(prefix, tag), fn); err != nil {
				return err
			}
			continue
		}

		key := ""
		if tag != "" {
			key = joinEnv(prefix, tag)
		}
		if err := fn(field, sf, key); err != nil {
			return err
		}
	}
	return nil
}

func joinEnv(prefix, name string) string {
	switch {
	case name == "":
		return prefix
	case prefix == "":
		return name
	default:
		return prefix + "_" + name
	}
}

func applyDefault(field reflect.Value, sf reflect.StructField, _ string) error {
	def, ok := sf.Tag.Lookup("envDefault")
	if !ok || !field.IsZero() {
		return nil
	}
	if err := setField(field, def); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to apply default for field %q", sf.Name)
	}
	return nil
}

func (l *Loader) applyEnv(field reflect.Value, sf reflect.StructField, envKey string) error {
	if envKey == "" {
		return nil
	}
	val, ok := l.lookupEnv(envKey)
	if !ok {
		return nil
	}
	if err := setField(field, val); err != nil {
		return sserr.Wrapf(err, sserr.CodeInternalConfiguration,
			"config: failed to set field %q from env var %q", sf.Name, envKey)
	}
	return nil
}

// setField parses value into field. Supports strings (and named string
// types such as Secret), bools, signed integers, time.Duration and
// comma-separated string slices.
func setField(field reflect.Value, value string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("cannot parse duration %q: %w", value, err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse bool %q: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("cannot parse integer %q: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice element type %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		slice := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			slice = reflect.Append(slice, reflect.ValueOf(p).Convert(field.Type().Elem()))
		}
		field.Set(slice)
	default:
		return fmt.Errorf("unsupported field type %s", field.Kind())
	}
	return nil
}
