package catalog

import (
	"embed"
	"path"
	"sort"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// BuiltinNames lists the embedded catalogs.
func BuiltinNames() []string {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}

// Builtin returns the embedded catalog name, for example
// "connector.create".
func Builtin(name string) (*Catalog, error) {
	data, err := builtinFS.ReadFile(path.Join("builtin", name+".yaml"))
	if err != nil {
		return nil, sserr.Newf(sserr.CodeNotFound, "catalog: no builtin catalog %q", name).
			WithDetail("available", BuiltinNames())
	}
	return Parse(data)
}
