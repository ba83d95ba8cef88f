package apitest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-apitest/pkg/catalog"
)

// RunCatalog builds the catalog's fixtures and runs every case as a
// subtest named "<field>/<case>". Without a database the
// unchanged-tables checks are skipped.
func (e *Env) RunCatalog(t *testing.T, c *catalog.Catalog) {
	t.Helper()
	require.NoError(t, c.Validate())
	if c.Fixtures.Len() > 0 {
		require.NoError(t, e.Build(context.Background(), c.Fixtures), "%s: fixtures", c.Operation)
	}
	if e.db == nil {
		t.Logf("apitest: %s: no database configured, unchanged_tables are not checked", c.Operation)
	}

	for _, cs := range c.Cases() {
		t.Run(cs.FullName(), func(t *testing.T) {
			exp, err := cs.Expectation()
			require.NoError(t, err)

			var opts []CallOption
			if e.db != nil && len(cs.UnchangedTables) > 0 {
				opts = append(opts, WithUnchangedTables(cs.UnchangedTables...))
			}
			if cs.Result != nil {
				opts = append(opts, WithResult(cs.Result))
			}
			e.Call(t, c.Method, cs.Params, exp, opts...)
		})
	}
}
