package fixture

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

const graphYAML = `
host_groups:
  - name: main
  - name: backup
users:
  properties.admin:
    username: admin-zabbix
    usrgrps: [{usrgrpid: ":user_group:admins"}]
  properties.guest:
    username: guest-zabbix
`

func TestParseGraph(t *testing.T) {
	t.Parallel()
	g, err := ParseGraph([]byte(graphYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	require.Len(t, g["host_groups"], 2)
	assert.Empty(t, g["host_groups"][0].Name)
	assert.Equal(t, "main", g["host_groups"][0].Spec["name"])
	assert.Equal(t, "backup", g["host_groups"][1].Spec["name"])

	require.Len(t, g["users"], 2)
	assert.Equal(t, "properties.admin", g["users"][0].Name, "map order is kept")
	assert.Equal(t, "properties.guest", g["users"][1].Name)
	grps := g["users"][0].Spec["usrgrps"].([]any)
	assert.Equal(t, ":user_group:admins", grps[0].(map[string]any)["usrgrpid"])
}

func TestParseGraph_Empty(t *testing.T) {
	t.Parallel()
	g, err := ParseGraph(nil)
	require.NoError(t, err)
	assert.Zero(t, g.Len())
}

func TestParseGraph_Invalid(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"not a mapping":     "- a\n- b\n",
		"scalar category":   "hosts: web\n",
		"scalar list entry": "hosts:\n  - web\n",
		"scalar map entry":  "hosts:\n  web: 1\n",
		"broken yaml":       "hosts: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGraph([]byte(doc))
			require.Error(t, err)
			assert.True(t, sserr.HasCode(err, sserr.CodeValidationFormat), "got %v", err)
		})
	}
}

func TestLoadGraph(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(graphYAML), 0o600))

	g, err := LoadGraph(path)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	_, err = LoadGraph(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, sserr.IsValidation(err))
	_, err = LoadGraph("../graph.yaml")
	assert.True(t, sserr.IsValidation(err))
}
