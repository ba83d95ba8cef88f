// Package fixtures holds test data shared by the harness test suites:
// a small fixture graph, its file form and a matching registry dump.
package fixtures

import (
	"github.com/StricklySoft/stricklysoft-apitest/pkg/fixture"
)

// Names used by the sample graph.
const (
	HostGroupName = "main"
	HostName      = "web"

	HostGroupRef = ":host_group:" + HostGroupName
	HostRef      = ":host:" + HostName
)

// HostGraph returns a host group and a host that belongs to it.
func HostGraph() fixture.Graph {
	return fixture.Graph{}.
		Add("host_groups", HostGroupName, map[string]any{"name": HostGroupName}).
		Add("hosts", HostName, map[string]any{
			"host":   HostName,
			"groups": []any{map[string]any{"groupid": HostGroupRef}},
		})
}

// HostGraphYAML is the file form of HostGraph.
const HostGraphYAML = `
host_groups:
  main: {name: main}
hosts:
  web:
    host: web
    groups: [{groupid: ":host_group:main"}]
`

// RegistryYAML is a registry dump for HostGraph with fixed identifiers.
const RegistryYAML = `
host_group:
  main: "4"
host:
  web: "10"
`

// Identifiers in RegistryYAML.
const (
	HostGroupID = "4"
	HostID      = "10"
)
