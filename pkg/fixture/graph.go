package fixture

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	sserr "github.com/StricklySoft/stricklysoft-apitest/pkg/errors"
)

// Entity is one object to create. Name is the name it is registered
// under; when empty, the builder takes it from the category's NameField.
type Entity struct {
	Name string
	Spec map[string]any
}

// Graph maps category names to the entities to create in them. Within a
// category, entities are created in slice order.
//
// In YAML a category is either a list, named by each spec's name field:
//
//	host_groups:
//	  - name: main
//
// or a map from name to spec, kept in document order:
//
//	users:
//	  properties.admin:
//	    username: admin-zabbix
//	    usrgrps: [{usrgrpid: ":user_group:admins"}]
type Graph map[string][]Entity

// Add appends an entity to category and returns g.
func (g Graph) Add(category, name string, spec map[string]any) Graph {
	g[category] = append(g[category], Entity{Name: name, Spec: spec})
	return g
}

// Len returns the number of entities in g.
func (g Graph) Len() int {
	n := 0
	for _, es := range g {
		n += len(es)
	}
	return n
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *Graph) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return sserr.Newf(sserr.CodeValidationFormat, "fixture: graph must be a mapping (line %d)", node.Line)
	}
	out := make(Graph, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		category := node.Content[i].Value
		section := node.Content[i+1]

		var entities []Entity
		switch section.Kind {
		case yaml.SequenceNode:
			for _, item := range section.Content {
				var spec map[string]any
				if err := item.Decode(&spec); err != nil {
					return sserr.Wrapf(err, sserr.CodeValidationFormat,
						"fixture: %s entry at line %d is not a mapping", category, item.Line)
				}
				entities = append(entities, Entity{Spec: spec})
			}
		case yaml.MappingNode:
			for j := 0; j+1 < len(section.Content); j += 2 {
				var spec map[string]any
				if err := section.Content[j+1].Decode(&spec); err != nil {
					return sserr.Wrapf(err, sserr.CodeValidationFormat,
						"fixture: %s %q at line %d is not a mapping", category, section.Content[j].Value, section.Content[j].Line)
				}
				entities = append(entities, Entity{Name: section.Content[j].Value, Spec: spec})
			}
		default:
			return sserr.Newf(sserr.CodeValidationFormat,
				"fixture: category %q must be a list or a map (line %d)", category, section.Line)
		}
		out[category] = append(out[category], entities...)
	}
	*g = out
	return nil
}

// ParseGraph decodes a YAML (or JSON) graph document.
func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		if _, ok := sserr.AsError(err); ok {
			return nil, err
		}
		return nil, sserr.Wrap(err, sserr.CodeValidationFormat, "fixture: cannot parse graph")
	}
	if g == nil {
		g = Graph{}
	}
	return g, nil
}

// LoadGraph reads a graph file.
func LoadGraph(path string) (Graph, error) {
	if strings.Contains(path, "..") {
		return nil, sserr.New(sserr.CodeValidation, "fixture: graph path must not contain '..'")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sserr.Wrapf(err, sserr.CodeValidation, "fixture: cannot read graph %q", path)
	}
	return ParseGraph(data)
}
