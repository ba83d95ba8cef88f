package fixture

import (
	"github.com/StricklySoft/stricklysoft-apitest/pkg/reference"
)

// Category describes how entities of one graph section are created and
// deleted through the API.
type Category struct {
	// Name is the graph key, for example "host_groups".
	Name string
	// Kind is the reference kind created entities are registered under.
	Kind reference.Kind

	CreateMethod string
	// DeleteMethod is called with a one-element id list at teardown. Empty
	// means the entity is left to the database restore.
	DeleteMethod string

	// IDField is the result member holding the created ids ("hostids").
	IDField string
	// NameField names the spec field used as the entity name when the
	// graph section is a list.
	NameField string
}

// DefaultCategories lists the built-in categories in creation order. The
// order follows the foreign keys of the API: groups before the hosts and
// templates in them, hosts before items, items before triggers, media
// types and user groups before the users that reference them, and users
// before the actions, tokens and services that name them.
var DefaultCategories = []Category{
	{"host_groups", reference.KindHostGroup, "hostgroup.create", "hostgroup.delete", "groupids", "name"},
	{"template_groups", reference.KindTemplateGroup, "templategroup.create", "templategroup.delete", "groupids", "name"},
	{"proxies", reference.KindProxy, "proxy.create", "proxy.delete", "proxyids", "name"},
	{"templates", reference.KindTemplate, "template.create", "template.delete", "templateids", "host"},
	{"hosts", reference.KindHost, "host.create", "host.delete", "hostids", "host"},
	{"items", reference.KindItem, "item.create", "item.delete", "itemids", "name"},
	{"lld_rules", reference.KindLLDRule, "discoveryrule.create", "discoveryrule.delete", "itemids", "name"},
	{"item_prototypes", reference.KindItemPrototype, "itemprototype.create", "itemprototype.delete", "itemids", "name"},
	{"triggers", reference.KindTrigger, "trigger.create", "trigger.delete", "triggerids", "description"},
	{"roles", reference.KindRole, "role.create", "role.delete", "roleids", "name"},
	{"user_groups", reference.KindUserGroup, "usergroup.create", "usergroup.delete", "usrgrpids", "name"},
	{"media_types", reference.KindMediaType, "mediatype.create", "mediatype.delete", "mediatypeids", "name"},
	{"users", reference.KindUser, "user.create", "user.delete", "userids", "username"},
	{"tokens", reference.KindToken, "token.create", "token.delete", "tokenids", "name"},
	{"actions", reference.KindAction, "action.create", "action.delete", "actionids", "name"},
	{"connectors", reference.KindConnector, "connector.create", "connector.delete", "connectorids", "name"},
	{"services", reference.KindService, "service.create", "service.delete", "serviceids", "name"},
	{"httptests", reference.KindHTTPTest, "httptest.create", "httptest.delete", "httptestids", "name"},
}

// CategoryNames returns the names of cats in order.
func CategoryNames(cats []Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.Name
	}
	return out
}

func findCategory(cats []Category, name string) (Category, bool) {
	for _, c := range cats {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
