package reference

import "strings"

// Kind is an entity category that references can point at.
type Kind string

// Built-in kinds. Registries accept extra kinds through
// registry.Registry.AddKind when a fixture category needs one.
const (
	KindUser          Kind = "user"
	KindHost          Kind = "host"
	KindHostGroup     Kind = "host_group"
	KindTemplateGroup Kind = "template_group"
	KindUserGroup     Kind = "user_group"
	KindRole          Kind = "role"
	KindMedia         Kind = "media"
	KindMediaType     Kind = "media_type"
	KindAlert         Kind = "alert"
	KindTemplate      Kind = "template"
	KindLLDRule       Kind = "lld_rule"
	KindItem          Kind = "item"
	KindItemPrototype Kind = "item_prototype"
	KindAction        Kind = "action"
	KindTrigger       Kind = "trigger"
	KindEvent         Kind = "event"
	KindConnector     Kind = "connector"
	KindService       Kind = "service"
	KindHTTPTest      Kind = "httptest"
	KindToken         Kind = "token"
	KindProxy         Kind = "proxy"
)

var builtinKinds = []Kind{
	KindUser, KindHost, KindHostGroup, KindTemplateGroup, KindUserGroup,
	KindRole, KindMedia, KindMediaType, KindAlert, KindTemplate,
	KindLLDRule, KindItem, KindItemPrototype, KindAction, KindTrigger,
	KindEvent, KindConnector, KindService, KindHTTPTest, KindToken,
	KindProxy,
}

// aliases maps alternative spellings found in older fixtures to their
// canonical kind.
var aliases = map[string]Kind{
	"hostgroup":     KindHostGroup,
	"templategroup": KindTemplateGroup,
	"usergroup":     KindUserGroup,
	"mediatype":     KindMediaType,
}

// Kinds returns the built-in kinds in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(builtinKinds))
	copy(out, builtinKinds)
	return out
}

// Normalize maps an alias ("hostgroup") to its canonical kind
// ("host_group"). Other values are returned unchanged.
func Normalize(k Kind) Kind {
	if canon, ok := aliases[strings.ToLower(string(k))]; ok {
		return canon
	}
	return k
}

// IsBuiltin reports whether k (after normalisation) is a built-in kind.
func IsBuiltin(k Kind) bool {
	k = Normalize(k)
	for _, b := range builtinKinds {
		if b == k {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (k Kind) String() string { return string(k) }
