package toolname

import "github.com/rs/zerolog/log"

// ToolCall is a tool invocation as returned by a provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ResolvedCall is a tool invocation decoded back to its manifest identity.
type ResolvedCall struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	APIName    string `json:"apiName"`
	Arguments  string `json:"arguments"`
	Type       string `json:"type"`
}

// Catalog exposes the manifests known to the caller for digest reversal.
type Catalog interface {
	// Identifiers lists every manifest identifier.
	Identifiers() []string
	// APINames lists the operation names of one manifest.
	APINames(identifier string) ([]string, bool)
}

// MapCatalog is a Catalog backed by identifier -> apiNames.
type MapCatalog map[string][]string

// Identifiers implements Catalog.
func (m MapCatalog) Identifiers() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return ids
}

// APINames implements Catalog.
func (m MapCatalog) APINames(identifier string) ([]string, bool) {
	names, ok := m[identifier]
	return names, ok
}

// Resolve decodes provider tool calls. Calls whose name has no apiName
// segment are dropped. Hashed segments are reversed through the catalog when
// possible and otherwise left as placeholders. A nil catalog is treated as
// empty.
func Resolve(calls []ToolCall, catalog Catalog) []ResolvedCall {
	out := make([]ResolvedCall, 0, len(calls))
	for _, call := range calls {
		triple, ok := Parse(call.Name)
		if !ok {
			log.Debug().Str("name", call.Name).Msg("toolname: dropping call without api name")
			continue
		}

		if IsHashed(triple.Identifier) {
			if id, found := LookupIdentifier(triple.Identifier, catalog); found {
				triple.Identifier = id
			}
		}

		if IsHashed(triple.APIName) {
			if name, found := LookupAPIName(triple.Identifier, triple.APIName, catalog); found {
				triple.APIName = name
			}
		}

		out = append(out, ResolvedCall{
			ID:         call.ID,
			Identifier: triple.Identifier,
			APIName:    triple.APIName,
			Arguments:  call.Arguments,
			Type:       triple.Type,
		})
	}
	return out
}

// LookupIdentifier finds the manifest identifier whose digest equals hashed.
func LookupIdentifier(hashed string, catalog Catalog) (string, bool) {
	if catalog == nil {
		return "", false
	}
	for _, id := range catalog.Identifiers() {
		if HashName(id) == hashed {
			return id, true
		}
	}
	return "", false
}

// LookupAPIName finds the operation of identifier whose digest equals hashed.
// It reports false when the identifier is unknown.
func LookupAPIName(identifier, hashed string, catalog Catalog) (string, bool) {
	if catalog == nil {
		return "", false
	}
	names, ok := catalog.APINames(identifier)
	if !ok {
		return "", false
	}
	for _, name := range names {
		if HashName(name) == hashed {
			return name, true
		}
	}
	return "", false
}
