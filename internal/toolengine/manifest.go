// Package toolengine decides which plugin tools a request may use and renders
// them into provider function schemas.
//
// DESIGN: A Registry holds plugin manifests keyed by identifier. It is an
// ordinary value owned by whoever constructs it; there is no package-level
// registry. An Engine wraps one Registry together with two injected policies:
//
//   - FunctionCallChecker: does the model/provider support function calling?
//   - EnableChecker:       is this plugin allowed for this request?
//
// FLOW (GenerateTools):
//  1. Merge requested ids with the default ids, de-duplicated in first-seen order
//  2. Bail out when function calling is unsupported
//  3. Classify each id: not_found / disabled / enabled
//  4. Expand each enabled manifest's APIs into function tools, names built
//     by the toolname codec
//
// Neither the Registry nor the Engine is safe for concurrent mutation; callers
// that reload manifests in the background must synchronize themselves.
package toolengine

import (
	"encoding/json"

	"github.com/compresr/context-engine/internal/toolname"
)

// APIDescriptor describes one callable operation of a plugin.
type APIDescriptor struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	// URL is the plugin gateway endpoint. It is never sent to a model.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// PluginManifest describes a tool namespace and its operations.
type PluginManifest struct {
	Identifier string          `json:"identifier" yaml:"identifier"`
	API        []APIDescriptor `json:"api" yaml:"api"`
	Type       string          `json:"type,omitempty" yaml:"type,omitempty"`
	SystemRole string          `json:"systemRole,omitempty" yaml:"systemRole,omitempty"`
	Meta       ManifestMeta    `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// MarshalJSON omits parameters only when they are nil. An explicit empty
// schema is kept.
func (a APIDescriptor) MarshalJSON() ([]byte, error) {
	type plain APIDescriptor
	if a.Parameters == nil {
		return json.Marshal(plain(a))
	}
	return json.Marshal(struct {
		plain
		Parameters map[string]any `json:"parameters"`
	}{plain(a), a.Parameters})
}

// ManifestMeta is display information for a plugin.
type ManifestMeta struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Avatar      string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
}

// Tool is a function tool in chat-completion format.
type Tool struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// FunctionSchema names a function and declares its parameters.
type FunctionSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// MarshalJSON omits parameters only when they are nil.
func (f FunctionSchema) MarshalJSON() ([]byte, error) {
	type plain FunctionSchema
	if f.Parameters == nil {
		return json.Marshal(plain(f))
	}
	return json.Marshal(struct {
		plain
		Parameters map[string]any `json:"parameters"`
	}{plain(f), f.Parameters})
}

// APINames returns the operation names in declaration order.
func (m *PluginManifest) APINames() []string {
	names := make([]string, 0, len(m.API))
	for _, api := range m.API {
		names = append(names, api.Name)
	}
	return names
}

// toolType returns the codec type for this manifest.
func (m *PluginManifest) toolType() string {
	if m.Type == "" {
		return toolname.TypeDefault
	}
	return m.Type
}

// Tools expands the manifest into function tools. The URL of each descriptor
// is dropped and parameters pass through untouched.
func (m *PluginManifest) Tools() []Tool {
	tools := make([]Tool, 0, len(m.API))
	for _, api := range m.API {
		tools = append(tools, Tool{
			Type: "function",
			Function: FunctionSchema{
				Name:        toolname.Generate(m.Identifier, api.Name, m.toolType()),
				Description: api.Description,
				Parameters:  api.Parameters,
			},
		})
	}
	return tools
}

func cloneManifest(m PluginManifest) PluginManifest {
	m.API = append([]APIDescriptor(nil), m.API...)
	return m
}
