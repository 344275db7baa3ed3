package toolengine

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/toolname"
)

// =============================================================================
// POLICIES
// =============================================================================

// GenerationContext carries request-scoped hints for the EnableChecker
// (environment, explicit activation flags, ...).
type GenerationContext map[string]any

// EnableChecker decides whether a plugin may be offered for a request.
type EnableChecker func(pluginID string, manifest *PluginManifest, model, provider string, genCtx GenerationContext) bool

// FunctionCallChecker reports whether a model/provider supports function calling.
type FunctionCallChecker func(model, provider string) bool

// FilterReason explains why a requested id produced no tools.
type FilterReason string

const (
	ReasonNotFound     FilterReason = "not_found"
	ReasonDisabled     FilterReason = "disabled"
	ReasonIncompatible FilterReason = "incompatible"
)

// FilteredTool records an excluded id.
type FilteredTool struct {
	ID     string       `json:"id"`
	Reason FilterReason `json:"reason"`
}

// DetailedResult is the full classification of a GenerateToolsDetailed call.
// Tools is nil when no id survived.
type DetailedResult struct {
	Tools          []Tool         `json:"tools,omitempty"`
	EnabledToolIDs []string       `json:"enabledToolIds"`
	FilteredTools  []FilteredTool `json:"filteredTools"`
}

// Options configures an Engine.
type Options struct {
	// Registry to read manifests from. A fresh one is created when nil.
	Registry *Registry
	// Manifests are added to the registry at construction.
	Manifests []PluginManifest
	// EnableChecker defaults to allowing every plugin.
	EnableChecker EnableChecker
	// FunctionCallChecker defaults to supporting function calling.
	FunctionCallChecker FunctionCallChecker
	// DefaultToolIDs are merged into every request after the requested ids.
	DefaultToolIDs []string
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine filters plugin ids and renders function tools.
type Engine struct {
	registry            *Registry
	enableChecker       EnableChecker
	functionCallChecker FunctionCallChecker
	defaultToolIDs      []string
}

// NewEngine creates an engine from options.
func NewEngine(opts Options) *Engine {
	registry := opts.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	for _, m := range opts.Manifests {
		registry.Put(m)
	}

	enable := opts.EnableChecker
	if enable == nil {
		enable = func(string, *PluginManifest, string, string, GenerationContext) bool { return true }
	}
	fc := opts.FunctionCallChecker
	if fc == nil {
		fc = func(string, string) bool { return true }
	}

	return &Engine{
		registry:            registry,
		enableChecker:       enable,
		functionCallChecker: fc,
		defaultToolIDs:      append([]string(nil), opts.DefaultToolIDs...),
	}
}

// Registry returns the registry the engine reads from.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// GenerateTools returns function tools for the requested ids. It returns nil
// when function calling is unsupported or when no id survives filtering; it
// never returns a non-nil empty slice.
func (e *Engine) GenerateTools(ids []string, model, provider string, genCtx GenerationContext) []Tool {
	merged := e.mergeIDs(ids)

	if !e.functionCallChecker(model, provider) {
		log.Debug().
			Str("model", model).
			Str("provider", provider).
			Msg("toolengine: function calling unsupported, no tools generated")
		return nil
	}

	enabled, _ := e.classify(merged, model, provider, genCtx)
	if len(enabled) == 0 {
		return nil
	}
	return e.render(enabled)
}

// GenerateToolsDetailed runs the same filtering as GenerateTools but reports
// a reason for every excluded id. Precedence: incompatible, then not_found,
// then disabled.
func (e *Engine) GenerateToolsDetailed(ids []string, model, provider string, genCtx GenerationContext) DetailedResult {
	merged := e.mergeIDs(ids)
	result := DetailedResult{
		EnabledToolIDs: []string{},
		FilteredTools:  []FilteredTool{},
	}

	if !e.functionCallChecker(model, provider) {
		for _, id := range merged {
			result.FilteredTools = append(result.FilteredTools, FilteredTool{ID: id, Reason: ReasonIncompatible})
		}
		return result
	}

	enabled, filtered := e.classify(merged, model, provider, genCtx)
	result.FilteredTools = append(result.FilteredTools, filtered...)
	result.EnabledToolIDs = append(result.EnabledToolIDs, enabled...)
	if len(enabled) > 0 {
		result.Tools = e.render(enabled)
	}

	log.Debug().
		Int("requested", len(merged)).
		Int("enabled", len(enabled)).
		Int("filtered", len(filtered)).
		Msg("toolengine: classified tool ids")

	return result
}

// mergeIDs appends the default ids and removes duplicates, keeping the
// first occurrence.
func (e *Engine) mergeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids)+len(e.defaultToolIDs))
	out := make([]string, 0, len(ids)+len(e.defaultToolIDs))
	for _, list := range [][]string{ids, e.defaultToolIDs} {
		for _, id := range list {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (e *Engine) classify(ids []string, model, provider string, genCtx GenerationContext) ([]string, []FilteredTool) {
	enabled := make([]string, 0, len(ids))
	var filtered []FilteredTool
	for _, id := range ids {
		manifest, ok := e.registry.Get(id)
		if !ok {
			filtered = append(filtered, FilteredTool{ID: id, Reason: ReasonNotFound})
			continue
		}
		if !e.enableChecker(id, manifest, model, provider, genCtx) {
			filtered = append(filtered, FilteredTool{ID: id, Reason: ReasonDisabled})
			continue
		}
		enabled = append(enabled, id)
	}
	return enabled, filtered
}

func (e *Engine) render(ids []string) []Tool {
	var tools []Tool
	for _, id := range ids {
		manifest, _ := e.registry.Get(id)
		tools = append(tools, manifest.Tools()...)
	}
	return tools
}

// =============================================================================
// MANIFEST MANAGEMENT
// =============================================================================

// AddPluginManifest registers or replaces a manifest.
func (e *Engine) AddPluginManifest(m PluginManifest) {
	e.registry.Put(m)
}

// RemovePluginManifest unregisters a manifest.
func (e *Engine) RemovePluginManifest(identifier string) {
	e.registry.Delete(identifier)
}

// UpdateManifestSchemas replaces every registered manifest.
func (e *Engine) UpdateManifestSchemas(manifests []PluginManifest) {
	e.registry.Replace(manifests)
}

// HasPlugin reports whether a manifest is registered.
func (e *Engine) HasPlugin(identifier string) bool {
	return e.registry.Has(identifier)
}

// GetPluginManifest returns a registered manifest.
func (e *Engine) GetPluginManifest(identifier string) (*PluginManifest, bool) {
	return e.registry.Get(identifier)
}

// GetAvailablePlugins lists registered identifiers.
func (e *Engine) GetAvailablePlugins() []string {
	return e.registry.Identifiers()
}

// =============================================================================
// SYSTEM ROLES
// =============================================================================

// ToolSystemRoles renders the instructions of the given plugins into one
// prompt block. Plugins without a system role still list their APIs.
// It returns "" when none of the ids is registered.
func (e *Engine) ToolSystemRoles(ids []string) string {
	var collections []string
	for _, id := range e.mergeIDs(ids) {
		manifest, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		collections = append(collections, renderCollection(manifest))
	}
	if len(collections) == 0 {
		return ""
	}
	return "<plugins description=\"The plugins you can use below\">\n" +
		strings.Join(collections, "\n") +
		"\n</plugins>"
}

func renderCollection(m *PluginManifest) string {
	name := m.Meta.Title
	if name == "" {
		name = m.Identifier
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<collection name=%q>\n", name)
	if role := strings.TrimSpace(m.SystemRole); role != "" {
		fmt.Fprintf(&sb, "<collection.instructions>%s</collection.instructions>\n", role)
	}
	for _, api := range m.API {
		fmt.Fprintf(&sb, "<api identifier=%q>%s</api>\n", toolname.Generate(m.Identifier, api.Name, m.toolType()), api.Description)
	}
	sb.WriteString("</collection>")
	return sb.String()
}
