package toolengine

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/context-engine/internal/toolname"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

func searchManifest() PluginManifest {
	return PluginManifest{
		Identifier: "web-search",
		Type:       toolname.TypeBuiltin,
		SystemRole: "Use search for fresh facts.",
		Meta:       ManifestMeta{Title: "Web Search"},
		API: []APIDescriptor{
			{
				Name:        "search",
				Description: "Search the web",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"query": map[string]any{"type": "string"}},
				},
				URL: "https://gateway.example/search",
			},
			{Name: "crawl", Description: "Fetch a page"},
		},
	}
}

func calcManifest() PluginManifest {
	return PluginManifest{
		Identifier: "calculator",
		API:        []APIDescriptor{{Name: "add", Description: "Add numbers"}},
	}
}

func newTestEngine(opts Options) *Engine {
	opts.Manifests = append(opts.Manifests, searchManifest(), calcManifest())
	return NewEngine(opts)
}

// =============================================================================
// GENERATE TOOLS
// =============================================================================

func TestGenerateTools_RendersFunctionTools(t *testing.T) {
	e := newTestEngine(Options{})

	tools := e.GenerateTools([]string{"web-search", "calculator"}, "gpt-4o", "openai", nil)

	require.Len(t, tools, 3)
	assert.Equal(t, "function", tools[0].Type)
	assert.Equal(t, "web-search____search____builtin", tools[0].Function.Name)
	assert.Equal(t, "Search the web", tools[0].Function.Description)
	assert.Equal(t, "object", tools[0].Function.Parameters["type"])
	assert.Equal(t, "web-search____crawl____builtin", tools[1].Function.Name)
	assert.Equal(t, "calculator____add", tools[2].Function.Name)
}

func TestGenerateTools_NeverEmitsURL(t *testing.T) {
	e := newTestEngine(Options{})

	tools := e.GenerateTools([]string{"web-search"}, "m", "p", nil)
	require.NotEmpty(t, tools)

	raw, err := json.Marshal(tools)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "url")
	assert.NotContains(t, string(raw), "gateway.example")
}

func TestGenerateTools_FunctionCallingUnsupported(t *testing.T) {
	enableCalls := 0
	e := newTestEngine(Options{
		FunctionCallChecker: func(model, provider string) bool { return false },
		EnableChecker: func(string, *PluginManifest, string, string, GenerationContext) bool {
			enableCalls++
			return true
		},
	})

	assert.Nil(t, e.GenerateTools([]string{"web-search"}, "m", "p", nil))
	assert.Zero(t, enableCalls)
}

func TestGenerateTools_EmptyKeptSetIsNil(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ids  []string
	}{
		{"no ids", Options{}, nil},
		{"unknown ids", Options{}, []string{"ghost"}},
		{"all disabled", Options{EnableChecker: func(string, *PluginManifest, string, string, GenerationContext) bool { return false }}, []string{"web-search"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestEngine(tt.opts).GenerateTools(tt.ids, "m", "p", nil)
			assert.Nil(t, got)
		})
	}
}

func TestGenerateTools_DeduplicatesWithDefaults(t *testing.T) {
	e := newTestEngine(Options{DefaultToolIDs: []string{"calculator", "web-search"}})

	tools := e.GenerateTools([]string{"calculator", "calculator"}, "m", "p", nil)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Function.Name)
	}
	assert.Equal(t, []string{
		"calculator____add",
		"web-search____search____builtin",
		"web-search____crawl____builtin",
	}, names)
}

func TestGenerateTools_EnableCheckerReceivesContext(t *testing.T) {
	var gotID, gotModel, gotProvider string
	var gotEnv any
	e := newTestEngine(Options{
		EnableChecker: func(id string, m *PluginManifest, model, provider string, genCtx GenerationContext) bool {
			gotID, gotModel, gotProvider = id, model, provider
			gotEnv = genCtx["environment"]
			return m.Identifier == "calculator"
		},
	})

	tools := e.GenerateTools([]string{"calculator"}, "claude", "anthropic", GenerationContext{"environment": "desktop"})

	require.Len(t, tools, 1)
	assert.Equal(t, "calculator", gotID)
	assert.Equal(t, "claude", gotModel)
	assert.Equal(t, "anthropic", gotProvider)
	assert.Equal(t, "desktop", gotEnv)
}

// =============================================================================
// DETAILED
// =============================================================================

func TestGenerateToolsDetailed_Reasons(t *testing.T) {
	e := newTestEngine(Options{
		EnableChecker: func(id string, _ *PluginManifest, _, _ string, _ GenerationContext) bool {
			return id != "calculator"
		},
	})

	res := e.GenerateToolsDetailed([]string{"web-search", "calculator", "ghost", "ghost"}, "m", "p", nil)

	assert.Equal(t, []string{"web-search"}, res.EnabledToolIDs)
	assert.Equal(t, []FilteredTool{
		{ID: "calculator", Reason: ReasonDisabled},
		{ID: "ghost", Reason: ReasonNotFound},
	}, res.FilteredTools)
	assert.Len(t, res.Tools, 2)
}

func TestGenerateToolsDetailed_IncompatibleOverridesEverything(t *testing.T) {
	e := newTestEngine(Options{
		FunctionCallChecker: func(string, string) bool { return false },
		EnableChecker:       func(string, *PluginManifest, string, string, GenerationContext) bool { return false },
		DefaultToolIDs:      []string{"calculator"},
	})

	res := e.GenerateToolsDetailed([]string{"ghost", "web-search"}, "m", "p", nil)

	assert.Nil(t, res.Tools)
	assert.Empty(t, res.EnabledToolIDs)
	assert.Equal(t, []FilteredTool{
		{ID: "ghost", Reason: ReasonIncompatible},
		{ID: "web-search", Reason: ReasonIncompatible},
		{ID: "calculator", Reason: ReasonIncompatible},
	}, res.FilteredTools)
}

func TestGenerateToolsDetailed_PartitionsRequestedIDs(t *testing.T) {
	e := newTestEngine(Options{DefaultToolIDs: []string{"web-search"}})

	res := e.GenerateToolsDetailed([]string{"web-search", "ghost", "calculator", "ghost"}, "m", "p", nil)

	seen := map[string]int{}
	for _, id := range res.EnabledToolIDs {
		seen[id]++
	}
	for _, f := range res.FilteredTools {
		seen[f.ID]++
	}
	assert.Equal(t, map[string]int{"web-search": 1, "ghost": 1, "calculator": 1}, seen)
}

// =============================================================================
// MANIFEST MANAGEMENT
// =============================================================================

func TestManifestManagement(t *testing.T) {
	e := NewEngine(Options{})
	assert.Empty(t, e.GetAvailablePlugins())

	e.AddPluginManifest(calcManifest())
	assert.True(t, e.HasPlugin("calculator"))

	m, ok := e.GetPluginManifest("calculator")
	require.True(t, ok)
	assert.Equal(t, "calculator", m.Identifier)

	e.UpdateManifestSchemas([]PluginManifest{searchManifest()})
	assert.False(t, e.HasPlugin("calculator"))
	assert.Equal(t, []string{"web-search"}, e.GetAvailablePlugins())

	e.RemovePluginManifest("web-search")
	e.RemovePluginManifest("never-added")
	assert.Empty(t, e.GetAvailablePlugins())
}

func TestRegistry_IsolatedFromCaller(t *testing.T) {
	m := calcManifest()
	r := NewRegistry(m)
	m.API[0].Name = "mutated"

	names, ok := r.APINames("calculator")
	require.True(t, ok)
	assert.Equal(t, []string{"add"}, names)
}

func TestGetPluginManifest_ReturnsCopy(t *testing.T) {
	e := NewEngine(Options{Manifests: []PluginManifest{calcManifest()}})

	m, ok := e.GetPluginManifest("calculator")
	require.True(t, ok)
	m.API[0].Name = "mutated"
	m.API = append(m.API, APIDescriptor{Name: "extra"})

	again, ok := e.GetPluginManifest("calculator")
	require.True(t, ok)
	assert.Equal(t, []string{"add"}, again.APINames())

	_, ok = e.GetPluginManifest("missing")
	assert.False(t, ok)
}

func TestGenerateTools_KeepsEmptyParameters(t *testing.T) {
	m := PluginManifest{
		Identifier: "clock",
		API: []APIDescriptor{
			{Name: "now", Description: "Current time", Parameters: map[string]any{}},
			{Name: "tick", Description: "Tick"},
		},
	}
	tools := NewEngine(Options{Manifests: []PluginManifest{m}}).GenerateTools([]string{"clock"}, "gpt-4o", "openai", nil)
	require.Len(t, tools, 2)

	data, err := json.Marshal(tools)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"parameters":{}`)

	var decoded []struct {
		Function map[string]any `json:"function"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded[0].Function, "parameters")
	assert.NotContains(t, decoded[1].Function, "parameters")

	api, err := json.Marshal(m.API[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"now","description":"Current time","parameters":{}}`, string(api))
}

func TestRegistry_ResolvesThroughCodec(t *testing.T) {
	long := "really-long-operation-name-that-blows-past-the-wire-limit-for-tools"
	r := NewRegistry(PluginManifest{Identifier: "plugin", API: []APIDescriptor{{Name: long}}})
	e := NewEngine(Options{Registry: r})

	tools := e.GenerateTools([]string{"plugin"}, "m", "p", nil)
	require.Len(t, tools, 1)
	assert.True(t, toolname.IsHashed(tools[0].Function.Name[len("plugin"+toolname.Separator):]))

	resolved := toolname.Resolve([]toolname.ToolCall{{ID: "1", Name: tools[0].Function.Name}}, r)
	require.Len(t, resolved, 1)
	assert.Equal(t, long, resolved[0].APIName)
}

func TestToolSystemRoles(t *testing.T) {
	e := newTestEngine(Options{})

	got := e.ToolSystemRoles([]string{"web-search", "ghost"})

	assert.Contains(t, got, `<plugins description="The plugins you can use below">`)
	assert.Contains(t, got, `<collection name="Web Search">`)
	assert.Contains(t, got, "<collection.instructions>Use search for fresh facts.</collection.instructions>")
	assert.Contains(t, got, `<api identifier="web-search____search____builtin">Search the web</api>`)
	assert.NotContains(t, got, "calculator")

	assert.Empty(t, e.ToolSystemRoles([]string{"ghost"}))
}
