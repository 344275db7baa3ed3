package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	os.Exit(m.Run())
}

const yamlConfig = `
pipeline:
  model: gpt-4o
  provider: openai
  max_tokens: 1024
  system_role: "You are ${ASSISTANT_NAME:-Ada}."
  input_template: "Q: {{text}}"
  enable_history_count: true
  history_count: 6
  file_context:
    enabled: true
    include_file_url: false
  capabilities:
    defaults:
      video: true
    models:
      text-only:
        function_calling: false
        vision: false
tools:
  manifest_dir: plugins
  default_tool_ids: [search]
  disabled: [legacy]
  adapter: anthropic
variables:
  - name: answer
    script: "6 * 7"
monitoring:
  log:
    level: debug
    format: console
  alerts:
    slow_stage_threshold: 50ms
    slow_run_threshold: 2s
  tracing:
    enabled: true
    service_name: context-engine
`

const tomlConfig = `
[pipeline]
model = "claude-sonnet-4-5"
provider = "anthropic"
history_count = 4
enable_history_count = true

[pipeline.capabilities.defaults]
function_calling = false

[tools]
adapter = "openai"
default_tool_ids = ["search", "calc"]

[[variables]]
name = "greeting"
script = "'hello'"

[monitoring.log]
level = "warn"
format = "json"

[monitoring.alerts]
slow_run_threshold = "1s"
`

// =============================================================================
// LOADING
// =============================================================================

func TestLoadFromBytes_YAML(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Pipeline.Model)
	assert.Equal(t, 1024, cfg.Pipeline.MaxTokens)
	assert.Equal(t, "You are Ada.", cfg.Pipeline.SystemRole)
	assert.Equal(t, 6, cfg.Pipeline.HistoryCount)
	require.NotNil(t, cfg.Pipeline.FileContext)
	assert.False(t, cfg.Pipeline.FileContext.IncludeFileURL)

	assert.Equal(t, []string{"search"}, cfg.Tools.DefaultToolIDs)
	assert.True(t, cfg.Tools.DisabledSet()["legacy"])
	assert.Equal(t, "anthropic", cfg.Tools.Adapter)

	assert.Equal(t, "debug", cfg.Monitoring.Log.Level)
	assert.Equal(t, 50*time.Millisecond, cfg.Monitoring.Alerts.SlowStageThreshold)
	assert.Equal(t, 2*time.Second, cfg.Monitoring.Alerts.SlowRunThreshold)
	assert.True(t, cfg.Monitoring.Tracing.Enabled)
}

func TestLoadFromBytes_TOML(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(tomlConfig), FormatTOML)
	require.NoError(t, err)

	assert.Equal(t, "claude-sonnet-4-5", cfg.Pipeline.Model)
	assert.Equal(t, 4, cfg.Pipeline.HistoryCount)
	assert.Equal(t, []string{"search", "calc"}, cfg.Tools.DefaultToolIDs)
	require.Len(t, cfg.Variables, 1)
	assert.Equal(t, "greeting", cfg.Variables[0].Name)
	assert.Equal(t, "warn", cfg.Monitoring.Log.Level)
	assert.Equal(t, time.Second, cfg.Monitoring.Alerts.SlowRunThreshold)

	require.NotNil(t, cfg.Pipeline.Capabilities.Defaults.FunctionCalling)
	assert.False(t, *cfg.Pipeline.Capabilities.Defaults.FunctionCalling)
}

func TestLoad_FormatByExtensionAndRelativeManifests(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlConfig), 0o600))
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plugins"), cfg.Tools.ManifestDir)

	tomlPath := filepath.Join(dir, "engine.TOML")
	require.NoError(t, os.WriteFile(tomlPath, []byte(tomlConfig), 0o600))
	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Pipeline.Provider)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFromBytes([]byte("pipeline: [unclosed"), FormatYAML)
	assert.Error(t, err)

	_, err = LoadFromBytes([]byte("pipeline = "), FormatTOML)
	assert.Error(t, err)

	_, err = LoadFromBytes([]byte("{}"), Format("ini"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatTOML, FormatFromPath("a/b.toml"))
	assert.Equal(t, FormatYAML, FormatFromPath("a/b.yml"))
	assert.Equal(t, FormatYAML, FormatFromPath("config"))
}

// =============================================================================
// ENV
// =============================================================================

func TestExpandEnvWithDefaults(t *testing.T) {
	t.Setenv("CE_TEST_SET", "value")

	tests := []struct {
		in, want string
	}{
		{"${CE_TEST_SET}", "value"},
		{"${CE_TEST_SET:-fallback}", "value"},
		{"${CE_TEST_UNSET:-fallback}", "fallback"},
		{"${CE_TEST_UNSET}", ""},
		{"plain $CE_TEST_SET", "plain $CE_TEST_SET"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnvWithDefaults(tt.in))
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CONTEXT_ENGINE_LOG_LEVEL", "error")
	t.Setenv("CONTEXT_ENGINE_MANIFESTS", "/etc/plugins")

	cfg, err := LoadFromBytes([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Monitoring.Log.Level)
	assert.Equal(t, "/etc/plugins", cfg.Tools.ManifestDir)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty config", func(*Config) {}, ""},
		{"negative max tokens", func(c *Config) { c.Pipeline.MaxTokens = -1 }, "max_tokens"},
		{"negative history", func(c *Config) { c.Pipeline.HistoryCount = -2 }, "history_count"},
		{"bad level", func(c *Config) { c.Monitoring.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Monitoring.Log.Format = "xml" }, "log.format"},
		{"negative alert", func(c *Config) { c.Monitoring.Alerts.SlowRunThreshold = -time.Second }, "thresholds"},
		{"empty default tool", func(c *Config) { c.Tools.DefaultToolIDs = []string{" "} }, "default_tool_ids"},
		{"bad variable name", func(c *Config) {
			c.Variables = []ScriptVariable{{Name: "has space", Script: "1"}}
		}, "invalid variable name"},
		{"empty script", func(c *Config) {
			c.Variables = []ScriptVariable{{Name: "x", Script: "  "}}
		}, "no script"},
		{"syntax error", func(c *Config) {
			c.Variables = []ScriptVariable{{Name: "x", Script: "1 +"}}
		}, "variables[0]"},
		{"duplicate variable", func(c *Config) {
			c.Variables = []ScriptVariable{{Name: "x", Script: "1"}, {Name: "x", Script: "2"}}
		}, "duplicate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// =============================================================================
// PIPELINE DEFAULTS
// =============================================================================

func TestPipelineParams(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)

	params := cfg.Pipeline.Params()
	assert.Equal(t, "gpt-4o", params.Model)
	assert.Equal(t, "Q: {{text}}", params.InputTemplate)
	assert.True(t, params.EnableHistoryCount)
	require.NotNil(t, params.FileContext)
	assert.NotSame(t, cfg.Pipeline.FileContext, params.FileContext)

	caps := params.Capabilities
	assert.True(t, caps.IsCanUseFC("gpt-4o", "openai"))
	assert.True(t, caps.IsCanUseVision("gpt-4o", "openai"))
	assert.True(t, caps.IsCanUseVideo("gpt-4o", "openai"))

	assert.False(t, caps.IsCanUseFC("text-only", "openai"))
	assert.False(t, caps.IsCanUseVision("text-only", "openai"))
	// unset on the model, inherited from defaults
	assert.True(t, caps.IsCanUseVideo("text-only", "openai"))
}

func TestCapabilityFallbacks(t *testing.T) {
	caps := CapabilityConfig{}.Checkers()
	assert.True(t, caps.IsCanUseFC("any", ""))
	assert.True(t, caps.IsCanUseVision("any", ""))
	assert.False(t, caps.IsCanUseVideo("any", ""))
}

// =============================================================================
// SCRIPTED VARIABLES
// =============================================================================

func TestCompileVariables(t *testing.T) {
	gens, err := CompileVariables([]ScriptVariable{
		{Name: "answer", Script: "6 * 7"},
		{Name: "shout", Script: "'hey'.toUpperCase()"},
		{Name: "nothing", Script: "undefined"},
		{Name: "boom", Script: "throw new Error('no')"},
	})
	require.NoError(t, err)

	assert.Equal(t, "42", gens["answer"]())
	assert.Equal(t, "HEY", gens["shout"]())
	assert.Equal(t, "", gens["nothing"]())
	assert.Equal(t, "", gens["boom"]())
}

func TestCompileVariables_Timeout(t *testing.T) {
	gens, err := CompileVariables([]ScriptVariable{{Name: "spin", Script: "for(;;){}"}})
	require.NoError(t, err)

	start := time.Now()
	assert.Equal(t, "", gens["spin"]())
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCompileVariables_SyntaxError(t *testing.T) {
	_, err := CompileVariables([]ScriptVariable{{Name: "bad", Script: "("}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bad"))
}

func TestGenerators_ScriptsOverrideBuiltins(t *testing.T) {
	cfg := &Config{Variables: []ScriptVariable{{Name: "year", Script: "'MMXXVI'"}}}
	fixed := func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }

	gens, err := cfg.Generators(fixed)
	require.NoError(t, err)
	assert.Equal(t, "MMXXVI", gens["year"]())
	assert.Equal(t, "2026-03-04", gens["date"]())
}
