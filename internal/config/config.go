// Package config loads and validates the context engine configuration.
//
// DESIGN: Configuration comes from one YAML or TOML file, chosen by file
// extension. ${VAR:-default} references are expanded before decoding, a small
// set of CONTEXT_ENGINE_* variables override file values, and Validate runs
// last so every loaded Config is usable as-is.
//
// FILES:
//   - config.go:     Root Config struct, Load(), Validate()
//   - pipeline.go:   Pipeline defaults and model capabilities
//   - variables.go:  Scripted placeholder variables (goja)
//   - monitoring.go: Logging, alerts and tracing settings
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format is the on-disk encoding of a config file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Config is the root configuration for the context engine.
type Config struct {
	Pipeline   PipelineConfig   `yaml:"pipeline" toml:"pipeline"`     // Assembler defaults
	Tools      ToolsConfig      `yaml:"tools" toml:"tools"`           // Plugin manifests and default tools
	Variables  []ScriptVariable `yaml:"variables" toml:"variables"`   // Scripted placeholder variables
	Monitoring MonitoringConfig `yaml:"monitoring" toml:"monitoring"` // Logging, alerts, tracing
}

// ToolsConfig configures the tool filter engine.
type ToolsConfig struct {
	ManifestDir    string   `yaml:"manifest_dir" toml:"manifest_dir"`         // Directory of JSON/YAML manifests
	DefaultToolIDs []string `yaml:"default_tool_ids" toml:"default_tool_ids"` // Merged into every request
	Disabled       []string `yaml:"disabled" toml:"disabled"`                 // Plugin ids never enabled
	Adapter        string   `yaml:"adapter" toml:"adapter"`                   // Wire format of rendered requests
}

var envRef = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandEnvWithDefaults expands environment variables with support for default values.
// Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		parts := envRef.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) > 2 {
			return parts[2]
		}
		return ""
	})
}

// FormatFromPath picks the decoder for a config file. Anything that is not
// .toml is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads configuration from a YAML or TOML file.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg, err := LoadFromBytes(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Relative manifest directories are resolved against the config file.
	if dir := cfg.Tools.ManifestDir; dir != "" && !filepath.IsAbs(dir) {
		cfg.Tools.ManifestDir = filepath.Join(filepath.Dir(path), dir)
	}
	return cfg, nil
}

// LoadFromBytes parses configuration from raw bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte, format Format) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	switch format {
	case FormatTOML:
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case FormatYAML, "":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides lets deployments redirect logs and manifests without
// editing the config file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CONTEXT_ENGINE_LOG_LEVEL"); v != "" {
		c.Monitoring.Log.Level = v
	}
	if v := os.Getenv("CONTEXT_ENGINE_LOG_FORMAT"); v != "" {
		c.Monitoring.Log.Format = v
	}
	if v := os.Getenv("CONTEXT_ENGINE_LOG_OUTPUT"); v != "" {
		c.Monitoring.Log.Output = v
	}
	if v := os.Getenv("CONTEXT_ENGINE_MANIFESTS"); v != "" {
		c.Tools.ManifestDir = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}
	if err := c.Monitoring.Validate(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Variables))
	for i, v := range c.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("variables[%d]: %w", i, err)
		}
		if seen[v.Name] {
			return fmt.Errorf("variables[%d]: duplicate name %q", i, v.Name)
		}
		seen[v.Name] = true
	}

	for _, id := range c.Tools.DefaultToolIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("tools.default_tool_ids contains an empty id")
		}
	}
	return nil
}

// DisabledSet returns the disabled plugin ids as a lookup set.
func (t ToolsConfig) DisabledSet() map[string]bool {
	set := make(map[string]bool, len(t.Disabled))
	for _, id := range t.Disabled {
		set[id] = true
	}
	return set
}
