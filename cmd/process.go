package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/adapters"
	"github.com/compresr/context-engine/internal/config"
	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/messages"
	"github.com/compresr/context-engine/internal/monitoring"
	"github.com/compresr/context-engine/internal/pipeline"
	"github.com/compresr/context-engine/internal/providers"
	"github.com/compresr/context-engine/internal/tokens"
	"github.com/compresr/context-engine/internal/toolengine"
)

// processRequest is the request file read by the process command. Unset
// fields fall back to the config.
type processRequest struct {
	Messages  []message.Message `json:"messages"`
	Model     string            `json:"model,omitempty"`
	Provider  string            `json:"provider,omitempty"`
	MaxTokens int               `json:"maxTokens,omitempty"`

	SystemRole     *string `json:"systemRole,omitempty"`
	InputTemplate  *string `json:"inputTemplate,omitempty"`
	HistorySummary string  `json:"historySummary,omitempty"`

	Tools             []string       `json:"tools,omitempty"`
	GenerationContext map[string]any `json:"generationContext,omitempty"`

	Knowledge           providers.Knowledge            `json:"knowledge,omitempty"`
	AgentBuilderContext *providers.AgentBuilderContext `json:"agentBuilderContext,omitempty"`
	PageEditorContext   *providers.PageEditorContext   `json:"pageEditorContext,omitempty"`
	UserMemory          *providers.UserMemory          `json:"userMemory,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// processOutput is written when no adapter is selected.
type processOutput struct {
	Messages      []message.Message         `json:"messages"`
	Metadata      map[string]any            `json:"metadata"`
	Stats         pipeline.Stats            `json:"stats"`
	Tools         []toolengine.Tool         `json:"tools,omitempty"`
	FilteredTools []toolengine.FilteredTool `json:"filteredTools,omitempty"`
}

func runProcess(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML or TOML config (default: embedded)")
	inputPath := fs.String("input", "", "request JSON file, - for stdin")
	manifestDir := fs.String("manifests", "", "plugin manifest directory")
	adapterName := fs.String("adapter", "", "render a provider request body")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputPath == "" {
		return errors.New("-input is required")
	}

	cfg, source, err := resolveConfig(*configPath)
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Monitoring.Log, *debug)
	log.Debug().Str("config", source).Msg("configuration loaded")

	if *manifestDir != "" {
		cfg.Tools.ManifestDir = *manifestDir
	}
	if *adapterName != "" {
		cfg.Tools.Adapter = *adapterName
	}

	var adapter adapters.Adapter
	if cfg.Tools.Adapter != "" {
		adapter = adapters.NewRegistry().Get(cfg.Tools.Adapter)
		if adapter == nil {
			return fmt.Errorf("unknown adapter %q", cfg.Tools.Adapter)
		}
	}

	req, err := readRequest(*inputPath)
	if err != nil {
		return err
	}

	params := cfg.Pipeline.Params()
	mergeRequest(&params, req)

	generators, err := cfg.Generators(time.Now)
	if err != nil {
		return err
	}
	params.VariableGenerators = generators

	engine, err := newToolEngine(cfg, params.Capabilities)
	if err != nil {
		return err
	}
	detailed := engine.GenerateToolsDetailed(req.Tools, params.Model, params.Provider, req.GenerationContext)
	if len(detailed.EnabledToolIDs) > 0 {
		params.ToolsConfig = messages.ToolsConfig{
			Tools:              detailed.EnabledToolIDs,
			GetToolSystemRoles: engine.ToolSystemRoles,
		}
	}
	if abc := params.AgentBuilderContext; abc != nil && len(abc.AvailablePlugins) == 0 {
		abc.AvailablePlugins = engine.GetAvailablePlugins()
	}

	metrics := monitoring.NewMetricsCollector()
	metrics.RecordTools(len(detailed.Tools))
	opts := []messages.Option{
		messages.WithPipelineOptions(
			pipeline.WithTracer(monitoring.Tracer(cfg.Monitoring.Tracing)),
			pipeline.WithMetrics(metrics),
			pipeline.WithAlerts(monitoring.NewAlertManager(logger, cfg.Monitoring.Alerts)),
		),
	}
	if cfg.Pipeline.EstimateTokens {
		opts = append(opts, messages.WithTokenCounter(tokens.NewCounter()))
	}

	res, err := messages.New(params, opts...).Process(ctx)
	if err != nil {
		return fmt.Errorf("process messages: %w", err)
	}
	log.Info().
		Int("messages", len(res.Messages)).
		Int("tools", len(detailed.Tools)).
		Interface("metrics", metrics.Stats()).
		Msg("pipeline finished")

	if adapter != nil {
		body, err := adapter.BuildRequest(adapters.Request{
			Model:     params.Model,
			MaxTokens: params.MaxTokens,
			Messages:  res.Messages,
			Tools:     detailed.Tools,
		})
		if err != nil {
			return fmt.Errorf("render %s request: %w", adapter.Name(), err)
		}
		_, err = fmt.Fprintln(stdout, string(body))
		return err
	}

	return writeJSON(stdout, processOutput{
		Messages:      res.Messages,
		Metadata:      res.Metadata,
		Stats:         res.Stats,
		Tools:         detailed.Tools,
		FilteredTools: detailed.FilteredTools,
	})
}

// resolveConfig resolves the config for a command.
// Checks: user flag -> filesystem locations -> embedded default.
func resolveConfig(userConfig string) (*config.Config, string, error) {
	if userConfig != "" {
		cfg, err := config.Load(userConfig)
		if err != nil {
			return nil, "", err
		}
		return cfg, userConfig, nil
	}

	var searchPaths []string
	if homeDir, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(homeDir, ".config", "context-engine", "config.yaml"),
			filepath.Join(homeDir, ".config", "context-engine", "config.toml"),
		)
	}
	searchPaths = append(searchPaths, "context-engine.yaml", "context-engine.toml")

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, "", err
			}
			return cfg, path, nil
		}
	}

	data, err := getEmbeddedConfig("default")
	if err != nil {
		return nil, "", fmt.Errorf("no config file found. Specify -config path")
	}
	cfg, err := config.LoadFromBytes(data, config.FormatYAML)
	if err != nil {
		return nil, "", fmt.Errorf("embedded config: %w", err)
	}
	return cfg, "(embedded) default.yaml", nil
}

func readRequest(path string) (*processRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}

	var req processRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("parse request %s: %w", path, err)
	}
	return &req, nil
}

func mergeRequest(p *messages.Params, req *processRequest) {
	p.Messages = req.Messages
	if req.Model != "" {
		p.Model = req.Model
	}
	if req.Provider != "" {
		p.Provider = req.Provider
	}
	if req.MaxTokens > 0 {
		p.MaxTokens = req.MaxTokens
	}
	if req.SystemRole != nil {
		p.SystemRole = *req.SystemRole
	}
	if req.InputTemplate != nil {
		p.InputTemplate = *req.InputTemplate
	}
	p.HistorySummary = req.HistorySummary
	p.Knowledge = req.Knowledge
	p.AgentBuilderContext = req.AgentBuilderContext
	p.PageEditorContext = req.PageEditorContext
	p.UserMemory = req.UserMemory
	p.Metadata = req.Metadata
}

// newToolEngine builds a tool engine over the configured manifest directory.
// No directory means no plugins.
func newToolEngine(cfg *config.Config, caps messages.Capabilities) (*toolengine.Engine, error) {
	var manifests []toolengine.PluginManifest
	if dir := cfg.Tools.ManifestDir; dir != "" {
		loaded, err := toolengine.LoadManifests(dir)
		if err != nil {
			return nil, err
		}
		manifests = loaded
	}
	return toolengine.NewEngine(toolEngineOptions(cfg, caps, manifests)), nil
}

func toolEngineOptions(cfg *config.Config, caps messages.Capabilities, manifests []toolengine.PluginManifest) toolengine.Options {
	disabled := cfg.Tools.DisabledSet()
	opts := toolengine.Options{
		Manifests:      manifests,
		DefaultToolIDs: cfg.Tools.DefaultToolIDs,
		EnableChecker: func(id string, _ *toolengine.PluginManifest, _, _ string, _ toolengine.GenerationContext) bool {
			return !disabled[id]
		},
	}
	if caps.IsCanUseFC != nil {
		opts.FunctionCallChecker = toolengine.FunctionCallChecker(caps.IsCanUseFC)
	}
	return opts
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
