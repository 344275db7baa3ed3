// Pipeline configuration - assembler defaults and model capabilities.
//
// DESIGN: Request files carry the conversation; everything that is stable
// across requests (system role, history window, template, capabilities)
// lives here and seeds messages.Params before the request is merged in.
package config

import (
	"fmt"
	"strings"

	"github.com/compresr/context-engine/internal/messages"
	"github.com/compresr/context-engine/internal/processors"
)

// PipelineConfig holds assembler defaults.
type PipelineConfig struct {
	Model     string `yaml:"model" toml:"model"`
	Provider  string `yaml:"provider" toml:"provider"`
	MaxTokens int    `yaml:"max_tokens" toml:"max_tokens"`

	SystemRole    string `yaml:"system_role" toml:"system_role"`
	InputTemplate string `yaml:"input_template" toml:"input_template"`

	EnableHistoryCount bool `yaml:"enable_history_count" toml:"enable_history_count"`
	HistoryCount       int  `yaml:"history_count" toml:"history_count"`

	IncludeHistoricalThinking bool                    `yaml:"include_historical_thinking" toml:"include_historical_thinking"`
	FileContext               *processors.FileContext `yaml:"file_context" toml:"file_context"`
	Capabilities              CapabilityConfig        `yaml:"capabilities" toml:"capabilities"`
	EstimateTokens            bool                    `yaml:"estimate_tokens" toml:"estimate_tokens"`
}

// CapabilityFlags declares what a model supports. Unset flags inherit.
type CapabilityFlags struct {
	FunctionCalling *bool `yaml:"function_calling" toml:"function_calling"`
	Vision          *bool `yaml:"vision" toml:"vision"`
	Video           *bool `yaml:"video" toml:"video"`
}

// CapabilityConfig is the default flag set plus per-model overrides keyed by
// model name.
type CapabilityConfig struct {
	Defaults CapabilityFlags            `yaml:"defaults" toml:"defaults"`
	Models   map[string]CapabilityFlags `yaml:"models" toml:"models"`
}

// Validate checks pipeline settings.
func (p PipelineConfig) Validate() error {
	if p.MaxTokens < 0 {
		return fmt.Errorf("pipeline.max_tokens must be >= 0, got %d", p.MaxTokens)
	}
	if p.HistoryCount < 0 {
		return fmt.Errorf("pipeline.history_count must be >= 0, got %d", p.HistoryCount)
	}
	for model := range p.Capabilities.Models {
		if strings.TrimSpace(model) == "" {
			return fmt.Errorf("pipeline.capabilities.models has an empty model name")
		}
	}
	return nil
}

// Params seeds assembler parameters from the configured defaults.
func (p PipelineConfig) Params() messages.Params {
	params := messages.Params{
		Model:                     p.Model,
		Provider:                  p.Provider,
		MaxTokens:                 p.MaxTokens,
		SystemRole:                p.SystemRole,
		InputTemplate:             p.InputTemplate,
		EnableHistoryCount:        p.EnableHistoryCount,
		HistoryCount:              p.HistoryCount,
		IncludeHistoricalThinking: p.IncludeHistoricalThinking,
		Capabilities:              p.Capabilities.Checkers(),
	}
	if p.FileContext != nil {
		fc := *p.FileContext
		params.FileContext = &fc
	}
	return params
}

// Checkers turns the flags into capability checks. Models without an entry
// use the defaults; unset defaults leave the assembler's own defaults.
func (c CapabilityConfig) Checkers() messages.Capabilities {
	return messages.Capabilities{
		IsCanUseFC:     c.checker(func(f CapabilityFlags) *bool { return f.FunctionCalling }, true),
		IsCanUseVision: c.checker(func(f CapabilityFlags) *bool { return f.Vision }, true),
		IsCanUseVideo:  c.checker(func(f CapabilityFlags) *bool { return f.Video }, false),
	}
}

func (c CapabilityConfig) checker(flag func(CapabilityFlags) *bool, fallback bool) processors.CapabilityChecker {
	return func(model, _ string) bool {
		if f, ok := c.Models[model]; ok {
			if v := flag(f); v != nil {
				return *v
			}
		}
		if v := flag(c.Defaults); v != nil {
			return *v
		}
		return fallback
	}
}
