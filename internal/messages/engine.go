// Package messages assembles the full message pipeline from one parameter set.
//
// DESIGN: The stage list is declared once, in a fixed order, from Params.
// Optional injectors are included only when their input is present, so a
// run never pays for a stage that cannot do anything. Capabilities default
// to "function calling and vision yes, video no".
//
// FLOW (Engine.Process):
//  1. New(params) builds the ordered stage list
//  2. Process runs it through pipeline.Engine on a clone of the messages
//  3. The result optionally carries a token estimate of the final list
package messages

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
	"github.com/compresr/context-engine/internal/processors"
	"github.com/compresr/context-engine/internal/providers"
	"github.com/compresr/context-engine/internal/tokens"
	"github.com/compresr/context-engine/internal/toolname"
)

// Capabilities answers what the target model supports. Nil checks use the
// defaults: function calling true, vision true, video false.
type Capabilities struct {
	IsCanUseFC     processors.CapabilityChecker
	IsCanUseVision processors.CapabilityChecker
	IsCanUseVideo  processors.CapabilityChecker
}

// ToolsConfig lists the enabled tools and how to describe them.
type ToolsConfig struct {
	Tools              []string
	GetToolSystemRoles providers.ToolSystemRolesFunc
}

// Params is everything one run needs.
type Params struct {
	Messages  []message.Message
	Model     string
	Provider  string
	MaxTokens int

	SystemRole    string
	InputTemplate string

	EnableHistoryCount   bool
	HistoryCount         int
	HistorySummary       string
	FormatHistorySummary func(summary string) string

	Knowledge           providers.Knowledge
	ToolsConfig         ToolsConfig
	Capabilities        Capabilities
	VariableGenerators  map[string]processors.Generator
	FileContext         *processors.FileContext // nil: enabled, URLs included
	AgentBuilderContext *providers.AgentBuilderContext
	PageEditorContext   *providers.PageEditorContext
	UserMemory          *providers.UserMemory

	IncludeHistoricalThinking bool
	GenToolCallingName        processors.NameGenerator // nil: toolname.Generate

	// Metadata is merged into the run's initial metadata.
	Metadata map[string]any
}

// Engine runs the assembled pipeline.
type Engine struct {
	params   Params
	stages   []pipeline.Stage
	pipeOpts []pipeline.Option
	counter  *tokens.Counter
}

// Option configures an Engine.
type Option func(*Engine)

// WithPipelineOptions passes tracing, metrics and alert options through to
// the pipeline engine.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(e *Engine) { e.pipeOpts = append(e.pipeOpts, opts...) }
}

// WithTokenCounter records an estimatedTokens metadata entry after each run.
func WithTokenCounter(c *tokens.Counter) Option {
	return func(e *Engine) { e.counter = c }
}

// New builds the stage list for params.
func New(params Params, opts ...Option) *Engine {
	e := &Engine{params: params}
	for _, opt := range opts {
		opt(e)
	}
	e.stages = buildStages(params)
	return e
}

// Stages returns a copy of the assembled stage list.
func (e *Engine) Stages() []pipeline.Stage {
	return append([]pipeline.Stage(nil), e.stages...)
}

// Process runs the pipeline.
func (e *Engine) Process(ctx context.Context) (*pipeline.Result, error) {
	p := e.params
	res, err := pipeline.New(e.stages, e.pipeOpts...).Process(ctx, pipeline.Input{
		Messages:  p.Messages,
		Model:     p.Model,
		Provider:  p.Provider,
		MaxTokens: p.MaxTokens,
		Metadata:  p.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if e.counter != nil {
		res.Metadata["estimatedTokens"] = e.counter.CountMessages(p.Model, res.Messages)
	}
	log.Debug().
		Str("model", p.Model).
		Int("input", len(p.Messages)).
		Int("output", len(res.Messages)).
		Msg("messages: processed")
	return res, nil
}

// ProcessMessages runs the pipeline and returns only the messages.
func (e *Engine) ProcessMessages(ctx context.Context) ([]message.Message, error) {
	res, err := e.Process(ctx)
	if err != nil {
		return nil, err
	}
	return res.Messages, nil
}

// =============================================================================
// ASSEMBLY
// =============================================================================

func buildStages(p Params) []pipeline.Stage {
	caps := withDefaults(p.Capabilities)

	fileCtx := processors.FileContext{Enabled: true, IncludeFileURL: true}
	if p.FileContext != nil {
		fileCtx = *p.FileContext
	}
	genName := p.GenToolCallingName
	if genName == nil {
		genName = toolname.Generate
	}

	stages := []pipeline.Stage{
		processors.NewHistoryTruncate(p.EnableHistoryCount, p.HistoryCount),
		providers.NewSystemRoleInjector(p.SystemRole),
		providers.NewKnowledgeInjector(p.Knowledge),
	}
	if p.AgentBuilderContext != nil {
		stages = append(stages, &providers.AgentBuilderContextInjector{Context: p.AgentBuilderContext})
	}
	if p.PageEditorContext != nil {
		stages = append(stages, &providers.PageEditorContextInjector{Context: p.PageEditorContext})
	}
	if len(p.ToolsConfig.Tools) > 0 {
		stages = append(stages, &providers.ToolSystemRoleInjector{
			Tools:              p.ToolsConfig.Tools,
			GetToolSystemRoles: p.ToolsConfig.GetToolSystemRoles,
			IsCanUseFC:         caps.IsCanUseFC,
		})
	}
	stages = append(stages, &providers.HistorySummaryInjector{
		Summary: p.HistorySummary,
		Format:  p.FormatHistorySummary,
	})
	if p.UserMemory.Active() {
		stages = append(stages, &providers.UserMemoryInjector{Memory: p.UserMemory})
	}

	return append(stages,
		processors.NewInputTemplate(p.InputTemplate),
		processors.NewPlaceholderVariables(p.VariableGenerators),
		processors.NewGroupMessageFlatten(),
		&processors.MessageContent{
			IsCanUseVision:            caps.IsCanUseVision,
			IsCanUseVideo:             caps.IsCanUseVideo,
			FileContext:               fileCtx,
			IncludeHistoricalThinking: p.IncludeHistoricalThinking,
		},
		processors.NewToolCall(genName, caps.IsCanUseFC),
		processors.NewToolMessageReorder(),
		processors.NewMessageCleanup(),
	)
}

func withDefaults(c Capabilities) Capabilities {
	if c.IsCanUseFC == nil {
		c.IsCanUseFC = func(string, string) bool { return true }
	}
	if c.IsCanUseVision == nil {
		c.IsCanUseVision = func(string, string) bool { return true }
	}
	if c.IsCanUseVideo == nil {
		c.IsCanUseVideo = func(string, string) bool { return false }
	}
	return c
}
