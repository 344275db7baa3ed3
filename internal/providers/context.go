package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/pipeline"
)

// =============================================================================
// AGENT BUILDER
// =============================================================================

// AgentBuilderContext is the agent being edited in the agent builder.
type AgentBuilderContext struct {
	Config           map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Meta             map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
	AvailablePlugins []string       `json:"availablePlugins,omitempty" yaml:"available_plugins,omitempty"`
}

// AgentBuilderContextInjector attaches the edited agent to the last user
// message.
type AgentBuilderContextInjector struct {
	Context *AgentBuilderContext
}

// Name implements pipeline.Stage.
func (p *AgentBuilderContextInjector) Name() string { return NameAgentBuilderContext }

// Process implements pipeline.Stage.
func (p *AgentBuilderContextInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if p.Context == nil {
		return pc, nil
	}
	body, err := RenderAgentBuilderContext(*p.Context)
	if err != nil {
		return nil, fmt.Errorf("render agent builder context: %w", err)
	}
	msgs, ok := pipeline.AppendLastUserContext(pc.Messages, body, "current_agent_context")
	if !ok {
		log.Debug().Msg("providers: no user message for agent builder context")
		return pc, nil
	}
	pc.Messages = msgs
	pc.SetMeta("agentBuilderContextInjected", true)
	return pc, nil
}

// RenderAgentBuilderContext lists the agent meta, config and plugins.
func RenderAgentBuilderContext(c AgentBuilderContext) (string, error) {
	var blocks []string
	if len(c.Meta) > 0 {
		raw, err := json.MarshalIndent(c.Meta, "", "  ")
		if err != nil {
			return "", err
		}
		blocks = append(blocks, pipeline.ContextBlock(string(raw), "agent_meta"))
	}
	if len(c.Config) > 0 {
		raw, err := json.MarshalIndent(c.Config, "", "  ")
		if err != nil {
			return "", err
		}
		blocks = append(blocks, pipeline.ContextBlock(string(raw), "agent_config"))
	}
	if len(c.AvailablePlugins) > 0 {
		blocks = append(blocks, pipeline.ContextBlock(strings.Join(c.AvailablePlugins, "\n"), "available_plugins"))
	}
	return strings.Join(blocks, "\n"), nil
}

// =============================================================================
// PAGE EDITOR
// =============================================================================

// PageDocument identifies the open document.
type PageDocument struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
}

// PageEditorContext is the document open in the page editor.
type PageEditorContext struct {
	Document PageDocument `json:"document" yaml:"document"`
	Content  string       `json:"content" yaml:"content"`
}

// PageEditorContextInjector attaches the open document to the last user
// message.
type PageEditorContextInjector struct {
	Context *PageEditorContext
}

// Name implements pipeline.Stage.
func (p *PageEditorContextInjector) Name() string { return NamePageEditorContext }

// Process implements pipeline.Stage.
func (p *PageEditorContextInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if p.Context == nil {
		return pc, nil
	}
	msgs, ok := pipeline.AppendLastUserContext(pc.Messages, RenderPageEditorContext(*p.Context), "current_page_context")
	if !ok {
		return pc, nil
	}
	pc.Messages = msgs
	pc.SetMeta("pageEditorContextInjected", true)
	return pc, nil
}

// RenderPageEditorContext renders the document with its id and title.
func RenderPageEditorContext(c PageEditorContext) string {
	return fmt.Sprintf("<document id=\"%s\" title=\"%s\">\n%s\n</document>",
		attr(c.Document.ID), attr(c.Document.Title), c.Content)
}
