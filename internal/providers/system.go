// Package providers holds the injecting stages of the message pipeline.
//
// DESIGN: An injector adds context the user did not type. It never rewrites
// existing turns. Three placements are available (see pipeline/inject.go):
//   - system message:   system role, tool system roles, history summary
//   - before first user: knowledge and user memory, consolidated into one
//     injected user message
//   - last user wrapper: agent-builder and page-editor context
//
// An injector with nothing to inject leaves the context untouched and sets no
// metadata.
package providers

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/pipeline"
)

// Stage names.
const (
	NameSystemRole          = "SystemRoleInjector"
	NameKnowledge           = "KnowledgeInjector"
	NameAgentBuilderContext = "AgentBuilderContextInjector"
	NamePageEditorContext   = "PageEditorContextInjector"
	NameToolSystemRole      = "ToolSystemRoleInjector"
	NameHistorySummary      = "HistorySummaryInjector"
	NameUserMemory          = "UserMemoryInjector"
)

// =============================================================================
// SYSTEM ROLE
// =============================================================================

// SystemRoleInjector puts the agent's system role at the top of the history.
type SystemRoleInjector struct {
	SystemRole string
}

// NewSystemRoleInjector creates the system-role stage.
func NewSystemRoleInjector(systemRole string) *SystemRoleInjector {
	return &SystemRoleInjector{SystemRole: systemRole}
}

// Name implements pipeline.Stage.
func (p *SystemRoleInjector) Name() string { return NameSystemRole }

// Process implements pipeline.Stage.
func (p *SystemRoleInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if strings.TrimSpace(p.SystemRole) == "" {
		return pc, nil
	}
	pc.Messages = pipeline.PrependSystem(pc.Messages, p.SystemRole)
	pc.SetMeta("systemRoleInjected", true)
	return pc, nil
}

// =============================================================================
// TOOL SYSTEM ROLES
// =============================================================================

// ToolSystemRolesFunc renders the system instructions for a tool list.
type ToolSystemRolesFunc func(toolIDs []string) string

// ToolSystemRoleInjector appends tool instructions to the system message when
// the model can call functions.
type ToolSystemRoleInjector struct {
	Tools              []string
	GetToolSystemRoles ToolSystemRolesFunc
	IsCanUseFC         func(model, provider string) bool
}

// Name implements pipeline.Stage.
func (p *ToolSystemRoleInjector) Name() string { return NameToolSystemRole }

// Process implements pipeline.Stage.
func (p *ToolSystemRoleInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if len(p.Tools) == 0 || p.GetToolSystemRoles == nil {
		return pc, nil
	}
	if p.IsCanUseFC != nil && !p.IsCanUseFC(pc.Model(), pc.Provider()) {
		log.Debug().Str("model", pc.Model()).Msg("providers: function calling unsupported, tool system roles skipped")
		return pc, nil
	}

	roles := p.GetToolSystemRoles(p.Tools)
	if strings.TrimSpace(roles) == "" {
		return pc, nil
	}
	pc.Messages = pipeline.AppendSystem(pc.Messages, roles)
	pc.SetMeta("toolSystemRoleInjected", true)
	return pc, nil
}

// =============================================================================
// HISTORY SUMMARY
// =============================================================================

// DefaultHistorySummary wraps a summary of earlier turns.
func DefaultHistorySummary(summary string) string {
	return "<chat_history_summary>\n" +
		"<docstring>Users may have lots of chat messages, here is the summary of the history:</docstring>\n" +
		"<summary>" + summary + "</summary>\n" +
		"</chat_history_summary>"
}

// HistorySummaryInjector appends a summary of truncated history to the
// system message.
type HistorySummaryInjector struct {
	Summary string
	Format  func(summary string) string
}

// Name implements pipeline.Stage.
func (p *HistorySummaryInjector) Name() string { return NameHistorySummary }

// Process implements pipeline.Stage.
func (p *HistorySummaryInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if strings.TrimSpace(p.Summary) == "" {
		return pc, nil
	}
	format := p.Format
	if format == nil {
		format = DefaultHistorySummary
	}
	pc.Messages = pipeline.AppendSystem(pc.Messages, format(p.Summary))
	pc.SetMeta("historySummaryInjected", true)
	return pc, nil
}
