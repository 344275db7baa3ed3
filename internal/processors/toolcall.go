package processors

import (
	"context"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
	"github.com/compresr/context-engine/internal/toolname"
)

// NameGenerator builds the wire function name of a tool operation.
type NameGenerator func(identifier, apiName, typ string) string

// ToolCall converts UI tool payloads into wire tool calls.
//
// With function calling supported, assistant tools become tool_calls named by
// GenName and tool messages get the same name. Without it, assistant tool
// fields are dropped and tool messages are demoted to user messages so the
// result text is still visible to the model.
type ToolCall struct {
	GenName    NameGenerator
	IsCanUseFC CapabilityChecker
}

// NewToolCall creates the tool-call stage. A nil genName uses the codec.
func NewToolCall(genName NameGenerator, isCanUseFC CapabilityChecker) *ToolCall {
	return &ToolCall{GenName: genName, IsCanUseFC: isCanUseFC}
}

// Name implements pipeline.Stage.
func (p *ToolCall) Name() string { return NameToolCall }

// Process implements pipeline.Stage.
func (p *ToolCall) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	genName := p.GenName
	if genName == nil {
		genName = toolname.Generate
	}
	support := check(p.IsCanUseFC, pc.Model(), pc.Provider(), true)

	processed, calls, tools := 0, 0, 0
	for i := range pc.Messages {
		m := &pc.Messages[i]
		switch m.Role {
		case message.RoleAssistant:
			if !support {
				if len(m.Tools) > 0 || m.ToolCalls != nil {
					processed++
				}
				m.Tools = nil
				m.ToolCalls = nil
				continue
			}
			if len(m.Tools) == 0 {
				m.Tools = nil
				continue
			}
			m.ToolCalls = toToolCalls(m.Tools, genName)
			m.Tools = nil
			processed++
			calls++

		case message.RoleTool:
			processed++
			tools++
			if !support {
				m.Role = message.RoleUser
				m.Name = ""
				m.Plugin = nil
				m.ToolCallID = ""
				continue
			}
			if m.Plugin != nil {
				m.Name = genName(m.Plugin.Identifier, m.Plugin.APIName, m.Plugin.Type)
			}
		}
	}

	pc.SetMeta("toolCallProcessed", processed)
	pc.SetMeta("toolCallsConverted", calls)
	pc.SetMeta("toolMessagesConverted", tools)
	pc.SetMeta("supportTools", support)
	return pc, nil
}

func toToolCalls(tools []message.ToolPayload, genName NameGenerator) []message.ToolCall {
	out := make([]message.ToolCall, 0, len(tools))
	for _, t := range tools {
		out = append(out, message.ToolCall{
			ID:   t.ID,
			Type: "function",
			Function: message.ToolCallFunction{
				Name:      genName(t.Identifier, t.APIName, t.Type),
				Arguments: t.Arguments,
			},
		})
	}
	return out
}
