package processors

import (
	"context"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
)

// =============================================================================
// TOOL MESSAGE REORDER
// =============================================================================

// ToolMessageReorder moves every tool result directly after the assistant
// message that issued the call, in tool_calls order. Tool messages whose call
// id matches no assistant call stay where they are.
type ToolMessageReorder struct{}

// NewToolMessageReorder creates the reorder stage.
func NewToolMessageReorder() *ToolMessageReorder { return &ToolMessageReorder{} }

// Name implements pipeline.Stage.
func (p *ToolMessageReorder) Name() string { return NameToolMessageReorder }

// Process implements pipeline.Stage.
func (p *ToolMessageReorder) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	out, moved := ReorderToolMessages(pc.Messages)
	pc.Messages = out
	pc.SetMeta("toolMessagesReordered", moved)
	return pc, nil
}

// ReorderToolMessages returns msgs with tool results placed after their calls
// and the number of tool messages whose position changed.
func ReorderToolMessages(msgs []message.Message) ([]message.Message, int) {
	issued := make(map[string]bool)
	for _, m := range msgs {
		if m.Role != message.RoleAssistant {
			continue
		}
		for _, c := range m.ToolCalls {
			issued[c.ID] = true
		}
	}

	results := make(map[string][]int)
	for i, m := range msgs {
		if m.Role == message.RoleTool && issued[m.ToolCallID] {
			results[m.ToolCallID] = append(results[m.ToolCallID], i)
		}
	}
	if len(results) == 0 {
		return msgs, 0
	}

	out := make([]message.Message, 0, len(msgs))
	placed := make(map[int]bool)
	moved := 0
	emit := func(i int) {
		if len(out) != i {
			moved++
		}
		out = append(out, msgs[i])
		placed[i] = true
	}

	for _, m := range msgs {
		if m.Role == message.RoleTool && issued[m.ToolCallID] {
			// emitted after its assistant
			continue
		}
		out = append(out, m)
		if m.Role != message.RoleAssistant {
			continue
		}
		for _, c := range m.ToolCalls {
			for _, idx := range results[c.ID] {
				if !placed[idx] {
					emit(idx)
				}
			}
		}
	}
	return out, moved
}

// =============================================================================
// CLEANUP
// =============================================================================

// MessageCleanup projects every message onto the wire fields: role, content,
// name, tool_calls, tool_call_id and reasoning.
type MessageCleanup struct{}

// NewMessageCleanup creates the cleanup stage.
func NewMessageCleanup() *MessageCleanup { return &MessageCleanup{} }

// Name implements pipeline.Stage.
func (p *MessageCleanup) Name() string { return NameMessageCleanup }

// Process implements pipeline.Stage.
func (p *MessageCleanup) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	for i, m := range pc.Messages {
		pc.Messages[i] = Clean(m)
	}
	pc.SetMeta("messagesCleaned", len(pc.Messages))
	return pc, nil
}

// Clean keeps only the wire fields of m.
func Clean(m message.Message) message.Message {
	return message.Message{
		Role:       m.Role,
		Content:    m.Content,
		Name:       m.Name,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Reasoning:  m.Reasoning,
	}
}
