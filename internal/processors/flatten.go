package processors

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
)

// GroupMessageFlatten expands UI grouping messages into plain wire turns.
//
// An assistantGroup becomes one assistant message per child, each followed by
// a tool message for every tool that already has a result. An agentCouncil
// becomes its members in order; assistantGroup members are expanded the same
// way with the member's agentId carried to every child.
//
// A group with a nil children (or members) list is left as it is; an empty
// list expands to nothing.
type GroupMessageFlatten struct{}

// NewGroupMessageFlatten creates the flatten stage.
func NewGroupMessageFlatten() *GroupMessageFlatten { return &GroupMessageFlatten{} }

// Name implements pipeline.Stage.
func (p *GroupMessageFlatten) Name() string { return NameGroupMessageFlatten }

type flattenStats struct {
	groups, assistants, tools int
}

// Process implements pipeline.Stage.
func (p *GroupMessageFlatten) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	var group, council flattenStats
	out := make([]message.Message, 0, len(pc.Messages))

	for _, m := range pc.Messages {
		switch {
		case m.Role == message.RoleAssistantGroup && m.Children != nil:
			flat, st := flattenGroup(m, m.AgentID)
			out = append(out, flat...)
			group.groups++
			group.assistants += st.assistants
			group.tools += st.tools

		case m.Role == message.RoleAgentCouncil && m.Members != nil:
			flat, st := flattenCouncil(m)
			out = append(out, flat...)
			council.groups++
			council.assistants += st.assistants
			council.tools += st.tools

		default:
			out = append(out, m)
		}
	}
	pc.Messages = out

	pc.SetMeta("groupMessagesFlattened", group.groups)
	pc.SetMeta("assistantMessagesCreated", group.assistants)
	pc.SetMeta("toolMessagesCreated", group.tools)
	pc.SetMeta("agentCouncilMessagesFlattened", council.groups)
	pc.SetMeta("agentCouncilAssistantMessagesCreated", council.assistants)
	pc.SetMeta("agentCouncilToolMessagesCreated", council.tools)

	if group.groups+council.groups > 0 {
		log.Debug().
			Int("groups", group.groups).
			Int("councils", council.groups).
			Int("messages", len(out)).
			Msg("processors: grouped messages flattened")
	}
	return pc, nil
}

// flattenGroup expands one assistantGroup. agentID overrides the group's own
// agent for council members.
func flattenGroup(g message.Message, agentID string) ([]message.Message, flattenStats) {
	var st flattenStats
	out := make([]message.Message, 0, len(g.Children))

	for _, child := range g.Children {
		a := message.Message{
			ID:        child.ID,
			Role:      message.RoleAssistant,
			Content:   message.Text(child.Content),
			Reasoning: child.Reasoning,
			ImageList: child.ImageList,
			Error:     child.Error,
		}
		inheritGroup(&a, g, agentID)
		a.Tools = stripResults(child.Tools)
		out = append(out, a)
		st.assistants++

		results := toolResultMessages(child.Tools, g, agentID)
		out = append(out, results...)
		st.tools += len(results)
	}
	return out, st
}

// flattenCouncil expands one agentCouncil into its members.
func flattenCouncil(c message.Message) ([]message.Message, flattenStats) {
	var st flattenStats
	out := make([]message.Message, 0, len(c.Members))

	for _, member := range c.Members {
		switch member.Role {
		case message.RoleAssistantGroup:
			if member.Children == nil {
				out = append(out, member)
				continue
			}
			flat, gst := flattenGroup(member, member.AgentID)
			out = append(out, flat...)
			st.assistants += gst.assistants
			st.tools += gst.tools

		case message.RoleAssistant:
			a := member
			a.Tools = stripResults(member.Tools)
			out = append(out, a)
			st.assistants++

			results := toolResultMessages(member.Tools, member, member.AgentID)
			out = append(out, results...)
			st.tools += len(results)

		default:
			out = append(out, member)
		}
	}
	return out, st
}

// toolResultMessages builds a tool message for every payload carrying a result.
func toolResultMessages(tools []message.ToolPayload, parent message.Message, agentID string) []message.Message {
	var out []message.Message
	for _, tool := range tools {
		if tool.Result == nil {
			continue
		}
		plugin := tool.WithoutResult()
		t := message.Message{
			ID:          tool.Result.ID,
			Role:        message.RoleTool,
			Content:     message.Text(tool.Result.Content),
			ToolCallID:  tool.ID,
			Plugin:      &plugin,
			PluginState: tool.Result.State,
			PluginError: tool.Result.Error,
		}
		inheritGroup(&t, parent, agentID)
		out = append(out, t)
	}
	return out
}

func inheritGroup(m *message.Message, g message.Message, agentID string) {
	m.AgentID = agentID
	m.Model = g.Model
	m.Provider = g.Provider
	m.Meta = g.Meta
	m.CreatedAt = g.CreatedAt
	m.UpdatedAt = g.UpdatedAt
}

func stripResults(tools []message.ToolPayload) []message.ToolPayload {
	if len(tools) == 0 {
		return nil
	}
	out := make([]message.ToolPayload, len(tools))
	for i, t := range tools {
		out[i] = t.WithoutResult()
	}
	return out
}
