package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/toolname"
)

func toolConversation() []message.Message {
	plugin := message.ToolPayload{ID: "call_1", Identifier: "weather", APIName: "getWeather", Arguments: `{"city":"Paris"}`}
	return []message.Message{
		user("What's the weather?"),
		{
			ID:      "a-1",
			Role:    message.RoleAssistant,
			Content: message.Text(""),
			Tools: []message.ToolPayload{
				plugin,
				{ID: "call_2", Identifier: "lobe-web", APIName: "search", Arguments: "{}", Type: toolname.TypeBuiltin},
			},
		},
		{
			ID:         "t-1",
			Role:       message.RoleTool,
			Content:    message.Text("Sunny, 22C"),
			ToolCallID: "call_1",
			Plugin:     &plugin,
		},
	}
}

func TestToolCall_ConvertsWithCodecNames(t *testing.T) {
	pc := run(t, NewToolCall(nil, nil), newContext(toolConversation()...))

	a := pc.Messages[1]
	assert.Nil(t, a.Tools)
	require.Len(t, a.ToolCalls, 2)
	assert.Equal(t, message.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: message.ToolCallFunction{
			Name:      "weather____getWeather",
			Arguments: `{"city":"Paris"}`,
		},
	}, a.ToolCalls[0])
	assert.Equal(t, "lobe-web____search____builtin", a.ToolCalls[1].Function.Name)

	tool := pc.Messages[2]
	assert.Equal(t, message.RoleTool, tool.Role)
	assert.Equal(t, "weather____getWeather", tool.Name)
	assert.Equal(t, "call_1", tool.ToolCallID)

	assert.Equal(t, 2, pc.Metadata["toolCallProcessed"])
	assert.Equal(t, 1, pc.Metadata["toolCallsConverted"])
	assert.Equal(t, 1, pc.Metadata["toolMessagesConverted"])
	assert.Equal(t, true, pc.Metadata["supportTools"])
}

func TestToolCall_CustomNameGenerator(t *testing.T) {
	gen := func(identifier, apiName, _ string) string { return identifier + "." + apiName }
	pc := run(t, NewToolCall(gen, allow), newContext(toolConversation()...))

	assert.Equal(t, "weather.getWeather", pc.Messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "weather.getWeather", pc.Messages[2].Name)
}

func TestToolCall_FunctionCallingUnsupported(t *testing.T) {
	var seen [2]string
	fc := func(model, provider string) bool {
		seen = [2]string{model, provider}
		return false
	}
	msgs := toolConversation()
	msgs = append(msgs, message.Message{Role: message.RoleAssistant, Content: message.Text("x"), ToolCalls: []message.ToolCall{}})

	pc := run(t, NewToolCall(nil, fc), newContext(msgs...))
	assert.Equal(t, [2]string{"gpt-4", "openai"}, seen)

	a := pc.Messages[1]
	assert.Equal(t, message.RoleAssistant, a.Role)
	assert.Nil(t, a.Tools)
	assert.Nil(t, a.ToolCalls)
	assert.Nil(t, pc.Messages[3].ToolCalls)

	tool := pc.Messages[2]
	assert.Equal(t, message.RoleUser, tool.Role)
	assert.Equal(t, "Sunny, 22C", tool.Content.Text)
	assert.Empty(t, tool.Name)
	assert.Nil(t, tool.Plugin)
	assert.Empty(t, tool.ToolCallID)

	assert.Equal(t, false, pc.Metadata["supportTools"])
	assert.Equal(t, 0, pc.Metadata["toolCallsConverted"])
}

func TestToolCall_NothingToDo(t *testing.T) {
	pc := run(t, NewToolCall(nil, nil), newContext(user("hi"), assistant("hello")))

	assert.Nil(t, pc.Messages[1].ToolCalls)
	assert.Equal(t, 0, pc.Metadata["toolCallProcessed"])
	assert.Equal(t, 0, pc.Metadata["toolCallsConverted"])
	assert.Equal(t, 0, pc.Metadata["toolMessagesConverted"])
}

func TestToolCall_ToolMessageWithoutPlugin(t *testing.T) {
	orphan := message.Message{Role: message.RoleTool, Content: message.Text("r"), ToolCallID: "c"}
	pc := run(t, NewToolCall(nil, nil), newContext(orphan))
	assert.Empty(t, pc.Messages[0].Name)
	assert.Equal(t, message.RoleTool, pc.Messages[0].Role)
}

func TestToolCall_DecodesBack(t *testing.T) {
	pc := run(t, NewToolCall(nil, nil), newContext(toolConversation()...))

	catalog := toolname.MapCatalog{"weather": {"getWeather"}, "lobe-web": {"search"}}
	var calls []toolname.ToolCall
	for _, c := range pc.Messages[1].ToolCalls {
		calls = append(calls, toolname.ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: c.Function.Arguments})
	}
	resolved := toolname.Resolve(calls, catalog)
	require.Len(t, resolved, 2)
	assert.Equal(t, "weather", resolved[0].Identifier)
	assert.Equal(t, "getWeather", resolved[0].APIName)
	assert.Equal(t, toolname.TypeBuiltin, resolved[1].Type)
}

// =============================================================================
// REORDER AND CLEANUP
// =============================================================================

func callMsg(ids ...string) message.Message {
	m := assistant("")
	for _, id := range ids {
		m.ToolCalls = append(m.ToolCalls, message.ToolCall{ID: id, Type: "function"})
	}
	return m
}

func toolMsg(callID, text string) message.Message {
	return message.Message{Role: message.RoleTool, ToolCallID: callID, Content: message.Text(text)}
}

func TestToolMessageReorder(t *testing.T) {
	msgs := []message.Message{
		user("q"),
		toolMsg("b", "result b"),
		callMsg("a", "b"),
		user("interrupt"),
		toolMsg("a", "result a"),
		toolMsg("zzz", "orphan"),
	}

	pc := run(t, NewToolMessageReorder(), newContext(msgs...))

	var got []string
	for _, m := range pc.Messages {
		got = append(got, m.Role+":"+m.ToolCallID+":"+m.Content.Text)
	}
	assert.Equal(t, []string{
		"user::q",
		"assistant::",
		"tool:a:result a",
		"tool:b:result b",
		"user::interrupt",
		"tool:zzz:orphan",
	}, got)
	assert.Equal(t, 2, pc.Metadata["toolMessagesReordered"])
}

func TestToolMessageReorder_AlreadyOrdered(t *testing.T) {
	msgs := []message.Message{user("q"), callMsg("a"), toolMsg("a", "r"), assistant("done")}
	out, moved := ReorderToolMessages(msgs)
	assert.Equal(t, msgs, out)
	assert.Zero(t, moved)
}

func TestMessageCleanup(t *testing.T) {
	m := message.Message{
		ID:         "msg-1",
		Role:       message.RoleAssistant,
		Content:    message.Text("hi"),
		Name:       "n",
		ToolCalls:  []message.ToolCall{{ID: "c"}},
		ToolCallID: "x",
		Reasoning:  &message.Reasoning{Content: "r"},
		ImageList:  []message.ImageItem{{URL: "i"}},
		Meta:       map[string]any{"k": 1},
		CreatedAt:  1,
		UpdatedAt:  2,
		AgentID:    "agent",
	}

	pc := run(t, NewMessageCleanup(), newContext(m))
	assert.Equal(t, message.Message{
		Role:       message.RoleAssistant,
		Content:    message.Text("hi"),
		Name:       "n",
		ToolCalls:  []message.ToolCall{{ID: "c"}},
		ToolCallID: "x",
		Reasoning:  &message.Reasoning{Content: "r"},
	}, pc.Messages[0])
	assert.Equal(t, 1, pc.Metadata["messagesCleaned"])
}
