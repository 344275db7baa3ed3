package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/toolengine"
	"github.com/compresr/context-engine/internal/toolname"
)

// AnthropicAdapter handles the Anthropic Messages format.
// System messages move to the top-level system field, tool results become
// tool_result blocks inside user turns, and signed thinking parts are
// replayed as thinking blocks.
type AnthropicAdapter struct {
	BaseAdapter
}

// NewAnthropicAdapter creates a new Anthropic adapter.
func NewAnthropicAdapter() *AnthropicAdapter {
	return &AnthropicAdapter{
		BaseAdapter: BaseAdapter{
			name:     "anthropic",
			provider: ProviderAnthropic,
		},
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// BuildRequest renders a Messages API body. Stream is ignored: streaming is
// selected by the endpoint, not the body.
func (a *AnthropicAdapter) BuildRequest(req Request) ([]byte, error) {
	params, err := a.buildParams(req)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode anthropic params: %w", err)
	}
	return body, nil
}

func (a *AnthropicAdapter) buildParams(req Request) (anthropicsdk.MessageNewParams, error) {
	system, msgs, err := convertAnthropicMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages:  msgs,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		tools, err := convertAnthropicTools(req.Tools)
		if err != nil {
			return anthropicsdk.MessageNewParams{}, err
		}
		params.Tools = tools
	}
	return params, nil
}

func convertAnthropicMessages(msgs []message.Message) ([]anthropicsdk.TextBlockParam, []anthropicsdk.MessageParam, error) {
	var system []anthropicsdk.TextBlockParam
	out := make([]anthropicsdk.MessageParam, 0, len(msgs))
	prevTool := false

	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			if text := strings.TrimSpace(m.Content.String()); text != "" {
				system = append(system, anthropicsdk.TextBlockParam{Text: text})
			}
			prevTool = false
			continue

		case message.RoleAssistant:
			blocks, err := assistantBlocks(m)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, anthropicsdk.NewAssistantMessage(blocks...))
			prevTool = false

		case message.RoleTool:
			block := anthropicsdk.NewToolResultBlock(m.ToolCallID, m.Content.String(), false)
			if prevTool {
				last := &out[len(out)-1]
				last.Content = append(last.Content, block)
			} else {
				out = append(out, anthropicsdk.NewUserMessage(block))
			}
			prevTool = true

		default:
			out = append(out, anthropicsdk.NewUserMessage(userBlocks(m.Content)...))
			prevTool = false
		}
	}

	if len(out) == 0 {
		out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(".")))
	}
	return system, out, nil
}

func userBlocks(c message.Content) []anthropicsdk.ContentBlockParamUnion {
	if !c.IsParts() {
		return []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(nonEmpty(c.Text))}
	}
	blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p.Type {
		case message.PartText:
			if strings.TrimSpace(p.Text) != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(p.Text))
			}
		case message.PartImageURL:
			if p.ImageURL != nil {
				blocks = append(blocks, imageBlock(p.ImageURL.URL))
			}
		}
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropicsdk.NewTextBlock("."))
	}
	return blocks
}

func assistantBlocks(m message.Message) ([]anthropicsdk.ContentBlockParamUnion, error) {
	blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, 1+len(m.ToolCalls))
	if m.Content.IsParts() {
		for _, p := range m.Content.Parts {
			switch p.Type {
			case message.PartThinking:
				blocks = append(blocks, anthropicsdk.NewThinkingBlock(p.Signature, p.Thinking))
			case message.PartText:
				if strings.TrimSpace(p.Text) != "" {
					blocks = append(blocks, anthropicsdk.NewTextBlock(p.Text))
				}
			case message.PartImageURL:
				if p.ImageURL != nil {
					blocks = append(blocks, imageBlock(p.ImageURL.URL))
				}
			}
		}
	} else if strings.TrimSpace(m.Content.Text) != "" {
		blocks = append(blocks, anthropicsdk.NewTextBlock(m.Content.Text))
	}

	for _, call := range m.ToolCalls {
		if call.ID == "" || call.Function.Name == "" {
			continue
		}
		input, err := decodeArguments(call.Function.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool call %s arguments: %w", call.ID, err)
		}
		blocks = append(blocks, anthropicsdk.NewToolUseBlock(call.ID, input, call.Function.Name))
	}

	if len(blocks) == 0 {
		blocks = append(blocks, anthropicsdk.NewTextBlock("."))
	}
	return blocks, nil
}

// imageBlock accepts http(s) URLs and base64 data URLs.
func imageBlock(url string) anthropicsdk.ContentBlockParamUnion {
	if rest, ok := strings.CutPrefix(url, "data:"); ok {
		if meta, data, found := strings.Cut(rest, ","); found {
			mediaType := strings.TrimSuffix(meta, ";base64")
			return anthropicsdk.NewImageBlockBase64(mediaType, data)
		}
	}
	return anthropicsdk.NewImageBlock(anthropicsdk.URLImageSourceParam{URL: url})
}

func decodeArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func convertAnthropicTools(tools []toolengine.Tool) ([]anthropicsdk.ToolUnionParam, error) {
	out := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, def := range tools {
		name := strings.TrimSpace(def.Function.Name)
		if name == "" {
			continue
		}
		schema, err := encodeSchema(def.Function.Parameters)
		if err != nil {
			return nil, fmt.Errorf("tool %s schema: %w", name, err)
		}

		tool := anthropicsdk.ToolParam{
			Name:        name,
			InputSchema: schema,
		}
		if strings.TrimSpace(def.Function.Description) != "" {
			tool.Description = anthropicsdk.String(def.Function.Description)
		}
		out = append(out, anthropicsdk.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

func encodeSchema(raw map[string]any) (anthropicsdk.ToolInputSchemaParam, error) {
	if len(raw) == 0 {
		return anthropicsdk.ToolInputSchemaParam{}, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	var schema anthropicsdk.ToolInputSchemaParam
	if err := json.Unmarshal(data, &schema); err != nil {
		return anthropicsdk.ToolInputSchemaParam{}, err
	}
	return schema, nil
}

func nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return "."
	}
	return s
}

// =============================================================================
// RESPONSE
// =============================================================================

// ExtractToolCalls returns the tool_use blocks of a Messages response.
func (a *AnthropicAdapter) ExtractToolCalls(responseBody []byte) ([]toolname.ToolCall, error) {
	var msg anthropicsdk.Message
	if err := json.Unmarshal(responseBody, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var calls []toolname.ToolCall
	for _, block := range msg.Content {
		if block.Type != "tool_use" {
			continue
		}
		args := string(block.Input)
		if args == "" {
			args = "{}"
		}
		calls = append(calls, toolname.ToolCall{ID: block.ID, Name: block.Name, Arguments: args})
	}
	return calls, nil
}

// ExtractUsage extracts token usage from an Anthropic response.
// Anthropic format: {"usage": {"input_tokens": N, "output_tokens": N}}
func (a *AnthropicAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	var msg anthropicsdk.Message
	if err := json.Unmarshal(responseBody, &msg); err != nil {
		return UsageInfo{}
	}
	in := int(msg.Usage.InputTokens + msg.Usage.CacheReadInputTokens + msg.Usage.CacheCreationInputTokens)
	out := int(msg.Usage.OutputTokens)
	return UsageInfo{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}

var _ Adapter = (*AnthropicAdapter)(nil)
