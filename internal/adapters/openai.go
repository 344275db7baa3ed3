package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/context-engine/internal/toolname"
)

// OpenAIAdapter handles the OpenAI wire format.
// Requests use Chat Completions; responses are read from either
// Chat Completions (choices[].message.tool_calls) or the Responses API
// (output[] items with type "function_call").
type OpenAIAdapter struct {
	BaseAdapter
}

// NewOpenAIAdapter creates a new OpenAI adapter.
func NewOpenAIAdapter() *OpenAIAdapter {
	return &OpenAIAdapter{
		BaseAdapter: BaseAdapter{
			name:     "openai",
			provider: ProviderOpenAI,
		},
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// BuildRequest renders a Chat Completions body. Message content is written
// as-is: the pipeline already produced the chat-completions shape.
func (a *OpenAIAdapter) BuildRequest(req Request) ([]byte, error) {
	body := []byte(`{}`)
	var err error

	if body, err = sjson.SetBytes(body, "model", req.Model); err != nil {
		return nil, fmt.Errorf("set model: %w", err)
	}

	msgs, err := json.Marshal(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("encode messages: %w", err)
	}
	if body, err = sjson.SetRawBytes(body, "messages", msgs); err != nil {
		return nil, fmt.Errorf("set messages: %w", err)
	}

	if len(req.Tools) > 0 {
		tools, err := json.Marshal(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("encode tools: %w", err)
		}
		if body, err = sjson.SetRawBytes(body, "tools", tools); err != nil {
			return nil, fmt.Errorf("set tools: %w", err)
		}
	}
	if req.MaxTokens > 0 {
		if body, err = sjson.SetBytes(body, "max_tokens", req.MaxTokens); err != nil {
			return nil, fmt.Errorf("set max_tokens: %w", err)
		}
	}
	if req.Stream {
		if body, err = sjson.SetBytes(body, "stream", true); err != nil {
			return nil, fmt.Errorf("set stream: %w", err)
		}
	}
	return body, nil
}

// =============================================================================
// RESPONSE
// =============================================================================

// ExtractToolCalls reads tool calls from a Chat Completions or Responses API
// response.
func (a *OpenAIAdapter) ExtractToolCalls(responseBody []byte) ([]toolname.ToolCall, error) {
	if !gjson.ValidBytes(responseBody) {
		return nil, fmt.Errorf("failed to parse response: invalid JSON")
	}
	root := gjson.ParseBytes(responseBody)

	var calls []toolname.ToolCall

	// Chat Completions
	root.Get("choices.0.message.tool_calls").ForEach(func(_, tc gjson.Result) bool {
		calls = append(calls, toolname.ToolCall{
			ID:        tc.Get("id").String(),
			Name:      tc.Get("function.name").String(),
			Arguments: tc.Get("function.arguments").String(),
		})
		return true
	})

	// Responses API
	root.Get("output").ForEach(func(_, item gjson.Result) bool {
		if item.Get("type").String() != "function_call" {
			return true
		}
		calls = append(calls, toolname.ToolCall{
			ID:        item.Get("call_id").String(),
			Name:      item.Get("name").String(),
			Arguments: item.Get("arguments").String(),
		})
		return true
	})

	return calls, nil
}

// ExtractUsage extracts token usage from an OpenAI response.
// OpenAI format: {"usage": {"prompt_tokens": N, "completion_tokens": N, "total_tokens": N}}
// Responses API: {"usage": {"input_tokens": N, "output_tokens": N, "total_tokens": N}}
func (a *OpenAIAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	usage := gjson.GetBytes(responseBody, "usage")
	if !usage.Exists() {
		return UsageInfo{}
	}
	in := usage.Get("prompt_tokens").Int()
	if in == 0 {
		in = usage.Get("input_tokens").Int()
	}
	out := usage.Get("completion_tokens").Int()
	if out == 0 {
		out = usage.Get("output_tokens").Int()
	}
	total := usage.Get("total_tokens").Int()
	if total == 0 {
		total = in + out
	}
	return UsageInfo{InputTokens: int(in), OutputTokens: int(out), TotalTokens: int(total)}
}

var _ Adapter = (*OpenAIAdapter)(nil)
