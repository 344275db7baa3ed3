package adapters

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/toolname"
)

// GeminiAdapter handles the Google Gemini generateContent format.
// Gemini uses a unique format with contents[]/parts[] and functionCall/functionResponse
// objects, distinct from both OpenAI and Anthropic formats.
//
// Key format differences:
//   - Roles: "user" and "model"; system text goes to systemInstruction
//   - Tool calls: parts[].functionCall with name/args (no call id)
//   - Tool responses: parts[].functionResponse with name/response (object, not string)
//   - Usage: usageMetadata.promptTokenCount/candidatesTokenCount/totalTokenCount
//   - Model: in URL path (/models/{model}:generateContent), not request body
type GeminiAdapter struct {
	BaseAdapter
}

// NewGeminiAdapter creates a new Gemini adapter.
func NewGeminiAdapter() *GeminiAdapter {
	return &GeminiAdapter{
		BaseAdapter: BaseAdapter{
			name:     "gemini",
			provider: ProviderGemini,
		},
	}
}

// =============================================================================
// REQUEST
// =============================================================================

// BuildRequest renders a generateContent body. Model and Stream are part of
// the URL and are not written.
func (a *GeminiAdapter) BuildRequest(req Request) ([]byte, error) {
	body := []byte(`{"contents":[]}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			body, err = sjson.SetBytes(body, path, v)
		}
	}

	// names for tool messages that arrive without one
	callNames := make(map[string]string)
	var system []string

	for _, m := range req.Messages {
		switch m.Role {
		case message.RoleSystem:
			if text := strings.TrimSpace(m.Content.String()); text != "" {
				system = append(system, text)
			}

		case message.RoleAssistant:
			parts := geminiTextParts(m.Content)
			for _, call := range m.ToolCalls {
				callNames[call.ID] = call.Function.Name
				args, derr := decodeArguments(call.Function.Arguments)
				if derr != nil {
					return nil, fmt.Errorf("tool call %s arguments: %w", call.ID, derr)
				}
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{"name": call.Function.Name, "args": args},
				})
			}
			if len(parts) > 0 {
				set("contents.-1", map[string]any{"role": "model", "parts": parts})
			}

		case message.RoleTool:
			name := m.Name
			if name == "" {
				name = callNames[m.ToolCallID]
			}
			set("contents.-1", map[string]any{
				"role": "user",
				"parts": []any{map[string]any{
					"functionResponse": map[string]any{
						"name":     name,
						"response": map[string]any{"content": m.Content.String()},
					},
				}},
			})

		default:
			parts := geminiTextParts(m.Content)
			if m.Content.IsParts() {
				for _, p := range m.Content.Parts {
					if p.Type == message.PartImageURL && p.ImageURL != nil {
						parts = append(parts, map[string]any{"fileData": map[string]any{"fileUri": p.ImageURL.URL}})
					}
				}
			}
			if len(parts) == 0 {
				parts = append(parts, map[string]any{"text": "."})
			}
			set("contents.-1", map[string]any{"role": "user", "parts": parts})
		}
	}

	if len(system) > 0 {
		set("systemInstruction.parts", []any{map[string]any{"text": strings.Join(system, "\n\n")}})
	}
	if len(req.Tools) > 0 {
		decls := make([]map[string]any, 0, len(req.Tools))
		for _, t := range req.Tools {
			d := map[string]any{"name": t.Function.Name, "description": t.Function.Description}
			if len(t.Function.Parameters) > 0 {
				d["parameters"] = t.Function.Parameters
			}
			decls = append(decls, d)
		}
		set("tools", []any{map[string]any{"functionDeclarations": decls}})
	}
	if req.MaxTokens > 0 {
		set("generationConfig.maxOutputTokens", req.MaxTokens)
	}
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	return body, nil
}

func geminiTextParts(c message.Content) []any {
	var parts []any
	if !c.IsParts() {
		if strings.TrimSpace(c.Text) != "" {
			parts = append(parts, map[string]any{"text": c.Text})
		}
		return parts
	}
	for _, p := range c.Parts {
		switch p.Type {
		case message.PartText:
			if strings.TrimSpace(p.Text) != "" {
				parts = append(parts, map[string]any{"text": p.Text})
			}
		case message.PartThinking:
			parts = append(parts, map[string]any{"text": p.Thinking, "thought": true})
		}
	}
	return parts
}

// =============================================================================
// RESPONSE
// =============================================================================

// ExtractToolCalls reads functionCall parts of the first candidate. Gemini
// does not assign call ids; they are numbered call_0, call_1, ...
func (a *GeminiAdapter) ExtractToolCalls(responseBody []byte) ([]toolname.ToolCall, error) {
	if !gjson.ValidBytes(responseBody) {
		return nil, fmt.Errorf("failed to parse response: invalid JSON")
	}

	var calls []toolname.ToolCall
	gjson.GetBytes(responseBody, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		fc := part.Get("functionCall")
		if !fc.Exists() {
			return true
		}
		args := fc.Get("args").Raw
		if args == "" {
			args = "{}"
		}
		id := fc.Get("id").String()
		if id == "" {
			id = fmt.Sprintf("call_%d", len(calls))
		}
		calls = append(calls, toolname.ToolCall{ID: id, Name: fc.Get("name").String(), Arguments: args})
		return true
	})
	return calls, nil
}

// ExtractUsage extracts token usage from Gemini API response.
// Gemini format: {"usageMetadata": {"promptTokenCount": N, "candidatesTokenCount": N, "totalTokenCount": N}}
func (a *GeminiAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	meta := gjson.GetBytes(responseBody, "usageMetadata")
	if !meta.Exists() {
		return UsageInfo{}
	}
	return UsageInfo{
		InputTokens:  int(meta.Get("promptTokenCount").Int()),
		OutputTokens: int(meta.Get("candidatesTokenCount").Int()),
		TotalTokens:  int(meta.Get("totalTokenCount").Int()),
	}
}

var _ Adapter = (*GeminiAdapter)(nil)
