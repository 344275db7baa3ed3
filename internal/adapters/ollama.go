package adapters

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/compresr/context-engine/internal/toolname"
)

// OllamaAdapter handles Ollama /api/chat requests.
// Ollama accepts the OpenAI Chat Completions request shape (messages[],
// tool_calls[], role: tool), so this adapter embeds OpenAIAdapter for
// BuildRequest. Responses differ: the reply sits in message (not choices) and
// function arguments are JSON objects rather than strings.
type OllamaAdapter struct {
	BaseAdapter
	*OpenAIAdapter
}

// NewOllamaAdapter creates a new Ollama adapter.
func NewOllamaAdapter() *OllamaAdapter {
	return &OllamaAdapter{
		BaseAdapter: BaseAdapter{
			name:     "ollama",
			provider: ProviderOllama,
		},
		OpenAIAdapter: NewOpenAIAdapter(),
	}
}

// Name returns the adapter name (overrides embedded OpenAIAdapter.Name).
func (a *OllamaAdapter) Name() string {
	return a.BaseAdapter.Name()
}

// Provider returns the provider type (overrides embedded OpenAIAdapter.Provider).
func (a *OllamaAdapter) Provider() Provider {
	return a.BaseAdapter.Provider()
}

// BuildRequest renders the OpenAI shape with an explicit stream flag, since
// Ollama streams unless told otherwise.
func (a *OllamaAdapter) BuildRequest(req Request) ([]byte, error) {
	body, err := a.OpenAIAdapter.BuildRequest(req)
	if err != nil {
		return nil, err
	}
	return sjson.SetBytes(body, "stream", req.Stream)
}

// ExtractToolCalls reads message.tool_calls from a native Ollama response and
// falls back to the OpenAI shape served by Ollama's /v1 endpoint.
func (a *OllamaAdapter) ExtractToolCalls(responseBody []byte) ([]toolname.ToolCall, error) {
	if !gjson.ValidBytes(responseBody) {
		return nil, fmt.Errorf("failed to parse response: invalid JSON")
	}
	native := gjson.GetBytes(responseBody, "message.tool_calls")
	if !native.Exists() {
		return a.OpenAIAdapter.ExtractToolCalls(responseBody)
	}

	var calls []toolname.ToolCall
	native.ForEach(func(key, tc gjson.Result) bool {
		id := tc.Get("id").String()
		if id == "" {
			id = fmt.Sprintf("call_%d", key.Int())
		}
		args := tc.Get("function.arguments")
		raw := args.Raw
		if args.Type == gjson.String {
			raw = args.String()
		}
		calls = append(calls, toolname.ToolCall{
			ID:        id,
			Name:      tc.Get("function.name").String(),
			Arguments: raw,
		})
		return true
	})
	return calls, nil
}

// ExtractUsage extracts token usage from Ollama API response.
// Ollama format: {"prompt_eval_count": N, "eval_count": N}
// Also supports OpenAI format as fallback (some Ollama versions return it).
func (a *OllamaAdapter) ExtractUsage(responseBody []byte) UsageInfo {
	prompt := gjson.GetBytes(responseBody, "prompt_eval_count").Int()
	eval := gjson.GetBytes(responseBody, "eval_count").Int()
	if prompt > 0 || eval > 0 {
		return UsageInfo{
			InputTokens:  int(prompt),
			OutputTokens: int(eval),
			TotalTokens:  int(prompt + eval),
		}
	}

	// Fallback to OpenAI format (some Ollama versions return it)
	return a.OpenAIAdapter.ExtractUsage(responseBody)
}

// Ensure OllamaAdapter implements Adapter
var _ Adapter = (*OllamaAdapter)(nil)
