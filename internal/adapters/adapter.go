// Package adapters renders pipeline output into provider request bodies and
// reads tool calls back out of provider responses.
//
// DESIGN: The pipeline produces one provider-neutral message list. Each
// provider expects a different wire shape, so an Adapter owns exactly two
// directions:
//
//   - BuildRequest:     messages + tools → request body
//   - ExtractToolCalls: response body → wire tool calls (for toolname.Resolve)
//
// FLOW:
//  1. Caller runs messages.Engine and toolengine.Engine
//  2. Caller looks up an adapter in the Registry by provider name
//  3. BuildRequest produces the body the caller sends (sending is not done here)
//  4. ExtractToolCalls turns the reply into calls the codec can decode
//
// To add a new provider: implement Adapter and register it in NewRegistry.
package adapters

import (
	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/toolengine"
	"github.com/compresr/context-engine/internal/toolname"
)

// Provider names a wire format family.
type Provider string

// Known providers.
const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
)

// Request is the provider-neutral input of BuildRequest.
type Request struct {
	Model     string
	MaxTokens int
	Messages  []message.Message
	Tools     []toolengine.Tool
	Stream    bool
}

// UsageInfo is the token usage reported by a provider.
type UsageInfo struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Adapter converts between pipeline output and one provider's wire format.
// Adapters are stateless and safe for concurrent use.
type Adapter interface {
	// Name returns the adapter identifier (e.g., "openai", "anthropic").
	Name() string

	// Provider returns the wire format family.
	Provider() Provider

	// BuildRequest renders a request body.
	BuildRequest(req Request) ([]byte, error)

	// ExtractToolCalls returns the tool calls of a (non-streaming) response.
	ExtractToolCalls(responseBody []byte) ([]toolname.ToolCall, error)

	// ExtractUsage returns the token usage of a response. Unknown shapes
	// yield a zero value.
	ExtractUsage(responseBody []byte) UsageInfo
}

// BaseAdapter provides common functionality for all adapters.
type BaseAdapter struct {
	name     string
	provider Provider
}

// Name returns the adapter name.
func (a *BaseAdapter) Name() string {
	return a.name
}

// Provider returns the provider type.
func (a *BaseAdapter) Provider() Provider {
	return a.provider
}

// defaultMaxTokens is used when a request does not set MaxTokens and the
// provider requires one.
const defaultMaxTokens = 4096
