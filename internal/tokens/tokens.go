// Package tokens estimates prompt sizes for assembled message lists.
//
// DESIGN: Counts come from tiktoken encodings when one can be loaded for the
// model (falling back to cl100k_base). Loading may need the network the first
// time; when it fails the counter switches to a length heuristic of roughly
// four bytes per token and logs once. Estimates are advisory only.
package tokens

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/message"
)

const (
	fallbackEncoding = "cl100k_base"

	// Per-message framing cost of chat-completion payloads.
	perMessageTokens = 3
	perNameTokens    = 1
	replyPrimeTokens = 3
)

// Counter caches encodings per model. Safe for concurrent use.
type Counter struct {
	mu        sync.Mutex
	encoders  map[string]*tiktoken.Tiktoken
	heuristic bool
	warned    bool
}

// Option configures a Counter.
type Option func(*Counter)

// WithHeuristicOnly skips tiktoken entirely.
func WithHeuristicOnly() Option {
	return func(c *Counter) { c.heuristic = true }
}

// NewCounter creates a counter.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{encoders: make(map[string]*tiktoken.Tiktoken)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Heuristic estimates tokens as one per four bytes, rounded up.
func Heuristic(text string) int {
	return (len(text) + 3) / 4
}

// Count returns the token count of text for model.
func (c *Counter) Count(model, text string) int {
	if text == "" {
		return 0
	}
	enc := c.encoder(model)
	if enc == nil {
		return Heuristic(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// CountMessages estimates the prompt size of msgs, including framing.
func (c *Counter) CountMessages(model string, msgs []message.Message) int {
	if len(msgs) == 0 {
		return 0
	}
	total := replyPrimeTokens
	for _, m := range msgs {
		total += perMessageTokens
		total += c.Count(model, m.Role)
		total += c.Count(model, m.Content.String())
		if m.Name != "" {
			total += perNameTokens + c.Count(model, m.Name)
		}
		for _, call := range m.ToolCalls {
			total += c.Count(model, call.Function.Name) + c.Count(model, call.Function.Arguments)
		}
		if m.Reasoning != nil {
			total += c.Count(model, m.Reasoning.Content)
		}
	}
	return total
}

func (c *Counter) encoder(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.heuristic {
		return nil
	}
	if enc, ok := c.encoders[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		if !c.warned {
			log.Warn().Err(err).Str("model", model).Msg("tokens: encoding unavailable, using length heuristic")
			c.warned = true
		}
		c.heuristic = true
		return nil
	}
	c.encoders[model] = enc
	return enc
}
