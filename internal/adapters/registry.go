// Registry manages adapter registration and lookup.
//
// DESIGN: Thread-safe map of adapter name → Adapter, plus aliases so that
// provider names used by model catalogs ("azure", "vertexai", ...) land on the
// adapter that speaks their wire format.
package adapters

import (
	"sort"
	"strings"
	"sync"
)

// Registry manages adapter registration.
type Registry struct {
	adapters map[string]Adapter
	aliases  map[string]string
	mu       sync.RWMutex
}

// NewRegistry creates a new adapter registry with all built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{
		adapters: make(map[string]Adapter),
		aliases:  make(map[string]string),
	}

	// Register built-in adapters
	r.Register(NewOpenAIAdapter())
	r.Register(NewAnthropicAdapter())
	r.Register(NewGeminiAdapter())
	r.Register(NewOllamaAdapter())

	// Providers that speak an already-registered format
	for _, alias := range []string{"azure", "deepseek", "groq", "mistral", "moonshot", "minimax", "openrouter", "xai"} {
		r.Alias(alias, "openai")
	}
	r.Alias("google", "gemini")
	r.Alias("vertexai", "gemini")

	return r
}

// Register adds an adapter to the registry.
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(adapter.Name())] = adapter
}

// Alias makes name resolve to the adapter registered as target.
func (r *Registry) Alias(name, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[strings.ToLower(name)] = strings.ToLower(target)
}

// Get returns an adapter by name or alias, or nil.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(name)
	if a, ok := r.adapters[key]; ok {
		return a
	}
	if target, ok := r.aliases[key]; ok {
		return r.adapters[target]
	}
	return nil
}

// Names lists registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
