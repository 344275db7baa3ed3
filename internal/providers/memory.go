package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/compresr/context-engine/internal/pipeline"
)

// Memory is one fact remembered about the user.
type Memory struct {
	ID       string `json:"id" yaml:"id"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Content  string `json:"content" yaml:"content"`
}

// UserMemory is the memory set fetched for the current user.
type UserMemory struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	Memories  []Memory `json:"memories,omitempty" yaml:"memories,omitempty"`
	FetchedAt int64    `json:"fetchedAt,omitempty" yaml:"fetched_at,omitempty"` // unix ms
}

// Active reports whether memories should be injected.
func (m *UserMemory) Active() bool {
	return m != nil && m.Enabled && len(m.Memories) > 0
}

// UserMemoryInjector places user memories before the first user message.
type UserMemoryInjector struct {
	Memory *UserMemory
}

// Name implements pipeline.Stage.
func (p *UserMemoryInjector) Name() string { return NameUserMemory }

// Process implements pipeline.Stage.
func (p *UserMemoryInjector) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	if !p.Memory.Active() {
		return pc, nil
	}
	msgs, ok := pipeline.InjectBeforeFirstUser(pc.Messages, RenderUserMemory(*p.Memory))
	if !ok {
		return pc, nil
	}
	pc.Messages = msgs
	pc.SetMeta("userMemoryInjected", true)
	pc.SetMeta("userMemoriesCount", len(p.Memory.Memories))
	return pc, nil
}

// RenderUserMemory formats memories as a <user_memory> block.
func RenderUserMemory(m UserMemory) string {
	var b strings.Builder
	b.WriteString("<user_memory")
	if m.FetchedAt > 0 {
		fmt.Fprintf(&b, " fetchedAt=\"%s\"", time.UnixMilli(m.FetchedAt).UTC().Format(time.RFC3339))
	}
	b.WriteString(">\n")
	b.WriteString("<instruction>Facts remembered from earlier conversations with this user. Use them to personalize answers; do not repeat them unprompted.</instruction>\n")

	for _, mem := range m.Memories {
		b.WriteString("<memory")
		if mem.ID != "" {
			fmt.Fprintf(&b, " id=\"%s\"", attr(mem.ID))
		}
		if mem.Category != "" {
			fmt.Fprintf(&b, " category=\"%s\"", attr(mem.Category))
		}
		if mem.Title != "" {
			fmt.Fprintf(&b, " title=\"%s\"", attr(mem.Title))
		}
		fmt.Fprintf(&b, ">%s</memory>\n", mem.Content)
	}
	b.WriteString("</user_memory>")
	return b.String()
}
