package pipeline

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/compresr/context-engine/internal/message"
)

// =============================================================================
// SYSTEM MESSAGE
// =============================================================================

// AppendSystem appends text to the first system message, or inserts a new
// system message at the front when there is none.
func AppendSystem(msgs []message.Message, text string) []message.Message {
	for i := range msgs {
		if msgs[i].Role == message.RoleSystem {
			msgs[i].Content = msgs[i].Content.AppendText(text, "\n\n")
			return msgs
		}
	}
	return PrependSystem(msgs, text)
}

// PrependSystem inserts a new system message at index 0.
func PrependSystem(msgs []message.Message, text string) []message.Message {
	sys := message.Message{Role: message.RoleSystem, Content: message.Text(text)}
	return append([]message.Message{sys}, msgs...)
}

// =============================================================================
// FIRST USER INJECTION
// =============================================================================

// SystemInjectionPrefix starts the id of every injected user message.
const SystemInjectionPrefix = "system-injection-"

// InjectBeforeFirstUser places text in the consolidated system-injection
// user message. When that message does not exist yet it is created right
// before the first user message. Without any user message nothing changes.
func InjectBeforeFirstUser(msgs []message.Message, text string) ([]message.Message, bool) {
	if text == "" {
		return msgs, false
	}
	if idx := FindSystemInjection(msgs); idx >= 0 {
		msgs[idx].Content = msgs[idx].Content.AppendText(text, "\n\n")
		return msgs, true
	}
	first := FindFirstUser(msgs)
	if first < 0 {
		return msgs, false
	}

	injected := NewSystemInjection(text)
	out := make([]message.Message, 0, len(msgs)+1)
	out = append(out, msgs[:first]...)
	out = append(out, injected)
	out = append(out, msgs[first:]...)
	return out, true
}

// NewSystemInjection builds a user message flagged as injected.
func NewSystemInjection(text string) message.Message {
	now := time.Now().UnixMilli()
	return message.Message{
		ID:        SystemInjectionPrefix + uuid.NewString(),
		Role:      message.RoleUser,
		Content:   message.Text(text),
		Meta:      map[string]any{"systemInjection": true},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// FindFirstUser returns the index of the first user message or -1.
func FindFirstUser(msgs []message.Message) int {
	for i := range msgs {
		if msgs[i].Role == message.RoleUser {
			return i
		}
	}
	return -1
}

// FindSystemInjection returns the index of the injected user message or -1.
func FindSystemInjection(msgs []message.Message) int {
	for i := range msgs {
		if msgs[i].Role == message.RoleUser && msgs[i].IsSystemInjection() {
			return i
		}
	}
	return -1
}

// =============================================================================
// LAST USER CONTEXT
// =============================================================================

const (
	systemContextStart = "<!-- SYSTEM CONTEXT (NOT PART OF USER QUERY) -->"
	systemContextEnd   = "<!-- END SYSTEM CONTEXT -->"

	contextInstruction = "<context.instruction>following part contains context information injected by the system. Please follow these instructions:\n\n" +
		"1. Always prioritize handling user-visible content.\n" +
		"2. the context is only required when user's queries rely on it.\n" +
		"</context.instruction>"
)

// FindLastUser returns the index of the last user message or -1.
func FindLastUser(msgs []message.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleUser {
			return i
		}
	}
	return -1
}

// ContextBlock renders content inside <contextType> tags.
func ContextBlock(content, contextType string) string {
	return "<" + contextType + ">\n" + content + "\n</" + contextType + ">"
}

// WrapSystemContext renders a full system-context wrapper around one block.
func WrapSystemContext(content, contextType string) string {
	return systemContextStart + "\n" +
		contextInstruction + "\n" +
		ContextBlock(content, contextType) + "\n" +
		systemContextEnd
}

// HasSystemContext reports whether the last user message already carries a
// system-context wrapper.
func HasSystemContext(msgs []message.Message) bool {
	idx := FindLastUser(msgs)
	if idx < 0 {
		return false
	}
	return strings.Contains(msgs[idx].Content.String(), systemContextStart)
}

// AppendLastUserContext adds a context block to the last user message. The
// first block creates the wrapper; later blocks are placed inside it, just
// before the end marker. Without any user message nothing changes.
func AppendLastUserContext(msgs []message.Message, content, contextType string) ([]message.Message, bool) {
	idx := FindLastUser(msgs)
	if idx < 0 {
		return msgs, false
	}

	if !HasSystemContext(msgs) {
		msgs[idx].Content = msgs[idx].Content.AppendText(WrapSystemContext(content, contextType), "\n\n")
		return msgs, true
	}

	block := ContextBlock(content, contextType)
	insert := func(s string) string {
		at := strings.LastIndex(s, systemContextEnd)
		if at < 0 {
			return s + "\n" + block
		}
		return s[:at] + block + "\n" + s[at:]
	}
	msgs[idx].Content = mapWrapperText(msgs[idx].Content, insert)
	return msgs, true
}

// mapWrapperText rewrites the text that holds the wrapper: the plain text,
// or the last text part containing the start marker.
func mapWrapperText(c message.Content, fn func(string) string) message.Content {
	if !c.IsParts() {
		return message.Text(fn(c.Text))
	}
	out := c.Clone()
	for i := len(out.Parts) - 1; i >= 0; i-- {
		if out.Parts[i].Type == message.PartText && strings.Contains(out.Parts[i].Text, systemContextStart) {
			out.Parts[i].Text = fn(out.Parts[i].Text)
			break
		}
	}
	return out
}
