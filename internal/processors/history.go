// Package processors holds the transforming stages of the message pipeline.
//
// DESIGN: A processor rewrites messages that are already in the list. It never
// adds system prompts or context blocks; that is the job of the injectors in
// the providers package. Every processor:
//   - works on pc.Messages in place (the engine hands it a private clone)
//   - records what it did under its own metadata keys, also when it did nothing
//   - reads model and provider from the pipeline context, never from globals
//
// ORDER (as assembled by the messages package):
//
//	HistoryTruncate → ... injectors ... → InputTemplate → PlaceholderVariables →
//	GroupMessageFlatten → MessageContent → ToolCall → ToolMessageReorder →
//	MessageCleanup
package processors

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/pipeline"
)

// Stage names.
const (
	NameHistoryTruncate      = "HistoryTruncateProcessor"
	NameInputTemplate        = "InputTemplateProcessor"
	NamePlaceholderVariables = "PlaceholderVariablesProcessor"
	NameGroupMessageFlatten  = "GroupMessageFlattenProcessor"
	NameMessageContent       = "MessageContentProcessor"
	NameToolCall             = "ToolCallProcessor"
	NameToolMessageReorder   = "ToolMessageReorder"
	NameMessageCleanup       = "MessageCleanupProcessor"
)

// HistoryTruncate keeps the most recent Count messages when Enabled.
type HistoryTruncate struct {
	Enabled bool
	Count   int
}

// NewHistoryTruncate creates the truncation stage.
func NewHistoryTruncate(enabled bool, count int) *HistoryTruncate {
	return &HistoryTruncate{Enabled: enabled, Count: count}
}

// Name implements pipeline.Stage.
func (p *HistoryTruncate) Name() string { return NameHistoryTruncate }

// Process implements pipeline.Stage.
func (p *HistoryTruncate) Process(_ context.Context, pc *pipeline.Context) (*pipeline.Context, error) {
	before := len(pc.Messages)
	pc.Messages = TruncateHistory(pc.Messages, p.Enabled, p.Count)
	removed := before - len(pc.Messages)

	pc.SetMeta("historyTruncated", removed)
	if removed > 0 {
		log.Debug().Int("removed", removed).Int("kept", len(pc.Messages)).Msg("processors: history truncated")
	}
	return pc, nil
}

// TruncateHistory returns the slice the model is allowed to see. Disabled
// truncation keeps everything; a non-positive count keeps nothing.
func TruncateHistory(msgs []message.Message, enabled bool, count int) []message.Message {
	if !enabled {
		return msgs
	}
	if count <= 0 {
		return []message.Message{}
	}
	if len(msgs) <= count {
		return msgs
	}
	return msgs[len(msgs)-count:]
}
