// Package pipeline defines the Stage interface and runs ordered stage lists.
//
// DESIGN: A Stage transforms a shared Context. Stages run strictly one after
// another; none of them may assume it runs concurrently with another. The
// engine owns three cross-cutting rules:
//   - metadata is append-only: a key a stage drops is restored
//   - a stage may abort the run; remaining stages are skipped, no error
//   - a stage error stops the run and is returned as *StageError
//
// FLOW (Engine.Process):
//  1. Build a fresh Context from Input (messages cloned, metadata seeded)
//  2. For each stage: open a span, call Process, restore metadata, record time
//  3. Stop early on abort or error
//  4. Return messages, metadata and Stats
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/compresr/context-engine/internal/message"
)

// InitialState is the immutable snapshot a run started from.
type InitialState struct {
	Messages []message.Message `json:"messages"`
	Model    string            `json:"model,omitempty"`
	Provider string            `json:"provider,omitempty"`
}

// Context carries data through stage processing.
type Context struct {
	InitialState InitialState
	Messages     []message.Message
	Metadata     map[string]any
	IsAborted    bool
	AbortReason  string
}

// SetMeta records a metadata value.
func (c *Context) SetMeta(key string, value any) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
}

// Abort marks the run as finished; no further stage runs.
func (c *Context) Abort(reason string) {
	c.IsAborted = true
	c.AbortReason = reason
}

// Model returns the model recorded in metadata or the initial state.
func (c *Context) Model() string {
	if m, ok := c.Metadata["model"].(string); ok && m != "" {
		return m
	}
	return c.InitialState.Model
}

// Provider returns the provider recorded in metadata or the initial state.
func (c *Context) Provider() string {
	if p, ok := c.Metadata["provider"].(string); ok && p != "" {
		return p
	}
	return c.InitialState.Provider
}

// Stage is one step of the message pipeline.
type Stage interface {
	// Name identifies the stage in logs, spans and errors.
	Name() string

	// Process transforms the context. It may mutate pc in place and return
	// it, or return a new Context. A nil Context means "unchanged".
	Process(ctx context.Context, pc *Context) (*Context, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context, pc *Context) (*Context, error)
}

// Name implements Stage.
func (s StageFunc) Name() string { return s.StageName }

// Process implements Stage.
func (s StageFunc) Process(ctx context.Context, pc *Context) (*Context, error) {
	return s.Fn(ctx, pc)
}

// Input is what a run starts from.
type Input struct {
	// InitialState defaults to the messages, model and provider below.
	InitialState *InitialState
	Messages     []message.Message
	Model        string
	Provider     string
	MaxTokens    int
	// Metadata is merged over the seeded keys.
	Metadata map[string]any
}

// Stats describes one run.
type Stats struct {
	ProcessedCount int
	TotalDuration  time.Duration
	StageDurations map[string]time.Duration
}

// MarshalJSON reports durations in milliseconds.
func (s Stats) MarshalJSON() ([]byte, error) {
	stages := make(map[string]float64, len(s.StageDurations))
	for name, d := range s.StageDurations {
		stages[name] = millis(d)
	}
	return json.Marshal(struct {
		ProcessedCount int                `json:"processedCount"`
		TotalDuration  float64            `json:"totalDuration"`
		StageDurations map[string]float64 `json:"stageDurations,omitempty"`
	}{s.ProcessedCount, millis(s.TotalDuration), stages})
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Result is the output of a run.
type Result struct {
	Messages    []message.Message `json:"messages"`
	Metadata    map[string]any    `json:"metadata"`
	Stats       Stats             `json:"stats"`
	IsAborted   bool              `json:"isAborted"`
	AbortReason string            `json:"abortReason,omitempty"`
}

// StageError reports a failing stage. The stage's own error is available
// through errors.Is and errors.As.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage [%s] execution failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
