package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/compresr/context-engine/internal/message"
	"github.com/compresr/context-engine/internal/monitoring"
)

// Engine runs an ordered list of stages.
type Engine struct {
	stages  []Stage
	tracer  trace.Tracer
	metrics *monitoring.MetricsCollector
	alerts  *monitoring.AlertManager
}

// Option configures an Engine.
type Option func(*Engine)

// WithTracer sets the tracer for run and stage spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithMetrics records run and stage counters.
func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAlerts flags slow or failing stages.
func WithAlerts(a *monitoring.AlertManager) Option {
	return func(e *Engine) { e.alerts = a }
}

// New creates an engine over stages.
func New(stages []Stage, opts ...Option) *Engine {
	e := &Engine{
		stages: append([]Stage(nil), stages...),
		tracer: monitoring.DefaultTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// STAGE MANAGEMENT
// =============================================================================

// AddStage appends a stage.
func (e *Engine) AddStage(s Stage) *Engine {
	e.stages = append(e.stages, s)
	return e
}

// RemoveStage drops every stage with the given name.
func (e *Engine) RemoveStage(name string) *Engine {
	kept := e.stages[:0:0]
	for _, s := range e.stages {
		if s.Name() != name {
			kept = append(kept, s)
		}
	}
	e.stages = kept
	return e
}

// Stages returns a copy of the stage list.
func (e *Engine) Stages() []Stage {
	return append([]Stage(nil), e.stages...)
}

// Clear removes every stage.
func (e *Engine) Clear() *Engine {
	e.stages = nil
	return e
}

// Clone returns an engine sharing the stages but with its own list.
func (e *Engine) Clone() *Engine {
	dup := *e
	dup.stages = e.Stages()
	return &dup
}

// Description summarizes the stage list.
type Description struct {
	StageCount int      `json:"stageCount"`
	StageNames []string `json:"stageNames"`
}

// Describe returns the stage count and names in order.
func (e *Engine) Describe() Description {
	names := make([]string, 0, len(e.stages))
	for _, s := range e.stages {
		names = append(names, s.Name())
	}
	return Description{StageCount: len(e.stages), StageNames: names}
}

// ValidationResult lists configuration problems.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// Validate checks for an empty list, nameless stages and duplicate names.
func (e *Engine) Validate() ValidationResult {
	errs := []string{}
	if len(e.stages) == 0 {
		errs = append(errs, "no stages in pipeline")
	}

	counts := make(map[string]int, len(e.stages))
	for i, s := range e.stages {
		if s == nil {
			errs = append(errs, fmt.Sprintf("stage at position %d is nil", i))
			continue
		}
		if s.Name() == "" {
			errs = append(errs, "stage missing name")
			continue
		}
		counts[s.Name()]++
	}

	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	if len(dups) > 0 {
		sort.Strings(dups)
		errs = append(errs, "found duplicate stage names: "+strings.Join(dups, ", "))
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// =============================================================================
// EXECUTION
// =============================================================================

// Process runs every stage in order. ctx is used for tracing only; stages
// are not interrupted when it is cancelled.
func (e *Engine) Process(ctx context.Context, in Input) (*Result, error) {
	runID := uuid.NewString()
	ctx = monitoring.WithRunIDContext(ctx, runID)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "pipeline.process",
		trace.WithAttributes(
			attribute.String("run_id", runID),
			attribute.String("gen_ai.request.model", in.Model),
			attribute.String("gen_ai.system", in.Provider),
			attribute.Int("pipeline.stages", len(e.stages)),
			attribute.Int("pipeline.input_messages", len(in.Messages)),
		))
	defer span.End()

	pc := newContext(in)
	stats := Stats{StageDurations: make(map[string]time.Duration, len(e.stages))}
	lastStage := ""

	for _, stage := range e.stages {
		if pc.IsAborted {
			break
		}
		name := stage.Name()
		lastStage = name

		next, elapsed, err := e.runStage(ctx, stage, pc)
		stats.StageDurations[name] += elapsed
		if e.metrics != nil {
			e.metrics.RecordStage(name, elapsed)
		}
		if e.alerts != nil {
			e.alerts.FlagSlowStage(runID, name, elapsed)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stage failed")
			if e.alerts != nil {
				e.alerts.FlagStageFailure(runID, name, err)
			}
			if e.metrics != nil {
				e.metrics.RecordRun(false, false, time.Since(start))
			}
			return nil, &StageError{Stage: name, Err: err}
		}

		pc = next
		stats.ProcessedCount++
	}

	stats.TotalDuration = time.Since(start)
	if pc.Messages == nil {
		pc.Messages = []message.Message{}
	}

	span.SetAttributes(
		attribute.Int("pipeline.processed", stats.ProcessedCount),
		attribute.Int("pipeline.output_messages", len(pc.Messages)),
		attribute.Bool("pipeline.aborted", pc.IsAborted),
	)
	if pc.IsAborted && e.alerts != nil {
		e.alerts.FlagAbort(runID, lastStage, pc.AbortReason)
	}
	if e.alerts != nil {
		e.alerts.FlagSlowRun(runID, stats.TotalDuration, stats.ProcessedCount)
	}
	if e.metrics != nil {
		e.metrics.RecordRun(true, pc.IsAborted, stats.TotalDuration)
	}

	log.Debug().
		Str("run_id", runID).
		Int("stages", stats.ProcessedCount).
		Int("messages", len(pc.Messages)).
		Bool("aborted", pc.IsAborted).
		Dur("duration", stats.TotalDuration).
		Msg("pipeline: run complete")

	return &Result{
		Messages:    pc.Messages,
		Metadata:    pc.Metadata,
		Stats:       stats,
		IsAborted:   pc.IsAborted,
		AbortReason: pc.AbortReason,
	}, nil
}

// runStage executes one stage inside its own span and enforces the
// append-only metadata rule.
func (e *Engine) runStage(ctx context.Context, stage Stage, pc *Context) (*Context, time.Duration, error) {
	name := stage.Name()
	ctx, span := e.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage", name)))
	defer span.End()

	before := make(map[string]any, len(pc.Metadata))
	for k, v := range pc.Metadata {
		before[k] = v
	}

	start := time.Now()
	next, err := stage.Process(ctx, pc)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger := monitoring.RunLogger(ctx)
		logger.Debug().Err(err).Str("stage", name).Msg("pipeline: stage failed")
		return nil, elapsed, err
	}
	if next == nil {
		next = pc
	}
	if next.Metadata == nil {
		next.Metadata = make(map[string]any, len(before))
	}
	for k, v := range before {
		if _, ok := next.Metadata[k]; !ok {
			next.Metadata[k] = v
		}
	}

	span.SetAttributes(attribute.Int("messages", len(next.Messages)))
	logger := monitoring.RunLogger(ctx)
	logger.Debug().
		Str("stage", name).
		Int("messages", len(next.Messages)).
		Dur("duration", elapsed).
		Msg("pipeline: stage complete")

	return next, elapsed, nil
}

func newContext(in Input) *Context {
	msgs := message.CloneMessages(in.Messages)

	initial := InitialState{
		Messages: message.CloneMessages(in.Messages),
		Model:    in.Model,
		Provider: in.Provider,
	}
	if in.InitialState != nil {
		initial = *in.InitialState
		initial.Messages = message.CloneMessages(in.InitialState.Messages)
	}

	meta := map[string]any{
		"model":     in.Model,
		"provider":  in.Provider,
		"maxTokens": in.MaxTokens,
	}
	for k, v := range in.Metadata {
		meta[k] = v
	}

	return &Context{
		InitialState: initial,
		Messages:     msgs,
		Metadata:     meta,
	}
}
