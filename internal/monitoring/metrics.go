// Package monitoring - metrics.go provides simple counters.
//
// DESIGN: Lightweight in-memory counters for pipeline runs:
//   - runs/successes/failures/aborts: pipeline run outcomes
//   - stages:         stages executed across all runs
//   - stage_ms:       cumulative stage time in milliseconds
//   - tools_rendered: function tools produced by the tool engine
//
// For production, export these to Prometheus or similar.
package monitoring

import (
	"sync/atomic"
	"time"
)

// MetricsCollector collects operational metrics.
type MetricsCollector struct {
	runs          atomic.Int64
	successes     atomic.Int64
	failures      atomic.Int64
	aborts        atomic.Int64
	stages        atomic.Int64
	stageMillis   atomic.Int64
	toolsRendered atomic.Int64
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordRun records the outcome of one pipeline run.
func (mc *MetricsCollector) RecordRun(success, aborted bool, _ time.Duration) {
	mc.runs.Add(1)
	switch {
	case !success:
		mc.failures.Add(1)
	case aborted:
		mc.aborts.Add(1)
		mc.successes.Add(1)
	default:
		mc.successes.Add(1)
	}
}

// RecordStage records one executed stage.
func (mc *MetricsCollector) RecordStage(_ string, d time.Duration) {
	mc.stages.Add(1)
	mc.stageMillis.Add(d.Milliseconds())
}

// RecordTools records rendered function tools.
func (mc *MetricsCollector) RecordTools(n int) {
	mc.toolsRendered.Add(int64(n))
}

// Stats returns current metrics.
func (mc *MetricsCollector) Stats() map[string]int64 {
	return map[string]int64{
		"runs":           mc.runs.Load(),
		"successes":      mc.successes.Load(),
		"failures":       mc.failures.Load(),
		"aborts":         mc.aborts.Load(),
		"stages":         mc.stages.Load(),
		"stage_ms":       mc.stageMillis.Load(),
		"tools_rendered": mc.toolsRendered.Load(),
	}
}
