// Package monitoring - tracing.go provides OpenTelemetry tracers.
//
// DESIGN: Spans go through the globally registered TracerProvider. No
// exporter is configured here; embedders install one with
// otel.SetTracerProvider. When tracing is disabled a noop tracer is used.
package monitoring

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/compresr/context-engine"

// Tracer returns the tracer for pipeline spans.
func Tracer(cfg TracingConfig) trace.Tracer {
	if !cfg.Enabled {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	name := cfg.ServiceName
	if name == "" {
		name = instrumentationName
	}
	return otel.Tracer(name)
}

// DefaultTracer returns the global tracer.
func DefaultTracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
