// Package monitoring - logger.go provides structured logging via zerolog.
//
// DESIGN: Logger is built once by the CLI from LoggerConfig and installed as
// the global zerolog logger. Pipeline runs tag the context with a run ID so
// every stage line of one run can be correlated through RunLogger.
package monitoring

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

// RunIDKey is the context key holding the pipeline run ID.
const RunIDKey contextKey = "run_id"

// Logger wraps zerolog.Logger.
type Logger struct {
	zl zerolog.Logger
}

// New creates a Logger. Unknown levels fall back to info; an output that
// cannot be opened falls back to stderr.
func New(cfg LoggerConfig) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	writer := openOutput(cfg.Output)
	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05"}
	}
	return &Logger{zl: zerolog.New(writer).Level(level).With().Timestamp().Logger()}
}

// NewWithWriter creates a JSON logger writing to w.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

func openOutput(output string) io.Writer {
	switch output {
	case "stdout":
		return os.Stdout
	case "stderr", "":
		return os.Stderr
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return os.Stderr
	}
	return f
}

// Zerolog exposes the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// RunIDFromContext returns the run ID stored in ctx, or "".
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RunIDKey).(string)
	return id
}

// WithRunIDContext returns a copy of ctx carrying runID.
func WithRunIDContext(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// RunLogger returns the global logger tagged with the run ID in ctx, if any.
func RunLogger(ctx context.Context) zerolog.Logger {
	if id := RunIDFromContext(ctx); id != "" {
		return log.Logger.With().Str("run_id", id).Logger()
	}
	return log.Logger
}
