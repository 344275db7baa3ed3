// Package monitoring - types.go defines shared config types.
//
// DESIGN: These types are used by both config/ and monitoring/ packages.
// Defined here ONCE to avoid duplication and circular imports.
package monitoring

import "time"

// LoggerConfig contains logging configuration.
type LoggerConfig struct {
	Level  string `yaml:"level" toml:"level"`   // debug, info, warn, error
	Format string `yaml:"format" toml:"format"` // json, console
	Output string `yaml:"output" toml:"output"` // stdout, stderr, or file path
}

// AlertConfig contains alert thresholds.
type AlertConfig struct {
	SlowStageThreshold time.Duration `yaml:"slow_stage_threshold" toml:"slow_stage_threshold"`
	SlowRunThreshold   time.Duration `yaml:"slow_run_threshold" toml:"slow_run_threshold"`
}

// TracingConfig controls OpenTelemetry span creation.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}
