// Monitoring configuration - logging, alert and tracing settings.
//
// DESIGN: The field types live in the monitoring package so that package can
// be configured without importing config.
package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/compresr/context-engine/internal/monitoring"
)

// MonitoringConfig contains all monitoring settings.
type MonitoringConfig struct {
	Log     monitoring.LoggerConfig  `yaml:"log" toml:"log"`         // Level, format, output
	Alerts  monitoring.AlertConfig   `yaml:"alerts" toml:"alerts"`   // Slow stage/run thresholds
	Tracing monitoring.TracingConfig `yaml:"tracing" toml:"tracing"` // OpenTelemetry spans
}

// Validate checks monitoring settings.
func (m MonitoringConfig) Validate() error {
	if m.Log.Level != "" {
		if _, err := zerolog.ParseLevel(m.Log.Level); err != nil {
			return fmt.Errorf("invalid monitoring.log.level %q: %w", m.Log.Level, err)
		}
	}
	switch m.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid monitoring.log.format %q (must be json or console)", m.Log.Format)
	}
	if m.Alerts.SlowStageThreshold < 0 || m.Alerts.SlowRunThreshold < 0 {
		return fmt.Errorf("monitoring.alerts thresholds must not be negative")
	}
	return nil
}
