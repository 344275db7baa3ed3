// Package monitoring - alerts.go flags anomalies and errors.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagSlowStage:    Warn when one stage exceeds its threshold
//   - FlagSlowRun:      Warn when a whole run exceeds its threshold
//   - FlagStageFailure: Error when a stage returns an error
//   - FlagAbort:        Info when a stage aborts the run
package monitoring

import "time"

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger             *Logger
	slowStageThreshold time.Duration
	slowRunThreshold   time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, cfg AlertConfig) *AlertManager {
	stage := cfg.SlowStageThreshold
	if stage == 0 {
		stage = 250 * time.Millisecond
	}
	run := cfg.SlowRunThreshold
	if run == 0 {
		run = time.Second
	}
	return &AlertManager{logger: logger, slowStageThreshold: stage, slowRunThreshold: run}
}

// FlagSlowStage logs when a stage exceeds the threshold.
func (am *AlertManager) FlagSlowStage(runID, stage string, latency time.Duration) {
	if latency < am.slowStageThreshold {
		return
	}
	am.logger.Warn().
		Str("run_id", runID).
		Str("stage", stage).
		Dur("latency", latency).
		Msg("slow_stage")
}

// FlagSlowRun logs when a pipeline run exceeds the threshold.
func (am *AlertManager) FlagSlowRun(runID string, latency time.Duration, stages int) {
	if latency < am.slowRunThreshold {
		return
	}
	am.logger.Warn().
		Str("run_id", runID).
		Dur("latency", latency).
		Int("stages", stages).
		Msg("slow_run")
}

// FlagStageFailure logs a failing stage.
func (am *AlertManager) FlagStageFailure(runID, stage string, err error) {
	am.logger.Error().
		Str("run_id", runID).
		Str("stage", stage).
		Err(err).
		Msg("stage_failed")
}

// FlagAbort logs a run aborted by a stage.
func (am *AlertManager) FlagAbort(runID, stage, reason string) {
	am.logger.Info().
		Str("run_id", runID).
		Str("stage", stage).
		Str("reason", reason).
		Msg("run_aborted")
}
