package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that cannot work at runtime.
// It returns all problems found, not just the first.
func Validate(cfg *Config) error {
	var problems []string

	if cfg.Engine.TrendWindow < 2 || cfg.Engine.TrendWindow > 4 {
		problems = append(problems, fmt.Sprintf("engine.trend_window must be 2-4, got %d", cfg.Engine.TrendWindow))
	}
	if cfg.Engine.TrendThreshold <= 0 || cfg.Engine.TrendThreshold >= 1 {
		problems = append(problems, fmt.Sprintf("engine.trend_threshold must be in (0, 1), got %g", cfg.Engine.TrendThreshold))
	}
	if cfg.Engine.ExpectedPeriodDays <= 0 {
		problems = append(problems, fmt.Sprintf("engine.expected_period_days must be positive, got %d", cfg.Engine.ExpectedPeriodDays))
	}
	if cfg.Engine.SmoothingAlpha <= 0 || cfg.Engine.SmoothingAlpha > 1 {
		problems = append(problems, fmt.Sprintf("engine.smoothing_alpha must be in (0, 1], got %g", cfg.Engine.SmoothingAlpha))
	}
	if cfg.Engine.SpikeFactor <= 1 {
		problems = append(problems, fmt.Sprintf("engine.spike_factor must be greater than 1, got %g", cfg.Engine.SpikeFactor))
	}

	if cfg.Storage.RetentionDays < 0 {
		problems = append(problems, fmt.Sprintf("storage.retention_days must not be negative, got %d", cfg.Storage.RetentionDays))
	}
	if cfg.Storage.MaxRuns < 0 {
		problems = append(problems, fmt.Sprintf("storage.max_runs must not be negative, got %d", cfg.Storage.MaxRuns))
	}

	if cfg.Server.ListenAddress == "" {
		problems = append(problems, "server.listen_address must not be empty")
	}

	switch strings.ToLower(cfg.Telemetry.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("telemetry.logging.level must be debug/info/warn/error, got %q", cfg.Telemetry.Logging.Level))
	}
	switch strings.ToLower(cfg.Telemetry.Logging.Format) {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("telemetry.logging.format must be json or text, got %q", cfg.Telemetry.Logging.Format))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
