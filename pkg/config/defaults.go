package config

import "time"

// Default returns a Config populated with default values.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields with their documented defaults.
// Explicitly configured values are left alone.
func ApplyDefaults(cfg *Config) {
	if cfg.Engine.TrendWindow == 0 {
		cfg.Engine.TrendWindow = 2
	}
	if cfg.Engine.TrendThreshold == 0 {
		cfg.Engine.TrendThreshold = 0.15
	}
	if cfg.Engine.ExpectedPeriodDays == 0 {
		cfg.Engine.ExpectedPeriodDays = 7
	}
	if cfg.Engine.SmoothingAlpha == 0 {
		cfg.Engine.SmoothingAlpha = 0.3
	}
	if cfg.Engine.SpikeFactor == 0 {
		cfg.Engine.SpikeFactor = 5
	}

	if cfg.Prefs.File == "" {
		cfg.Prefs.File = "prefs.yaml"
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/cellar.db"
	}
	if cfg.Storage.RetentionDays == 0 {
		cfg.Storage.RetentionDays = 180
	}

	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = "cellar"
	}
}
