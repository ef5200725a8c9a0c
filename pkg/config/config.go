package config

import "time"

// Config is the root configuration structure for Cellar. It contains
// all configuration sections for the ordering engine, preferences,
// run storage, the HTTP server, and telemetry.
type Config struct {
	// Engine contains tuning parameters for feature computation.
	Engine EngineConfig `yaml:"engine"`

	// Prefs contains configuration for the preferences collaborator:
	// the targets/constraints file and the per-item preference store.
	Prefs PrefsConfig `yaml:"prefs"`

	// Storage contains configuration for run-history persistence.
	Storage StorageConfig `yaml:"storage"`

	// Server contains configuration for the HTTP API server.
	Server ServerConfig `yaml:"server"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains tuning parameters for usage-feature computation.
type EngineConfig struct {
	// TrendWindow is the number of recent weeks compared against the
	// preceding weeks for trend detection. Valid range 2-4.
	// Default: 2
	TrendWindow int `yaml:"trend_window"`

	// TrendThreshold is the relative change above which usage counts as
	// trending. Default: 0.15
	TrendThreshold float64 `yaml:"trend_threshold"`

	// ExpectedPeriodDays is the expected spacing between weekly counts.
	// A gap over twice this flags the item. Default: 7
	ExpectedPeriodDays int `yaml:"expected_period_days"`

	// SmoothingAlpha is the exponential smoothing parameter for the
	// informational smoothed-usage feature. Default: 0.3
	SmoothingAlpha float64 `yaml:"smoothing_alpha"`

	// SpikeFactor flags a usage spike when the latest week exceeds this
	// multiple of the item's average. Default: 5
	SpikeFactor float64 `yaml:"spike_factor"`
}

// PrefsConfig contains configuration for ordering preferences.
type PrefsConfig struct {
	// File is the YAML preferences file holding targets and constraints.
	// Default: "prefs.yaml"
	File string `yaml:"file"`

	// StorePath is the SQLite database holding per-item preference
	// overrides. Empty disables the store.
	StorePath string `yaml:"store_path"`

	// Watch enables hot reload of the preferences file.
	// Default: false
	Watch bool `yaml:"watch"`
}

// StorageConfig contains configuration for run-history persistence.
type StorageConfig struct {
	// Path is the SQLite database file for run history.
	// Default: "data/cellar.db"
	Path string `yaml:"path"`

	// RetentionDays prunes runs older than this. Zero disables age-based
	// pruning. Default: 180
	RetentionDays int `yaml:"retention_days"`

	// MaxRuns caps how many runs are kept. Zero disables the cap.
	MaxRuns int `yaml:"max_runs"`

	// PruneSchedule is a cron expression for scheduled pruning
	// (e.g., "0 3 * * *" for daily at 3 AM). Empty disables scheduling.
	PruneSchedule string `yaml:"prune_schedule"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit. Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured-logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text"). Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in log records. Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served. Default: false
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric name prefix. Default: "cellar"
	Namespace string `yaml:"namespace"`
}
