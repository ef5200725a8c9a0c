package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tapline-hq/cellar/pkg/config"
	"tapline-hq/cellar/pkg/ordering/feature"
	"tapline-hq/cellar/pkg/prefs"
	"tapline-hq/cellar/pkg/storage"
	"tapline-hq/cellar/pkg/telemetry/logging"
)

// loadConfig loads the configuration file with environment overrides. When
// the file does not exist, defaults are used so commands work out of the
// box.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		cfg := config.Default()
		return cfg, nil
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging installs the default logger from the telemetry config.
// The --verbose flag forces debug level.
func setupLogging(cfg *config.Config) error {
	level := cfg.Telemetry.Logging.Level
	if verbose {
		level = "debug"
	}

	_, err := logging.Setup(logging.Config{
		Level:     level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	return nil
}

// featureConfigFrom converts the engine section into a feature config.
func featureConfigFrom(cfg *config.Config) feature.Config {
	return feature.Config{
		TrendWindow:    cfg.Engine.TrendWindow,
		TrendThreshold: cfg.Engine.TrendThreshold,
		ExpectedPeriod: time.Duration(cfg.Engine.ExpectedPeriodDays) * 24 * time.Hour,
		SmoothingAlpha: cfg.Engine.SmoothingAlpha,
		SpikeFactor:    cfg.Engine.SpikeFactor,
	}
}

// openPrefs opens the preference manager and, when configured, the per-item
// store. Either may be overridden by the --prefs flag on individual commands.
func openPrefs(cfg *config.Config, fileOverride string) (*prefs.Manager, *prefs.Store, error) {
	path := cfg.Prefs.File
	if fileOverride != "" {
		path = fileOverride
	}

	var store *prefs.Store
	if cfg.Prefs.StorePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Prefs.StorePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create preference store directory: %w", err)
		}
		var err error
		store, err = prefs.OpenStore(cfg.Prefs.StorePath)
		if err != nil {
			return nil, nil, err
		}
	}

	mgr, err := prefs.NewManager(path, store, nil)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, nil, err
	}
	return mgr, store, nil
}

// openRunStore opens the SQLite run store from the storage config.
func openRunStore(cfg *config.Config) (storage.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	sqliteCfg := storage.DefaultSQLiteConfig()
	sqliteCfg.Path = cfg.Storage.Path
	return storage.NewSQLiteStore(sqliteCfg)
}
