package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"tapline-hq/cellar/pkg/api"
	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/server"
	"tapline-hq/cellar/pkg/storage/retention"
	"tapline-hq/cellar/pkg/telemetry/metrics"
)

var serveFlags struct {
	listenAddress string
	logLevel      string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server.

The server accepts datasets over HTTP, executes recommendation runs,
persists them for review, and serves stored runs, approvals, per-item
preferences, and exports.

Examples:
  # Start with default config
  cellar serve

  # Start with custom config
  cellar serve --config /etc/cellar/config.yaml

  # Override listen address
  cellar serve --listen 0.0.0.0:8080`,
	RunE: serveAPI,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().StringVar(&serveFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func serveAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}
	if serveFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = serveFlags.logLevel
	}

	if err := setupLogging(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Preferences
	prefsMgr, itemStore, err := openPrefs(cfg, "")
	if err != nil {
		return err
	}
	if itemStore != nil {
		defer itemStore.Close()
	}
	if cfg.Prefs.Watch {
		go func() {
			if err := prefsMgr.Watch(ctx); err != nil {
				slog.Error("preferences watcher exited", "error", err)
			}
		}()
	}

	// Run storage and retention
	store, err := openRunStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pruner := retention.NewPruner(store, &retention.Config{
		RetentionDays: cfg.Storage.RetentionDays,
		MaxRuns:       cfg.Storage.MaxRuns,
		PruneSchedule: cfg.Storage.PruneSchedule,
	})
	scheduler := retention.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	// Engine with optional metrics
	engineOpts := []ordering.Option{
		ordering.WithFeatureConfig(featureConfigFrom(cfg)),
	}
	var runMetrics *metrics.RunMetrics
	if cfg.Telemetry.Metrics.Enabled {
		runMetrics = metrics.NewRunMetrics(metrics.Config{
			Enabled:   true,
			Namespace: cfg.Telemetry.Metrics.Namespace,
		})
		engineOpts = append(engineOpts, ordering.WithMetrics(runMetrics))
	}
	engine := ordering.NewEngine(engineOpts...)

	// HTTP server
	handler := api.NewHandler(engine, store, prefsMgr, itemStore)
	var metricsHandler server.MetricsHandler
	if runMetrics != nil {
		metricsHandler = runMetrics
	}
	srv := server.NewServer(&cfg.Server, handler, metricsHandler)

	return srv.Start(ctx)
}
