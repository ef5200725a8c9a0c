// Package retention prunes old recommendation runs from the store, either on
// demand or on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tapline-hq/cellar/pkg/storage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain runs.
	// 0 means keep runs forever (no age-based pruning).
	RetentionDays int

	// MaxRuns is the maximum number of runs to keep.
	// 0 means unlimited.
	MaxRuns int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 180,
		MaxRuns:       0,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces retention policies on stored runs.
type Pruner struct {
	store  storage.Store
	config *Config
	logger *slog.Logger
}

// NewPruner creates a new retention pruner.
func NewPruner(store storage.Store, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}
	return &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "storage.retention"),
	}
}

// Prune deletes runs older than the retention period or exceeding the
// maximum run count. Both phases can apply in the same cycle. Returns the
// total number of runs deleted.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	var totalDeleted int

	if p.config.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -p.config.RetentionDays)
		deleted, err := p.store.DeleteRunsBefore(ctx, cutoff)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age failed: %w", err)
		}
		totalDeleted += deleted
		p.logger.Info("pruned runs by age",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
		)
	}

	if p.config.MaxRuns > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count failed: %w", err)
		}
		totalDeleted += deleted
		p.logger.Info("pruned runs by count",
			"deleted_count", deleted,
			"max_runs", p.config.MaxRuns,
		)
	}

	if totalDeleted == 0 {
		p.logger.Debug("no runs pruned",
			"retention_days", p.config.RetentionDays,
			"max_runs", p.config.MaxRuns,
		)
	}
	return totalDeleted, nil
}

// pruneByCount keeps the newest MaxRuns runs and deletes everything created
// before the oldest of them.
func (p *Pruner) pruneByCount(ctx context.Context) (int, error) {
	headers, err := p.store.ListRuns(ctx, storage.RunFilter{})
	if err != nil {
		return 0, err
	}
	if len(headers) <= p.config.MaxRuns {
		return 0, nil
	}

	// Headers are newest first; the last retained run sets the cutoff.
	cutoff := headers[p.config.MaxRuns-1].CreatedAt
	return p.store.DeleteRunsBefore(ctx, cutoff)
}
