package ordering

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tapline-hq/cellar/pkg/inventory"
	"tapline-hq/cellar/pkg/ordering/feature"
	"tapline-hq/cellar/pkg/ordering/policy"
)

// RunMetrics receives observations about completed runs. Implemented by
// telemetry/metrics; a nil RunMetrics disables instrumentation.
type RunMetrics interface {
	ObserveRun(duration time.Duration, itemCount int)
	ObserveRecommendation(reason string)
	SetRunSpend(spend float64)
}

// Engine composes the four ordering stages into a single run:
// features, per-item policy, constraint enforcement, keg rebalancing.
//
// The Engine holds no per-run state; concurrent Run calls are safe, each
// allocating its own features, recommendations, and summary.
type Engine struct {
	featureConfig feature.Config
	logger        *slog.Logger
	metrics       RunMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches run instrumentation.
func WithMetrics(m RunMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithFeatureConfig overrides the feature computation parameters.
func WithFeatureConfig(cfg feature.Config) Option {
	return func(e *Engine) { e.featureConfig = cfg }
}

// NewEngine creates an ordering engine with the given options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		featureConfig: feature.DefaultConfig(),
		logger:        slog.Default().With("component", "ordering.engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ComputeFeatures computes usage features for every item in the dataset.
func (e *Engine) ComputeFeatures(dataset *inventory.Dataset) map[string]feature.Features {
	return feature.ComputeAll(dataset, e.featureConfig)
}

// EvaluatePolicies applies the ordering rules to every item.
func (e *Engine) EvaluatePolicies(dataset *inventory.Dataset, features map[string]feature.Features, targets policy.Targets) []policy.Result {
	return policy.EvaluateAll(dataset, features, targets)
}

// EnforceConstraints applies budget and item caps in priority order.
func (e *Engine) EnforceConstraints(recs []Recommendation, constraints Constraints) ([]Recommendation, []Warning) {
	return EnforceConstraints(recs, constraints)
}

// RebalanceKegs redistributes headroom for capped draft vendors.
func (e *Engine) RebalanceKegs(recs []Recommendation, constraints Constraints) ([]Recommendation, []Warning) {
	return RebalanceKegs(recs, constraints)
}

// Run executes the full recommendation pipeline over one dataset snapshot.
//
// The dataset and configuration are read-only inputs; the returned run is
// freshly allocated and never mutated afterwards. The context is accepted
// for orchestration-boundary symmetry; the core is a bounded in-memory
// transformation and does not block.
func (e *Engine) Run(ctx context.Context, dataset *inventory.Dataset, targets policy.Targets, constraints Constraints) (*RecommendationRun, error) {
	_ = ctx

	start := time.Now()
	if dataset == nil || dataset.Len() == 0 {
		return nil, ErrEmptyDataset
	}

	runID := "run_" + uuid.NewString()[:12]
	logger := e.logger.With("run_id", runID, "dataset_id", dataset.ID)
	logger.Info("starting recommendation run", "items", dataset.Len())

	features := e.ComputeFeatures(dataset)
	results := e.EvaluatePolicies(dataset, features, targets)
	recs := buildRecommendations(dataset, features, results)

	recs, constraintWarnings := e.EnforceConstraints(recs, constraints)
	recs, kegWarnings := e.RebalanceKegs(recs, constraints)

	warnings := append(constraintWarnings, kegWarnings...)
	for _, r := range recs {
		for _, w := range r.Warnings {
			warnings = append(warnings, Warning{ItemID: r.ItemID, Message: w})
		}
	}

	run := &RecommendationRun{
		RunID:           runID,
		DatasetID:       dataset.ID,
		CreatedAt:       time.Now().UTC(),
		Targets:         targets,
		Constraints:     constraints,
		Recommendations: recs,
		Summary:         BuildSummary(recs),
		Warnings:        warnings,
		Recounts:        buildRecounts(features, dataset.ItemIDs()),
	}

	logger.Info("recommendation run complete",
		"items_to_order", run.Summary.TotalItems,
		"total_spend", run.Summary.TotalSpend,
		"warnings", len(run.Warnings),
		"duration", time.Since(start),
	)

	if e.metrics != nil {
		e.metrics.ObserveRun(time.Since(start), dataset.Len())
		for _, r := range recs {
			e.metrics.ObserveRecommendation(string(r.Reason))
		}
		e.metrics.SetRunSpend(run.Summary.TotalSpend)
	}
	return run, nil
}

// buildRecommendations joins policy results with catalog metadata and
// feature state into the recommendation surface the later stages operate on.
func buildRecommendations(dataset *inventory.Dataset, features map[string]feature.Features, results []policy.Result) []Recommendation {
	recs := make([]Recommendation, 0, len(results))
	for _, res := range results {
		item, _ := dataset.Item(res.ItemID)
		f := features[res.ItemID]

		rec := Recommendation{
			ItemID:         res.ItemID,
			Name:           item.Name,
			Category:       item.Category,
			Vendor:         item.Vendor,
			OnHand:         f.OnHand,
			WeeksOnHand:    f.WeeksOnHand,
			AvgWeeklyUsage: f.Avg4Wk,
			Quantity:       res.Quantity,
			UnitCost:       item.UnitCost,
			TotalCost:      float64(res.Quantity) * item.UnitCost,
			Reason:         res.Reason,
			ReasonText:     res.ReasonText,
			Confidence:     res.Confidence,
			Adjustments:    res.Adjustments,
			Warnings:       res.Warnings,
		}
		if rec.Name == "" {
			rec.Name = res.ItemID
		}
		recs = append(recs, rec)
	}
	return recs
}
