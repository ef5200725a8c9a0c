// Package ordering is the recommendation core: it turns a weekly inventory
// snapshot into an ordered, budget-constrained list of reorder suggestions.
//
// # Pipeline
//
// A run flows through four stages:
//
//	Dataset -> features -> per-item policy -> constraint enforcement -> keg rebalancing
//
// Feature computation (subpackage feature) and policy evaluation
// (subpackage policy) are pure per-item functions. Constraint enforcement
// sorts the whole run by priority and applies a single budget truncation
// point. Keg rebalancing tops up capped draft vendors with a greedy
// water-filling allocation.
//
// # Error model
//
// Data-quality problems (negative usage, gaps, thin history) downgrade
// confidence and attach warnings; they never abort a run. The only
// run-aborting condition is an empty dataset (ErrEmptyDataset). This is a
// human-reviewed advisory system: a missed order beats a failed run.
//
// # Concurrency
//
// Each run is a synchronous in-memory transformation over a read-only
// dataset. The Engine holds no shared mutable state, so concurrent runs,
// including runs over the same dataset, are safe.
package ordering
