// Package storage persists recommendation runs and operator approvals so a
// run can be reviewed, approved, and exported after the fact. The primary
// backend is SQLite; an in-memory backend exists for testing.
package storage

import (
	"context"
	"errors"
	"time"

	"tapline-hq/cellar/pkg/ordering"
)

// ErrRunNotFound is returned when a run ID does not exist in the store.
var ErrRunNotFound = errors.New("run not found")

// Approval records an operator decision on a single recommended item.
type Approval struct {
	RunID  string `json:"run_id"`
	ItemID string `json:"item_id"`

	// Approved is false when the operator rejected the line.
	Approved bool `json:"approved"`

	// QuantityOverride replaces the recommended quantity when non-nil.
	QuantityOverride *int `json:"quantity_override,omitempty"`

	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

// RunFilter narrows ListRuns results. Zero values mean no filtering.
type RunFilter struct {
	// Since excludes runs created before this time.
	Since time.Time

	// Limit caps the number of runs returned, newest first.
	Limit int
}

// RunHeader is the listing view of a stored run, without the per-item rows.
type RunHeader struct {
	RunID      string    `json:"run_id"`
	DatasetID  string    `json:"dataset_id"`
	CreatedAt  time.Time `json:"created_at"`
	TotalItems int       `json:"total_items"`
	TotalSpend float64   `json:"total_spend"`
}

// Store persists recommendation runs and approvals.
type Store interface {
	// SaveRun persists a complete run, replacing any run with the same ID.
	SaveRun(ctx context.Context, run *ordering.RecommendationRun) error

	// GetRun retrieves a run by ID. Returns ErrRunNotFound when absent.
	GetRun(ctx context.Context, runID string) (*ordering.RecommendationRun, error)

	// ListRuns returns run headers matching the filter, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]RunHeader, error)

	// SaveApprovals replaces the approvals for a run.
	SaveApprovals(ctx context.Context, runID string, approvals []Approval) error

	// GetApprovals returns the approvals recorded for a run, ordered by
	// item ID. A run with no approvals yields an empty slice.
	GetApprovals(ctx context.Context, runID string) ([]Approval, error)

	// DeleteRun removes a single run and its approvals. Returns
	// ErrRunNotFound when the run does not exist.
	DeleteRun(ctx context.Context, runID string) error

	// DeleteRunsBefore removes runs created before the cutoff and returns
	// how many were deleted.
	DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}
