package ordering

import (
	"errors"
	"time"

	"tapline-hq/cellar/pkg/ordering/policy"
)

// ErrEmptyDataset is returned when a run is requested over a dataset with
// zero items. An empty dataset is the only run-aborting condition; every
// per-item problem degrades to a warning instead.
var ErrEmptyDataset = errors.New("ordering: dataset contains no items")

// Recommendation is one item's ordering advice within a run.
//
// The reason code is assigned once by policy evaluation. Later stages only
// mutate quantity and append adjustments; they never re-classify.
type Recommendation struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Vendor   string `json:"vendor"`

	// Current state, carried for reporting and keg rebalancing.
	OnHand         float64 `json:"on_hand"`
	WeeksOnHand    float64 `json:"weeks_on_hand"`
	AvgWeeklyUsage float64 `json:"avg_weekly_usage"`

	Quantity  int     `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
	TotalCost float64 `json:"total_cost"`

	Reason     policy.ReasonCode `json:"reason"`
	ReasonText string            `json:"reason_text"`
	Confidence policy.Confidence `json:"confidence"`

	// Adjustments is the audit trail of modifications applied after the
	// initial policy decision (trend multipliers, case rounding, budget
	// removals, keg rebalancing).
	Adjustments []string `json:"adjustments,omitempty"`

	// Warnings are per-item data-quality notes.
	Warnings []string `json:"warnings,omitempty"`
}

// Constraints bound a run's total order. Zero values disable the
// corresponding limit.
type Constraints struct {
	// MaxTotalSpend caps the cumulative cost of the order.
	MaxTotalSpend float64 `yaml:"max_total_spend" json:"max_total_spend,omitempty"`

	// MaxTotalItems caps how many distinct items receive a nonzero order.
	MaxTotalItems int `yaml:"max_total_items" json:"max_total_items,omitempty"`

	// VendorMinimums maps vendor name to the minimum order value below
	// which a run-level warning is produced. The order is not inflated.
	VendorMinimums map[string]float64 `yaml:"vendor_minimums" json:"vendor_minimums,omitempty"`

	// VendorMaximums maps vendor name to the order value above which a
	// run-level warning is produced.
	VendorMaximums map[string]float64 `yaml:"vendor_maximums" json:"vendor_maximums,omitempty"`

	// VendorKegMaxOrder maps vendor name to the fixed maximum discrete
	// order size for draft vendors (e.g., 21 kegs per truck).
	VendorKegMaxOrder map[string]int `yaml:"vendor_keg_max_order" json:"vendor_keg_max_order,omitempty"`

	// KegRebalanceThreshold is the weeks-on-hand level below which a keg
	// vendor's order is topped up to its maximum. Zero means the default
	// of 1 week.
	KegRebalanceThreshold float64 `yaml:"keg_rebalance_threshold" json:"keg_rebalance_threshold,omitempty"`
}

// DefaultKegRebalanceThreshold is used when Constraints leaves the
// threshold unset.
const DefaultKegRebalanceThreshold = 1.0

func (c Constraints) kegThreshold() float64 {
	if c.KegRebalanceThreshold > 0 {
		return c.KegRebalanceThreshold
	}
	return DefaultKegRebalanceThreshold
}

// Warning is a run-level advisory tied to an item or a vendor.
type Warning struct {
	ItemID  string `json:"item_id,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
	Message string `json:"message"`
}

// VendorSummary aggregates a vendor's share of the order.
type VendorSummary struct {
	Items int     `json:"items"`
	Spend float64 `json:"spend"`
}

// Recount flags an item whose data-quality issues suggest the physical
// count should be redone before ordering.
type Recount struct {
	ItemID         string  `json:"item_id"`
	OnHand         float64 `json:"on_hand"`
	AvgWeeklyUsage float64 `json:"avg_weekly_usage"`
	Issue          string  `json:"issue"`
	Detail         string  `json:"detail"`
	ExpectedOnHand float64 `json:"expected_on_hand,omitempty"`
}

// RunSummary holds aggregate statistics for one run. Counts and spend cover
// nonzero recommendations only; by-reason counts cover every item.
type RunSummary struct {
	TotalItems        int                      `json:"total_items"`
	TotalSpend        float64                  `json:"total_spend"`
	ItemsWithWarnings int                      `json:"items_with_warnings"`
	ByVendor          map[string]VendorSummary `json:"by_vendor"`
	ByCategory        map[string]int           `json:"by_category"`
	ByReason          map[string]int           `json:"by_reason"`
}

// RecommendationRun is the complete output of one engine invocation.
// It is created once per run and never mutated after being returned;
// persistence is the storage layer's concern.
type RecommendationRun struct {
	RunID     string    `json:"run_id"`
	DatasetID string    `json:"dataset_id"`
	CreatedAt time.Time `json:"created_at"`

	Targets     policy.Targets `json:"targets"`
	Constraints Constraints    `json:"constraints"`

	Recommendations []Recommendation `json:"recommendations"`
	Summary         RunSummary       `json:"summary"`
	Warnings        []Warning        `json:"warnings,omitempty"`
	Recounts        []Recount        `json:"recounts,omitempty"`
}
