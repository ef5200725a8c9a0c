package policy

// ReasonCode is the closed enumeration explaining a recommendation's
// quantity. No free-text reason ever drives behavior; downstream stages
// switch on these values only.
type ReasonCode string

const (
	// ReasonStockoutRisk: less than one week of supply with active usage.
	ReasonStockoutRisk ReasonCode = "STOCKOUT_RISK"

	// ReasonBelowTarget: supply below the configured target weeks.
	ReasonBelowTarget ReasonCode = "BELOW_TARGET"

	// ReasonTrendingUp: proactive partial order for rising demand.
	ReasonTrendingUp ReasonCode = "TRENDING_UP"

	// ReasonOverstock: informational, more than twice the target on hand.
	ReasonOverstock ReasonCode = "OVERSTOCK"

	// ReasonNoOrder: adequate stock or item excluded from ordering.
	ReasonNoOrder ReasonCode = "NO_ORDER"
)

// Valid reports whether c belongs to the closed enumeration.
func (c ReasonCode) Valid() bool {
	switch c {
	case ReasonStockoutRisk, ReasonBelowTarget, ReasonTrendingUp, ReasonOverstock, ReasonNoOrder:
		return true
	}
	return false
}

// PriorityTier returns the constraint-enforcement tier for a recommendation
// with this reason and quantity. Lower tiers are funded first when budget or
// item caps truncate the order.
func (c ReasonCode) PriorityTier(quantity int) int {
	if quantity == 0 {
		return 99
	}
	switch c {
	case ReasonStockoutRisk:
		return 0
	case ReasonBelowTarget:
		return 1
	case ReasonTrendingUp:
		return 2
	default:
		return 3
	}
}

// Confidence is the qualitative trust level of a recommendation, driven by
// the quality of the underlying usage data.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Rank orders confidence for sorting: HIGH=0, MEDIUM=1, LOW=2.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// Result is the outcome of policy evaluation for a single item.
type Result struct {
	ItemID      string     `json:"item_id"`
	Quantity    int        `json:"quantity"`
	Reason      ReasonCode `json:"reason"`
	ReasonText  string     `json:"reason_text"`
	Confidence  Confidence `json:"confidence"`
	Adjustments []string   `json:"adjustments,omitempty"`
	Warnings    []string   `json:"warnings,omitempty"`
}
