package ordering

import (
	"fmt"
	"sort"
)

// EnforceConstraints orders recommendations by priority and applies the
// budget and item-count caps.
//
// The returned slice has the same length as the input: entries past the
// truncation point are zeroed, never removed, so downstream stages and
// reporting keep the full recommendation surface. Vendor minimum/maximum
// checks produce run-level warnings only.
func EnforceConstraints(recs []Recommendation, constraints Constraints) ([]Recommendation, []Warning) {
	out := make([]Recommendation, len(recs))
	copy(out, recs)
	sortByPriority(out)

	applyBudget(out, constraints)
	warnings := vendorWarnings(out, constraints)
	return out, warnings
}

// sortByPriority sorts ascending by (priority tier, confidence rank,
// -total cost). Within a tier, spendier items sort first: when the tier is
// partially truncated the greedy cut protects the impactful orders. Final
// tie-break on item ID keeps runs reproducible.
func sortByPriority(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		at, bt := a.Reason.PriorityTier(a.Quantity), b.Reason.PriorityTier(b.Quantity)
		if at != bt {
			return at < bt
		}
		ar, br := a.Confidence.Rank(), b.Confidence.Rank()
		if ar != br {
			return ar < br
		}
		if a.TotalCost != b.TotalCost {
			return a.TotalCost > b.TotalCost
		}
		return a.ItemID < b.ItemID
	})
}

// applyBudget walks the sorted list accumulating spend. The first active
// order that would breach the spend cap or the item cap marks a single
// truncation point: it and every later active order are zeroed. This is a
// deliberate priority cut, not a knapsack fit.
func applyBudget(recs []Recommendation, constraints Constraints) {
	var (
		running  float64
		active   int
		cut      bool
		cutNote  string
		maxSpend = constraints.MaxTotalSpend
		maxItems = constraints.MaxTotalItems
	)
	for i := range recs {
		if recs[i].Quantity == 0 {
			continue
		}
		if !cut {
			switch {
			case maxSpend > 0 && running+recs[i].TotalCost > maxSpend:
				cut = true
				cutNote = "removed: budget constraint"
			case maxItems > 0 && active+1 > maxItems:
				cut = true
				cutNote = "removed: max items constraint"
			}
		}
		if cut {
			recs[i].Quantity = 0
			recs[i].TotalCost = 0
			recs[i].Adjustments = append(recs[i].Adjustments, cutNote)
			continue
		}
		running += recs[i].TotalCost
		active++
	}
}

func vendorWarnings(recs []Recommendation, constraints Constraints) []Warning {
	if len(constraints.VendorMinimums) == 0 && len(constraints.VendorMaximums) == 0 {
		return nil
	}

	spend := make(map[string]float64)
	for _, r := range recs {
		if r.Quantity > 0 {
			spend[r.Vendor] += r.TotalCost
		}
	}

	var warnings []Warning
	for _, vendor := range sortedKeys(constraints.VendorMinimums) {
		minimum := constraints.VendorMinimums[vendor]
		if total, ok := spend[vendor]; ok && total < minimum {
			warnings = append(warnings, Warning{
				Vendor:  vendor,
				Message: fmt.Sprintf("order total $%.2f below vendor minimum $%.2f", total, minimum),
			})
		}
	}
	for _, vendor := range sortedKeys(constraints.VendorMaximums) {
		maximum := constraints.VendorMaximums[vendor]
		if total, ok := spend[vendor]; ok && total > maximum {
			warnings = append(warnings, Warning{
				Vendor:  vendor,
				Message: fmt.Sprintf("order total $%.2f exceeds vendor maximum $%.2f", total, maximum),
			})
		}
	}
	return warnings
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
