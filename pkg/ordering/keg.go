package ordering

import (
	"fmt"
	"sort"
)

// RebalanceKegs tops up orders for vendors with a fixed maximum discrete
// order size (e.g., "21 kegs per truck").
//
// A vendor is rebalanced when at least one of its items with active usage
// is below the rebalance threshold and the vendor's recommended total is
// under the cap. The headroom is handed out one unit at a time to whichever
// item has the lowest projected weeks on hand, recomputed after every unit.
// Greedy water-filling is deliberately not an optimal min-max allocation;
// caps are small (tens of units) and the per-unit loop is fast and
// deterministic, with ties broken by item ID.
//
// Quantities only ever increase; reason codes are left untouched and the
// allocation is recorded as an adjustment.
func RebalanceKegs(recs []Recommendation, constraints Constraints) ([]Recommendation, []Warning) {
	out := make([]Recommendation, len(recs))
	copy(out, recs)

	if len(constraints.VendorKegMaxOrder) == 0 {
		return out, nil
	}

	var warnings []Warning
	threshold := constraints.kegThreshold()

	for _, vendor := range sortedKeys(constraints.VendorKegMaxOrder) {
		maxOrder := constraints.VendorKegMaxOrder[vendor]
		if maxOrder <= 0 {
			continue
		}

		indices := vendorIndices(out, vendor)
		if len(indices) == 0 {
			continue
		}

		currentTotal := 0
		atRisk := false
		for _, i := range indices {
			currentTotal += out[i].Quantity
			if out[i].AvgWeeklyUsage > 0 && out[i].WeeksOnHand < threshold {
				atRisk = true
			}
		}
		if !atRisk || currentTotal >= maxOrder {
			continue
		}

		extra := maxOrder - currentTotal
		allocated := allocate(out, indices, extra)
		if allocated == nil {
			// Nothing with measurable usage; spread the load evenly so the
			// truck still goes out full.
			allocated = allocateEvenly(indices, extra)
		}

		total := currentTotal
		for _, i := range indices {
			n := allocated[i]
			if n == 0 {
				continue
			}
			out[i].Quantity += n
			out[i].TotalCost = float64(out[i].Quantity) * out[i].UnitCost
			out[i].Adjustments = append(out[i].Adjustments, fmt.Sprintf("keg rebalance: +%d", n))
			total += n
		}
		if total > maxOrder {
			warnings = append(warnings, Warning{
				Vendor:  vendor,
				Message: fmt.Sprintf("keg order total %d exceeds vendor cap %d", total, maxOrder),
			})
		}
	}
	return out, warnings
}

// allocate hands out extra units greedily. At each step the projected
// weeks on hand (on-hand plus everything already ordered, divided by
// average usage) is recomputed for every eligible item and the unit goes
// to the lowest. Returns nil when no item is eligible.
func allocate(recs []Recommendation, indices []int, extra int) map[int]int {
	eligible := make([]int, 0, len(indices))
	for _, i := range indices {
		if recs[i].AvgWeeklyUsage > 0 {
			eligible = append(eligible, i)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	allocated := make(map[int]int, len(eligible))
	for unit := 0; unit < extra; unit++ {
		// eligible is in item-ID order, so a strict comparison breaks
		// ties toward the lexically smallest ID.
		best := -1
		bestWeeks := 0.0
		for _, i := range eligible {
			projected := (recs[i].OnHand + float64(recs[i].Quantity+allocated[i])) / recs[i].AvgWeeklyUsage
			if best == -1 || projected < bestWeeks {
				best = i
				bestWeeks = projected
			}
		}
		allocated[best]++
	}
	return allocated
}

// allocateEvenly distributes extra units round-robin across the vendor's
// items in ID order.
func allocateEvenly(indices []int, extra int) map[int]int {
	allocated := make(map[int]int, len(indices))
	for n := 0; n < extra; n++ {
		allocated[indices[n%len(indices)]]++
	}
	return allocated
}

// vendorIndices returns the positions of a vendor's recommendations in
// item-ID order, so allocation and reporting are stable.
func vendorIndices(recs []Recommendation, vendor string) []int {
	var indices []int
	for i := range recs {
		if recs[i].Vendor == vendor {
			indices = append(indices, i)
		}
	}
	sort.Slice(indices, func(a, b int) bool {
		return recs[indices[a]].ItemID < recs[indices[b]].ItemID
	})
	return indices
}
