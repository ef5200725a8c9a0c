package ordering

import (
	"fmt"

	"tapline-hq/cellar/pkg/ordering/feature"
)

// BuildSummary aggregates run statistics. Vendor and category breakdowns
// count nonzero recommendations only; the by-reason breakdown covers every
// item so no-order outcomes remain visible in reporting.
func BuildSummary(recs []Recommendation) RunSummary {
	summary := RunSummary{
		ByVendor:   make(map[string]VendorSummary),
		ByCategory: make(map[string]int),
		ByReason:   make(map[string]int),
	}
	for _, r := range recs {
		summary.ByReason[string(r.Reason)]++
		if len(r.Warnings) > 0 {
			summary.ItemsWithWarnings++
		}
		if r.Quantity == 0 {
			continue
		}
		summary.TotalItems++
		summary.TotalSpend += r.TotalCost

		vs := summary.ByVendor[r.Vendor]
		vs.Items++
		vs.Spend += r.TotalCost
		summary.ByVendor[r.Vendor] = vs

		summary.ByCategory[r.Category]++
	}
	return summary
}

// buildRecounts lists items whose usage data looks miscounted, with the
// value the next physical count should roughly agree with.
func buildRecounts(features map[string]feature.Features, ids []string) []Recount {
	var recounts []Recount
	for _, id := range ids {
		f, ok := features[id]
		if !ok {
			continue
		}
		switch {
		case f.HasNegativeUsage:
			rc := Recount{
				ItemID:         id,
				OnHand:         f.OnHand,
				AvgWeeklyUsage: f.Avg4Wk,
				Issue:          "negative usage",
				Detail:         "usage calculation went negative; the count was likely high relative to the prior week",
			}
			if f.Avg4Wk > 0 {
				rc.ExpectedOnHand = f.OnHand + f.Avg4Wk
				rc.Detail = fmt.Sprintf("%s (expected on hand near %.1f at average usage)", rc.Detail, rc.ExpectedOnHand)
			}
			recounts = append(recounts, rc)
		case f.HasUsageSpike:
			recounts = append(recounts, Recount{
				ItemID:         id,
				OnHand:         f.OnHand,
				AvgWeeklyUsage: f.Avg4Wk,
				Issue:          "usage spike",
				Detail:         fmt.Sprintf("last week's usage of %.1f is over 5x the average; verify the recent count", f.LastWeekUsage),
			})
		}
	}
	return recounts
}
