package policy

import (
	"fmt"
	"math"

	"tapline-hq/cellar/pkg/inventory"
	"tapline-hq/cellar/pkg/ordering/feature"
)

// Rule evaluation order. First match wins; later rules are only reached
// when every earlier rule declined the item.
//
//  1. never-order exclusion
//  2. stockout risk (< 1 week of supply)
//  3. below target coverage
//  4. proactive order for rising demand
//  5. overstock flag
//  6. no order needed

// Evaluate applies the ordering rules to one item.
//
// Evaluate is pure: it reads the item, its features, and the targets, and
// returns a Result without side effects. Items are independent; evaluation
// order across items does not affect individual results.
func Evaluate(item inventory.Item, f feature.Features, targets Targets) Result {
	confidence := deriveConfidence(f)
	warnings := dataQualityWarnings(f)

	// Rule 1: never-order exclusion. Terminal, and the data-quality
	// confidence does not apply to an item we will never order.
	if targets.IsNeverOrder(item.ID) {
		return Result{
			ItemID:     item.ID,
			Quantity:   0,
			Reason:     ReasonNoOrder,
			ReasonText: "item on never-order list",
			Confidence: ConfidenceHigh,
			Warnings:   warnings,
		}
	}

	targetWeeks := targets.TargetWeeks(item.ID, item.Category)
	var adjustments []string

	// Rule 2: stockout risk.
	if f.WeeksOnHand < 1.0 && f.Avg4Wk > 0 {
		qty := orderQuantity(f, targetWeeks)
		if f.TrendDirection == feature.TrendUp {
			qty, adjustments = adjustUp(qty, adjustments)
		}
		qty, adjustments = roundToCase(qty, item.CaseSize, adjustments)
		return Result{
			ItemID:      item.ID,
			Quantity:    qty,
			Reason:      ReasonStockoutRisk,
			ReasonText:  fmt.Sprintf("below 1 week of supply (%.1f weeks on hand)", f.WeeksOnHand),
			Confidence:  confidence,
			Adjustments: adjustments,
			Warnings:    warnings,
		}
	}

	// Rule 3: below target coverage.
	if f.WeeksOnHand < targetWeeks {
		qty := orderQuantity(f, targetWeeks)
		switch f.TrendDirection {
		case feature.TrendUp:
			qty, adjustments = adjustUp(qty, adjustments)
		case feature.TrendDown:
			reduced := int(math.Floor(float64(qty) * 0.9))
			if reduced < 1 {
				reduced = 1
			}
			if reduced < qty {
				qty = reduced
				adjustments = append(adjustments, "decreased 10% for downward trend")
			}
		}
		qty, adjustments = roundToCase(qty, item.CaseSize, adjustments)
		return Result{
			ItemID:      item.ID,
			Quantity:    qty,
			Reason:      ReasonBelowTarget,
			ReasonText:  fmt.Sprintf("below %.1f week target (%.1f weeks on hand)", targetWeeks, f.WeeksOnHand),
			Confidence:  confidence,
			Adjustments: adjustments,
			Warnings:    warnings,
		}
	}

	// Rule 4: demand rising while coverage is still within reach of the
	// target; order a partial quantity ahead of need.
	if f.TrendDirection == feature.TrendUp && f.TrendStrength > 0.2 && f.WeeksOnHand < targetWeeks*1.5 {
		qty := orderQuantity(f, targetWeeks*0.5)
		qty, adjustments = roundToCase(qty, item.CaseSize, adjustments)
		capped := confidence
		if capped == ConfidenceHigh {
			capped = ConfidenceMedium
		}
		return Result{
			ItemID:      item.ID,
			Quantity:    qty,
			Reason:      ReasonTrendingUp,
			ReasonText:  fmt.Sprintf("demand trending up (%.0f%%), proactive restock", f.TrendStrength*100),
			Confidence:  capped,
			Adjustments: adjustments,
			Warnings:    warnings,
		}
	}

	// Rule 5: overstock. Informational only; nothing to suppress since no
	// earlier rule produced an order.
	if f.WeeksOnHand > targetWeeks*2 {
		return Result{
			ItemID:     item.ID,
			Quantity:   0,
			Reason:     ReasonOverstock,
			ReasonText: fmt.Sprintf("overstocked: %.1f weeks on hand (target %.1f)", f.WeeksOnHand, targetWeeks),
			Confidence: confidence,
			Warnings:   warnings,
		}
	}

	// Rule 6: default.
	return Result{
		ItemID:     item.ID,
		Quantity:   0,
		Reason:     ReasonNoOrder,
		ReasonText: fmt.Sprintf("adequate stock: %.1f weeks on hand", f.WeeksOnHand),
		Confidence: confidence,
		Warnings:   warnings,
	}
}

// EvaluateAll evaluates every item in the dataset. Items present in the
// usage records but missing from the catalog degrade to a conservative
// no-order result with a warning; a malformed item never aborts the run.
func EvaluateAll(dataset *inventory.Dataset, features map[string]feature.Features, targets Targets) []Result {
	results := make([]Result, 0, dataset.Len())
	for _, id := range dataset.ItemIDs() {
		item, ok := dataset.Item(id)
		if !ok {
			results = append(results, Result{
				ItemID:     id,
				Quantity:   0,
				Reason:     ReasonNoOrder,
				ReasonText: "item missing from catalog",
				Confidence: ConfidenceLow,
				Warnings:   []string{"item has usage records but no catalog entry"},
			})
			continue
		}
		f, ok := features[id]
		if !ok {
			f = feature.Features{ItemID: id, TrendDirection: feature.TrendStable, WeeksOnHand: feature.WeeksOnHandSentinel, InsufficientData: true}
		}
		results = append(results, Evaluate(item, f, targets))
	}
	return results
}

// deriveConfidence maps data quality to a trust level. This runs before any
// quantity decision and is independent of which rule fires.
func deriveConfidence(f feature.Features) Confidence {
	if f.HasNegativeUsage || f.WeeksOfData < 4 {
		return ConfidenceLow
	}
	if f.HasGaps || f.CoefficientOfVariation > 0.5 {
		return ConfidenceMedium
	}
	return ConfidenceHigh
}

func dataQualityWarnings(f feature.Features) []string {
	var warnings []string
	if f.HasNegativeUsage {
		warnings = append(warnings, "negative usage detected; verify inventory counts")
	}
	if f.HasGaps {
		warnings = append(warnings, "gaps in weekly data; estimates may be inaccurate")
	}
	if f.WeeksOfData < 4 {
		warnings = append(warnings, fmt.Sprintf("limited data: only %d weeks", f.WeeksOfData))
	}
	if f.HasUsageSpike {
		warnings = append(warnings, "last week's usage exceeded 5x average; verify recent count")
	}
	if f.ZeroUsage {
		warnings = append(warnings, "no usage in last 4 weeks; item may be discontinued")
	}
	return warnings
}

// orderQuantity is the shared quantity formula: enough whole units to bring
// inventory up to targetWeeks of coverage at the 4-week usage rate.
func orderQuantity(f feature.Features, targetWeeks float64) int {
	if f.Avg4Wk <= 0 {
		return 0
	}
	needed := f.Avg4Wk*targetWeeks - f.OnHand
	if needed <= 0 {
		return 0
	}
	return int(math.Ceil(needed))
}

func adjustUp(qty int, adjustments []string) (int, []string) {
	increased := int(math.Ceil(float64(qty) * 1.1))
	if increased > qty {
		adjustments = append(adjustments, "increased 10% for upward trend")
	}
	return increased, adjustments
}

// roundToCase rounds qty up to the next multiple of caseSize. Rounding an
// already-aligned quantity changes nothing.
func roundToCase(qty, caseSize int, adjustments []string) (int, []string) {
	if caseSize <= 0 || qty <= 0 {
		return qty, adjustments
	}
	rounded := ((qty + caseSize - 1) / caseSize) * caseSize
	if rounded != qty {
		adjustments = append(adjustments, fmt.Sprintf("rounded up to case size %d", caseSize))
	}
	return rounded, adjustments
}
