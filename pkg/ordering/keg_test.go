package ordering

import (
	"strings"
	"testing"

	"tapline-hq/cellar/pkg/ordering/policy"
)

func kegRec(id string, qty int, onHand, avgUsage float64) Recommendation {
	r := Recommendation{
		ItemID:         id,
		Vendor:         "Crescent",
		OnHand:         onHand,
		AvgWeeklyUsage: avgUsage,
		Quantity:       qty,
		UnitCost:       150,
		TotalCost:      float64(qty) * 150,
		Reason:         policy.ReasonBelowTarget,
		Confidence:     policy.ConfidenceHigh,
	}
	if avgUsage > 0 {
		r.WeeksOnHand = onHand / avgUsage
	} else {
		r.WeeksOnHand = 999
	}
	return r
}

func kegConstraints(cap int) Constraints {
	return Constraints{VendorKegMaxOrder: map[string]int{"Crescent": cap}}
}

// ============================================================================
// Rebalance Trigger Tests
// ============================================================================

func TestRebalanceKegs_FillsToCap(t *testing.T) {
	// Item A is under a week of supply; the truck gets topped up to 21.
	recs := []Recommendation{
		kegRec("ipa", 8, 2, 5),    // 0.4 weeks on hand
		kegRec("stout", 0, 10, 2), // 5 weeks on hand
	}

	out, warnings := RebalanceKegs(recs, kegConstraints(21))
	total := out[0].Quantity + out[1].Quantity
	if total != 21 {
		t.Errorf("vendor total = %d, want 21", total)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none at the cap", warnings)
	}
}

func TestRebalanceKegs_NoTriggerWhenHealthy(t *testing.T) {
	recs := []Recommendation{
		kegRec("ipa", 3, 10, 5),   // 2 weeks on hand
		kegRec("stout", 0, 10, 2), // 5 weeks on hand
	}

	out, _ := RebalanceKegs(recs, kegConstraints(21))
	for i := range out {
		if out[i].Quantity != recs[i].Quantity {
			t.Errorf("%s: quantity changed %d -> %d without an at-risk item", out[i].ItemID, recs[i].Quantity, out[i].Quantity)
		}
	}
}

func TestRebalanceKegs_NoTriggerAtCap(t *testing.T) {
	recs := []Recommendation{
		kegRec("ipa", 21, 2, 5),
	}

	out, _ := RebalanceKegs(recs, kegConstraints(21))
	if out[0].Quantity != 21 {
		t.Errorf("Quantity = %d, want 21 untouched at cap", out[0].Quantity)
	}
}

func TestRebalanceKegs_NoKegVendorsConfigured(t *testing.T) {
	recs := []Recommendation{kegRec("ipa", 1, 2, 5)}
	out, warnings := RebalanceKegs(recs, Constraints{})
	if out[0].Quantity != 1 || warnings != nil {
		t.Errorf("rebalance without keg config should be a no-op")
	}
}

func TestRebalanceKegs_CustomThreshold(t *testing.T) {
	// 2 weeks on hand is at risk under a 3-week threshold.
	recs := []Recommendation{kegRec("ipa", 0, 10, 5)}
	constraints := kegConstraints(5)
	constraints.KegRebalanceThreshold = 3

	out, _ := RebalanceKegs(recs, constraints)
	if out[0].Quantity != 5 {
		t.Errorf("Quantity = %d, want 5 under the raised threshold", out[0].Quantity)
	}
}

// ============================================================================
// Allocation Tests
// ============================================================================

func TestRebalanceKegs_AllocatesToLowestProjectedCoverage(t *testing.T) {
	// With a cap of 6 and 2 extra units, the fast mover should absorb the
	// headroom: its projected coverage stays lowest throughout.
	recs := []Recommendation{
		kegRec("fast", 2, 1, 10), // 0.1 weeks on hand
		kegRec("slow", 2, 20, 1), // 20 weeks on hand
	}

	out, _ := RebalanceKegs(recs, kegConstraints(6))
	if out[0].Quantity != 4 {
		t.Errorf("fast mover quantity = %d, want 4", out[0].Quantity)
	}
	if out[1].Quantity != 2 {
		t.Errorf("slow mover quantity = %d, want 2 untouched", out[1].Quantity)
	}
}

func TestRebalanceKegs_QuantitiesNeverDecrease(t *testing.T) {
	recs := []Recommendation{
		kegRec("a", 5, 1, 4),
		kegRec("b", 3, 2, 3),
		kegRec("c", 0, 8, 1),
	}

	out, _ := RebalanceKegs(recs, kegConstraints(21))
	for i := range out {
		if out[i].Quantity < recs[i].Quantity {
			t.Errorf("%s: quantity decreased %d -> %d", out[i].ItemID, recs[i].Quantity, out[i].Quantity)
		}
	}
}

func TestRebalanceKegs_TieBreaksByItemID(t *testing.T) {
	// Identical projections: each unit must go to the lexically smallest ID
	// first, keeping the run reproducible.
	recs := []Recommendation{
		kegRec("b", 0, 1, 2),
		kegRec("a", 0, 1, 2),
	}

	out, _ := RebalanceKegs(recs, kegConstraints(1))
	var a, b Recommendation
	for _, r := range out {
		switch r.ItemID {
		case "a":
			a = r
		case "b":
			b = r
		}
	}
	if a.Quantity != 1 || b.Quantity != 0 {
		t.Errorf("allocation a=%d b=%d, want the single unit on item a", a.Quantity, b.Quantity)
	}
}

func TestRebalanceKegs_Deterministic(t *testing.T) {
	recs := []Recommendation{
		kegRec("a", 1, 2, 5),
		kegRec("b", 2, 3, 4),
		kegRec("c", 0, 1, 6),
	}

	first, _ := RebalanceKegs(recs, kegConstraints(15))
	for i := 0; i < 10; i++ {
		again, _ := RebalanceKegs(recs, kegConstraints(15))
		for j := range again {
			if again[j].Quantity != first[j].Quantity {
				t.Fatalf("iteration %d: %s quantity %d != %d", i, again[j].ItemID, again[j].Quantity, first[j].Quantity)
			}
		}
	}
}

func TestRebalanceKegs_AdjustmentNote(t *testing.T) {
	recs := []Recommendation{kegRec("ipa", 1, 2, 5)}

	out, _ := RebalanceKegs(recs, kegConstraints(4))
	if len(out[0].Adjustments) != 1 || !strings.Contains(out[0].Adjustments[0], "keg rebalance: +3") {
		t.Errorf("Adjustments = %v, want keg rebalance note", out[0].Adjustments)
	}
	if out[0].TotalCost != float64(out[0].Quantity)*out[0].UnitCost {
		t.Errorf("TotalCost = %.2f not recomputed", out[0].TotalCost)
	}
}

func TestRebalanceKegs_UnmeasuredItemsGetNothing(t *testing.T) {
	recs := []Recommendation{
		kegRec("risk", 0, 0.5, 1),
		kegRec("dead-a", 0, 0, 0),
		kegRec("dead-b", 0, 0, 0),
	}

	out, _ := RebalanceKegs(recs, kegConstraints(4))
	total := 0
	for _, r := range out {
		total += r.Quantity
	}
	if total != 4 {
		t.Errorf("vendor total = %d, want 4", total)
	}
	// The eligible item takes everything; dead items stay at zero.
	for _, r := range out {
		if strings.HasPrefix(r.ItemID, "dead") && r.Quantity != 0 {
			t.Errorf("%s: quantity = %d, want 0 for unmeasured item", r.ItemID, r.Quantity)
		}
	}
}

func TestRebalanceKegs_OtherVendorsUntouched(t *testing.T) {
	other := kegRec("wine", 2, 1, 5)
	other.Vendor = "Vinifera"
	recs := []Recommendation{kegRec("ipa", 1, 2, 5), other}

	out, _ := RebalanceKegs(recs, kegConstraints(10))
	for _, r := range out {
		if r.Vendor == "Vinifera" && r.Quantity != 2 {
			t.Errorf("non-keg vendor quantity changed to %d", r.Quantity)
		}
	}
}
