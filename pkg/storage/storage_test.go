package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/ordering/policy"
)

// storeBackends runs a subtest against every Store implementation so the
// SQLite and in-memory backends stay behaviorally identical.
func storeBackends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) {
		cfg := DefaultSQLiteConfig()
		cfg.Path = filepath.Join(t.TempDir(), "runs.db")
		s, err := NewSQLiteStore(cfg)
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
}

func sampleRun(id string, createdAt time.Time) *ordering.RecommendationRun {
	return &ordering.RecommendationRun{
		RunID:     id,
		DatasetID: "week-35",
		CreatedAt: createdAt,
		Targets:   policy.Targets{DefaultWeeks: 4},
		Constraints: ordering.Constraints{
			MaxTotalSpend: 5000,
		},
		Recommendations: []ordering.Recommendation{
			{
				ItemID: "ipa", Name: "House IPA", Category: "draft", Vendor: "Crescent",
				OnHand: 2, WeeksOnHand: 0.5, AvgWeeklyUsage: 4,
				Quantity: 14, UnitCost: 115, TotalCost: 1610,
				Reason: policy.ReasonStockoutRisk, ReasonText: "below 1 week of supply (0.5 weeks on hand)",
				Confidence:  policy.ConfidenceHigh,
				Adjustments: []string{"keg rebalance: +2"},
			},
			{
				ItemID: "gin", Name: "Well Gin", Category: "spirits", Vendor: "Archway",
				OnHand: 6, WeeksOnHand: 24, AvgWeeklyUsage: 0.25,
				Quantity: 0, UnitCost: 18,
				Reason: policy.ReasonOverstock, ReasonText: "overstocked: 24.0 weeks on hand (target 4.0)",
				Confidence: policy.ConfidenceLow,
				Warnings:   []string{"negative usage detected; verify inventory counts"},
			},
		},
		Summary: ordering.RunSummary{
			TotalItems: 1,
			TotalSpend: 1610,
			ByVendor:   map[string]ordering.VendorSummary{"Crescent": {Items: 1, Spend: 1610}},
			ByCategory: map[string]int{"draft": 1},
			ByReason:   map[string]int{"STOCKOUT_RISK": 1, "OVERSTOCK": 1},
		},
		Warnings: []ordering.Warning{{ItemID: "gin", Message: "negative usage detected; verify inventory counts"}},
		Recounts: []ordering.Recount{{ItemID: "gin", OnHand: 6, Issue: "negative usage"}},
	}
}

// ============================================================================
// Run Round-Trip Tests
// ============================================================================

func TestStore_SaveAndGetRun(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		run := sampleRun("run_abc123", time.Now().UTC().Truncate(time.Second))

		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}

		got, err := s.GetRun(ctx, "run_abc123")
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if got.DatasetID != "week-35" {
			t.Errorf("DatasetID = %q", got.DatasetID)
		}
		if got.Targets.DefaultWeeks != 4 {
			t.Errorf("Targets.DefaultWeeks = %g, want 4", got.Targets.DefaultWeeks)
		}
		if got.Constraints.MaxTotalSpend != 5000 {
			t.Errorf("Constraints.MaxTotalSpend = %g", got.Constraints.MaxTotalSpend)
		}
		if len(got.Recommendations) != 2 {
			t.Fatalf("len(Recommendations) = %d, want 2", len(got.Recommendations))
		}

		var ipa ordering.Recommendation
		for _, r := range got.Recommendations {
			if r.ItemID == "ipa" {
				ipa = r
			}
		}
		if ipa.Quantity != 14 || ipa.TotalCost != 1610 {
			t.Errorf("ipa = qty %d cost %.2f", ipa.Quantity, ipa.TotalCost)
		}
		if ipa.Reason != policy.ReasonStockoutRisk || ipa.Confidence != policy.ConfidenceHigh {
			t.Errorf("ipa reason/confidence = %q/%q", ipa.Reason, ipa.Confidence)
		}
		if len(ipa.Adjustments) != 1 || ipa.Adjustments[0] != "keg rebalance: +2" {
			t.Errorf("ipa.Adjustments = %v", ipa.Adjustments)
		}

		if got.Summary.TotalSpend != 1610 {
			t.Errorf("Summary.TotalSpend = %.2f", got.Summary.TotalSpend)
		}
		if len(got.Warnings) != 1 || got.Warnings[0].ItemID != "gin" {
			t.Errorf("Warnings = %v", got.Warnings)
		}
		if len(got.Recounts) != 1 || got.Recounts[0].Issue != "negative usage" {
			t.Errorf("Recounts = %v", got.Recounts)
		}
	})
}

func TestStore_SaveRunReplaces(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		run := sampleRun("run_abc123", time.Now().UTC())
		if err := s.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}

		run2 := sampleRun("run_abc123", run.CreatedAt)
		run2.Recommendations = run2.Recommendations[:1]
		if err := s.SaveRun(ctx, run2); err != nil {
			t.Fatalf("second SaveRun() error = %v", err)
		}

		got, err := s.GetRun(ctx, "run_abc123")
		if err != nil {
			t.Fatalf("GetRun() error = %v", err)
		}
		if len(got.Recommendations) != 1 {
			t.Errorf("len(Recommendations) = %d, want 1 after replace", len(got.Recommendations))
		}
	})
}

func TestStore_GetRunNotFound(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		if _, err := s.GetRun(context.Background(), "run_missing"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("GetRun(missing) error = %v, want ErrRunNotFound", err)
		}
	})
}

// ============================================================================
// Listing Tests
// ============================================================================

func TestStore_ListRuns(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)
		for i, id := range []string{"run_old", "run_mid", "run_new"} {
			if err := s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
				t.Fatalf("SaveRun(%s) error = %v", id, err)
			}
		}

		headers, err := s.ListRuns(ctx, RunFilter{})
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(headers) != 3 {
			t.Fatalf("len = %d, want 3", len(headers))
		}
		if headers[0].RunID != "run_new" || headers[2].RunID != "run_old" {
			t.Errorf("order = %q..%q, want newest first", headers[0].RunID, headers[2].RunID)
		}
		if headers[0].TotalItems != 1 || headers[0].TotalSpend != 1610 {
			t.Errorf("header = %+v", headers[0])
		}
	})
}

func TestStore_ListRunsFiltered(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)
		for i, id := range []string{"run_a", "run_b", "run_c"} {
			if err := s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
				t.Fatalf("SaveRun(%s) error = %v", id, err)
			}
		}

		headers, err := s.ListRuns(ctx, RunFilter{Since: base.Add(30 * time.Minute)})
		if err != nil {
			t.Fatalf("ListRuns(since) error = %v", err)
		}
		if len(headers) != 2 {
			t.Errorf("since filter: len = %d, want 2", len(headers))
		}

		headers, err = s.ListRuns(ctx, RunFilter{Limit: 1})
		if err != nil {
			t.Fatalf("ListRuns(limit) error = %v", err)
		}
		if len(headers) != 1 || headers[0].RunID != "run_c" {
			t.Errorf("limit filter: %v, want only run_c", headers)
		}
	})
}

// ============================================================================
// Approval Tests
// ============================================================================

func TestStore_SaveAndGetApprovals(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.SaveRun(ctx, sampleRun("run_abc123", time.Now().UTC())); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}

		override := 10
		approvals := []Approval{
			{RunID: "run_abc123", ItemID: "ipa", Approved: true, QuantityOverride: &override},
			{RunID: "run_abc123", ItemID: "gin", Approved: false, Note: "hold until recount"},
		}
		if err := s.SaveApprovals(ctx, "run_abc123", approvals); err != nil {
			t.Fatalf("SaveApprovals() error = %v", err)
		}

		got, err := s.GetApprovals(ctx, "run_abc123")
		if err != nil {
			t.Fatalf("GetApprovals() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		// Ordered by item ID.
		if got[0].ItemID != "gin" || got[1].ItemID != "ipa" {
			t.Errorf("order = %q, %q", got[0].ItemID, got[1].ItemID)
		}
		if got[0].Approved || got[0].Note != "hold until recount" {
			t.Errorf("gin approval = %+v", got[0])
		}
		if got[1].QuantityOverride == nil || *got[1].QuantityOverride != 10 {
			t.Errorf("ipa override = %v, want 10", got[1].QuantityOverride)
		}
		if got[0].DecidedAt.IsZero() {
			t.Error("DecidedAt not defaulted")
		}
	})
}

func TestStore_SaveApprovalsUnknownRun(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		err := s.SaveApprovals(context.Background(), "run_missing", []Approval{{ItemID: "ipa", Approved: true}})
		if !errors.Is(err, ErrRunNotFound) {
			t.Errorf("error = %v, want ErrRunNotFound", err)
		}
	})
}

func TestStore_GetApprovalsEmpty(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.SaveRun(ctx, sampleRun("run_abc123", time.Now().UTC())); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		got, err := s.GetApprovals(ctx, "run_abc123")
		if err != nil {
			t.Fatalf("GetApprovals() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("got = %v, want empty non-nil slice", got)
		}
	})
}

// ============================================================================
// Retention Tests
// ============================================================================

func TestStore_DeleteRunsBefore(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)
		if err := s.SaveRun(ctx, sampleRun("run_old", base.Add(-48*time.Hour))); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		if err := s.SaveRun(ctx, sampleRun("run_new", base)); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}

		deleted, err := s.DeleteRunsBefore(ctx, base.Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("DeleteRunsBefore() error = %v", err)
		}
		if deleted != 1 {
			t.Errorf("deleted = %d, want 1", deleted)
		}
		if _, err := s.GetRun(ctx, "run_old"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("old run still present: %v", err)
		}
		if _, err := s.GetRun(ctx, "run_new"); err != nil {
			t.Errorf("new run lost: %v", err)
		}
	})
}

func TestStore_DeleteRun(t *testing.T) {
	storeBackends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)
		if err := s.SaveRun(ctx, sampleRun("run_keep", base)); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		if err := s.SaveRun(ctx, sampleRun("run_gone", base)); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		if err := s.SaveApprovals(ctx, "run_gone", []Approval{
			{ItemID: "ipa-pint", Approved: true},
		}); err != nil {
			t.Fatalf("SaveApprovals() error = %v", err)
		}

		if err := s.DeleteRun(ctx, "run_gone"); err != nil {
			t.Fatalf("DeleteRun() error = %v", err)
		}
		if _, err := s.GetRun(ctx, "run_gone"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("deleted run still present: %v", err)
		}
		got, err := s.GetApprovals(ctx, "run_gone")
		if err != nil {
			t.Fatalf("GetApprovals() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("approvals survived deletion: %v", got)
		}
		if _, err := s.GetRun(ctx, "run_keep"); err != nil {
			t.Errorf("unrelated run lost: %v", err)
		}

		if err := s.DeleteRun(ctx, "run_gone"); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("second delete error = %v, want ErrRunNotFound", err)
		}
	})
}

func TestSQLiteStore_NilRun(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "runs.db")
	s, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()

	if err := s.SaveRun(context.Background(), nil); err == nil {
		t.Error("SaveRun(nil) should fail")
	}
	if err := s.SaveRun(context.Background(), &ordering.RecommendationRun{}); err == nil {
		t.Error("SaveRun with empty run id should fail")
	}
}
