package retention

import (
	"context"
	"testing"
	"time"

	"tapline-hq/cellar/pkg/ordering"
	"tapline-hq/cellar/pkg/storage"
)

func seedRuns(t *testing.T, s storage.Store, ages ...time.Duration) {
	t.Helper()
	now := time.Now().UTC()
	for i, age := range ages {
		run := &ordering.RecommendationRun{
			RunID:     "run_" + string(rune('a'+i)),
			DatasetID: "test",
			CreatedAt: now.Add(-age),
		}
		if err := s.SaveRun(context.Background(), run); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}
}

func countRuns(t *testing.T, s storage.Store) int {
	t.Helper()
	headers, err := s.ListRuns(context.Background(), storage.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	return len(headers)
}

// ============================================================================
// Pruning Tests
// ============================================================================

func TestPruner_PruneByAge(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRuns(t, store, 200*24*time.Hour, 10*24*time.Hour, time.Hour)

	pruner := NewPruner(store, &Config{RetentionDays: 30})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if got := countRuns(t, store); got != 2 {
		t.Errorf("remaining = %d, want 2", got)
	}
}

func TestPruner_PruneByCount(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRuns(t, store, 4*time.Hour, 3*time.Hour, 2*time.Hour, time.Hour)

	pruner := NewPruner(store, &Config{MaxRuns: 2})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	headers, err := store.ListRuns(context.Background(), storage.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(headers) != 2 {
		t.Fatalf("remaining = %d, want the 2 newest", len(headers))
	}
	if headers[0].RunID != "run_d" || headers[1].RunID != "run_c" {
		t.Errorf("kept = %q, %q; want run_d, run_c", headers[0].RunID, headers[1].RunID)
	}
}

func TestPruner_CountUnderLimitIsNoop(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRuns(t, store, time.Hour, 2*time.Hour)

	pruner := NewPruner(store, &Config{MaxRuns: 5})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 || countRuns(t, store) != 2 {
		t.Errorf("deleted = %d, remaining = %d, want untouched", deleted, countRuns(t, store))
	}
}

func TestPruner_ZeroConfigKeepsEverything(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRuns(t, store, 365*24*time.Hour)

	pruner := NewPruner(store, &Config{})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 0 || countRuns(t, store) != 1 {
		t.Error("zeroed retention config must not delete anything")
	}
}

func TestPruner_BothPhases(t *testing.T) {
	store := storage.NewMemoryStore()
	seedRuns(t, store, 200*24*time.Hour, 3*time.Hour, 2*time.Hour, time.Hour)

	pruner := NewPruner(store, &Config{RetentionDays: 30, MaxRuns: 2})
	deleted, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	// One by age, one more by count.
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if got := countRuns(t, store); got != 2 {
		t.Errorf("remaining = %d, want 2", got)
	}
}

// ============================================================================
// Scheduler Tests
// ============================================================================

func TestScheduler_StartStop(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStore(), &Config{RetentionDays: 30, PruneSchedule: "0 3 * * *"})
	scheduler := NewScheduler(pruner)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !scheduler.IsRunning() {
		t.Error("scheduler not running after Start")
	}
	if scheduler.NextRun() == nil {
		t.Error("NextRun() = nil, want a scheduled time")
	}

	scheduler.Stop()
	if scheduler.IsRunning() {
		t.Error("scheduler still running after Stop")
	}
}

func TestScheduler_EmptyScheduleIsNoop(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStore(), &Config{})
	scheduler := NewScheduler(pruner)

	if err := scheduler.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if scheduler.IsRunning() {
		t.Error("scheduler should stay idle without a schedule")
	}
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStore(), &Config{PruneSchedule: "not a cron line"})
	scheduler := NewScheduler(pruner)

	if err := scheduler.Start(context.Background()); err == nil {
		t.Error("expected an error for an invalid cron expression")
	}
}

func TestScheduler_ContextCancelStops(t *testing.T) {
	pruner := NewPruner(storage.NewMemoryStore(), &Config{PruneSchedule: "0 3 * * *"})
	scheduler := NewScheduler(pruner)

	ctx, cancel := context.WithCancel(context.Background())
	if err := scheduler.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for scheduler.IsRunning() {
		select {
		case <-deadline:
			t.Fatal("scheduler did not stop after context cancellation")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
