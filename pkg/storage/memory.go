package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"tapline-hq/cellar/pkg/ordering"
)

// MemoryStore implements Store using in-memory maps. It is intended for
// testing and should not be used in production.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[string]*ordering.RecommendationRun
	approvals map[string][]Approval
}

// NewMemoryStore creates a new in-memory run store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[string]*ordering.RecommendationRun),
		approvals: make(map[string][]Approval),
	}
}

// SaveRun persists a run to memory.
func (s *MemoryStore) SaveRun(ctx context.Context, run *ordering.RecommendationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid mutation by the caller
	runCopy := *run
	runCopy.Recommendations = append([]ordering.Recommendation(nil), run.Recommendations...)
	runCopy.Warnings = append([]ordering.Warning(nil), run.Warnings...)
	runCopy.Recounts = append([]ordering.Recount(nil), run.Recounts...)
	s.runs[run.RunID] = &runCopy

	return nil
}

// GetRun retrieves a run by ID.
func (s *MemoryStore) GetRun(ctx context.Context, runID string) (*ordering.RecommendationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	runCopy := *run
	return &runCopy, nil
}

// ListRuns returns run headers matching the filter, newest first.
func (s *MemoryStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunHeader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var headers []RunHeader
	for _, run := range s.runs {
		if !filter.Since.IsZero() && run.CreatedAt.Before(filter.Since) {
			continue
		}
		headers = append(headers, RunHeader{
			RunID:      run.RunID,
			DatasetID:  run.DatasetID,
			CreatedAt:  run.CreatedAt,
			TotalItems: run.Summary.TotalItems,
			TotalSpend: run.Summary.TotalSpend,
		})
	}

	sort.Slice(headers, func(i, j int) bool {
		if !headers[i].CreatedAt.Equal(headers[j].CreatedAt) {
			return headers[i].CreatedAt.After(headers[j].CreatedAt)
		}
		return headers[i].RunID > headers[j].RunID
	})

	if filter.Limit > 0 && len(headers) > filter.Limit {
		headers = headers[:filter.Limit]
	}
	return headers, nil
}

// SaveApprovals replaces the approvals for a run.
func (s *MemoryStore) SaveApprovals(ctx context.Context, runID string, approvals []Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return ErrRunNotFound
	}

	copied := make([]Approval, len(approvals))
	copy(copied, approvals)
	for i := range copied {
		if copied[i].DecidedAt.IsZero() {
			copied[i].DecidedAt = time.Now()
		}
	}
	sort.Slice(copied, func(i, j int) bool { return copied[i].ItemID < copied[j].ItemID })
	s.approvals[runID] = copied
	return nil
}

// GetApprovals returns the approvals recorded for a run.
func (s *MemoryStore) GetApprovals(ctx context.Context, runID string) ([]Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	approvals := s.approvals[runID]
	out := make([]Approval, len(approvals))
	copy(out, approvals)
	return out, nil
}

// DeleteRun removes a single run and its approvals.
func (s *MemoryStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, runID)
	delete(s.approvals, runID)
	return nil
}

// DeleteRunsBefore removes runs created before the cutoff.
func (s *MemoryStore) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for id, run := range s.runs {
		if run.CreatedAt.Before(cutoff) {
			delete(s.runs, id)
			delete(s.approvals, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
