package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// InMemoryRunStore implements RunStore for testing and for runs that should
// not be recorded.
type InMemoryRunStore struct {
	mu      sync.RWMutex
	nextID  int64
	runs    map[int64]Run
	samples map[int64][]Sample
}

// NewInMemoryRunStore creates an empty in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{
		nextID:  1,
		runs:    make(map[int64]Run),
		samples: make(map[int64][]Sample),
	}
}

// CreateRun stores run and returns its ID.
func (s *InMemoryRunStore) CreateRun(ctx context.Context, run Run) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.ID = s.nextID
	s.nextID++
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	s.runs[run.ID] = run
	return run.ID, nil
}

// AddSamples appends samples to a run.
func (s *InMemoryRunStore) AddSamples(ctx context.Context, runID int64, samples []Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[runID]; !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	for _, smp := range samples {
		if slices.ContainsFunc(s.samples[runID], func(o Sample) bool { return o.Step == smp.Step }) {
			return fmt.Errorf("run %d already has a sample for step %d", runID, smp.Step)
		}
	}
	s.samples[runID] = append(s.samples[runID], samples...)
	return nil
}

// FinishRun records the final status of a run.
func (s *InMemoryRunStore) FinishRun(ctx context.Context, runID int64, status string, steps int, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	now := time.Now()
	run.Status = status
	run.Steps = steps
	run.FinishedAt = &now
	run.Error = ""
	if runErr != nil {
		run.Error = runErr.Error()
	}
	s.runs[runID] = run
	return nil
}

// GetRun returns a copy of the run.
func (s *InMemoryRunStore) GetRun(ctx context.Context, runID int64) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b Run) int { return int(b.ID - a.ID) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Samples returns the samples of a run ordered by step.
func (s *InMemoryRunStore) Samples(ctx context.Context, runID int64) ([]Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.samples[runID])
	slices.SortFunc(out, func(a, b Sample) int { return a.Step - b.Step })
	return out, nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error { return nil }
