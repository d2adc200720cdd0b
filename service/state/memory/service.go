package memory

import (
	"context"
	"sync"
	"time"

	"github.com/flowvia/flowvia/internal/clock"
	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/service/state"
)

// Service is the in-memory state store. A single mutex guards the record map
// so that every read-modify-write sequence on a record is serialized.
type Service struct {
	mu      sync.Mutex
	records map[string]*state.Record
}

// Ensure Service implements state.Store
var _ state.Store = (*Service)(nil)

// New creates a new in-memory state store
func New() *Service {
	return &Service{records: make(map[string]*state.Record)}
}

// Save stores or replaces a record. The record is cloned on the way in so
// that callers cannot mutate stored state behind the lock.
func (s *Service) Save(_ context.Context, workflowID string, record *state.Record) error {
	if record == nil {
		return types.NewStateError("cannot save nil record for workflow %q", workflowID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := record.Clone()
	stored.WorkflowID = workflowID
	stored.Normalize()
	if existing, ok := s.records[workflowID]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	stored.Touch()
	s.records[workflowID] = stored
	return nil
}

// Get returns a copy of the record for a workflow.
func (s *Service) Get(_ context.Context, workflowID string) (*state.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[workflowID]
	if !ok {
		return nil, &types.NotFoundError{Kind: "workflow state", ID: workflowID}
	}
	return record.Clone(), nil
}

// Delete removes the record for a workflow.
func (s *Service) Delete(_ context.Context, workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, workflowID)
	return nil
}

// UpdateProgress sets the progress value and optionally the current step.
// Values outside [0,1] are rejected and leave the record unchanged.
func (s *Service) UpdateProgress(_ context.Context, workflowID string, progress float64, currentStep string) error {
	if progress < 0 || progress > 1 {
		return types.NewStateError("progress %v out of range [0,1] for workflow %q", progress, workflowID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[workflowID]
	if !ok {
		return &types.NotFoundError{Kind: "workflow state", ID: workflowID}
	}
	record.Progress = progress
	if currentStep != "" {
		record.CurrentStep = currentStep
	}
	record.Touch()
	return nil
}

// MarkStepCompleted records a completed step. Calling it twice for the same
// step leaves the completed list with a single entry; the step is always
// removed from the remaining list.
func (s *Service) MarkStepCompleted(_ context.Context, workflowID, step string, output interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[workflowID]
	if !ok {
		return &types.NotFoundError{Kind: "workflow state", ID: workflowID}
	}
	if !record.HasCompleted(step) {
		record.StepsCompleted = append(record.StepsCompleted, step)
	}
	remaining := record.StepsRemaining[:0]
	for _, name := range record.StepsRemaining {
		if name != step {
			remaining = append(remaining, name)
		}
	}
	record.StepsRemaining = remaining
	if output != nil {
		record.Data[state.StepOutputKey(step)] = output
	}
	record.Touch()
	return nil
}

// CleanupExpired removes every record whose age exceeds maxAge; a
// non-positive maxAge removes everything.
func (s *Service) CleanupExpired(_ context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := clock.Now()
	removed := 0
	for id, record := range s.records {
		if maxAge <= 0 || now.Sub(record.CreatedAt) > maxAge {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// List returns copies of all stored records.
func (s *Service) List(_ context.Context) ([]*state.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*state.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	return out, nil
}
