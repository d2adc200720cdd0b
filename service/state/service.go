// Package state persists per-execution workflow progress. Implementations
// must serialize every read-modify-write on a record so that concurrent step
// completions cannot lose updates.
package state

import (
	"context"
	"time"
)

// StepOutputKey returns the data key a completed step's output is stored
// under.
func StepOutputKey(step string) string {
	return "steps." + step + ".output"
}

// Store is the state persistence contract consumed by the engine.
type Store interface {
	// Save stores or replaces the record for a workflow (whole-record
	// replace semantics).
	Save(ctx context.Context, workflowID string, record *Record) error

	// Get returns the record for a workflow, or *types.NotFoundError.
	Get(ctx context.Context, workflowID string) (*Record, error)

	// Delete removes the record for a workflow.
	Delete(ctx context.Context, workflowID string) error

	// UpdateProgress sets progress (rejecting values outside [0,1] with a
	// *types.StateError) and optionally the current step.
	UpdateProgress(ctx context.Context, workflowID string, progress float64, currentStep string) error

	// MarkStepCompleted idempotently appends the step to the completed list,
	// removes it from the remaining list and stores its output under a
	// step-namespaced data key.
	MarkStepCompleted(ctx context.Context, workflowID, step string, output interface{}) error

	// CleanupExpired removes every record whose age exceeds maxAge and
	// returns how many were removed.
	CleanupExpired(ctx context.Context, maxAge time.Duration) (int, error)

	// List returns all stored records.
	List(ctx context.Context) ([]*Record, error)
}
