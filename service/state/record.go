package state

import (
	"time"

	"github.com/flowvia/flowvia/internal/clock"
	"github.com/flowvia/flowvia/runtime/execution"
)

// Record is the persisted progress of one workflow execution. The shape is
// part of the store contract and must survive a backend swap unchanged.
type Record struct {
	WorkflowID     string                 `json:"workflow_id"`
	ExecutionID    string                 `json:"execution_id"`
	Status         execution.Status       `json:"status"`
	CurrentStep    string                 `json:"current_step,omitempty"`
	StepsCompleted []string               `json:"steps_completed"`
	StepsRemaining []string               `json:"steps_remaining"`
	Progress       float64                `json:"progress"`
	Data           map[string]interface{} `json:"data"`
	Error          string                 `json:"error,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// NewRecord creates a record for a freshly started execution with every step
// still remaining.
func NewRecord(workflowID, executionID string, steps []string) *Record {
	now := clock.Now()
	return &Record{
		WorkflowID:     workflowID,
		ExecutionID:    executionID,
		Status:         execution.StatusPending,
		StepsCompleted: []string{},
		StepsRemaining: append([]string(nil), steps...),
		Data:           make(map[string]interface{}),
		CreatedAt:      now,
		UpdatedAt:      now,
		Metadata:       make(map[string]interface{}),
	}
}

// HasCompleted reports whether the step is already on the completed list.
func (r *Record) HasCompleted(step string) bool {
	for _, name := range r.StepsCompleted {
		if name == step {
			return true
		}
	}
	return false
}

// Normalize allocates any nil collection so that a stored record is always
// safe to mutate. Save accepts bare record literals; stores normalize on the
// way in.
func (r *Record) Normalize() {
	if r.StepsCompleted == nil {
		r.StepsCompleted = []string{}
	}
	if r.StepsRemaining == nil {
		r.StepsRemaining = []string{}
	}
	if r.Data == nil {
		r.Data = make(map[string]interface{})
	}
	if r.Metadata == nil {
		r.Metadata = make(map[string]interface{})
	}
}

// Touch bumps UpdatedAt, keeping it monotonically non-decreasing.
func (r *Record) Touch() {
	if now := clock.Now(); now.After(r.UpdatedAt) {
		r.UpdatedAt = now
	}
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.StepsCompleted = append([]string(nil), r.StepsCompleted...)
	clone.StepsRemaining = append([]string(nil), r.StepsRemaining...)
	if r.Data != nil {
		clone.Data = make(map[string]interface{}, len(r.Data))
		for k, v := range r.Data {
			clone.Data[k] = v
		}
	}
	if r.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
