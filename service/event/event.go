package event

import (
	"time"

	"github.com/flowvia/flowvia/internal/clock"
)

// Lifecycle event types published by the engine.
const (
	TypeWorkflowStarted    = "workflow.started"
	TypeWorkflowCompleted  = "workflow.completed"
	TypeWorkflowFailed     = "workflow.failed"
	TypeWorkflowTerminated = "workflow.terminated"

	TypeStepScheduled = "step.scheduled"
	TypeStepCompleted = "step.completed"
	TypeStepFailed    = "step.failed"
)

// Event is a single lifecycle notification. History keeps events as-is, so
// payloads should stay small and serialisable.
type Event struct {
	Type       string                 `json:"type"`
	WorkflowID string                 `json:"workflowId,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType, workflowID string, data map[string]interface{}) *Event {
	return &Event{
		Type:       eventType,
		WorkflowID: workflowID,
		Timestamp:  clock.Now(),
		Data:       data,
	}
}
