package execution

import (
	"time"
)

// StepResult captures the outcome of one step within an execution.
type StepResult struct {
	Step      string                 `json:"step"`
	Output    map[string]interface{} `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Attempts  int                    `json:"attempts"`
	StartedAt time.Time              `json:"startedAt"`
	Duration  time.Duration          `json:"duration"`
}

// Result is the immutable outcome of a finished workflow execution. A failed
// result always carries Success=false, a non-empty error naming the first
// fatal cause and the step results of whatever completed before the failure.
type Result struct {
	WorkflowID  string                 `json:"workflowId"`
	ExecutionID string                 `json:"executionId"`
	Status      Status                 `json:"status"`
	Success     bool                   `json:"success"`
	StepResults map[string]*StepResult `json:"stepResults,omitempty"`
	StartedAt   time.Time              `json:"startedAt"`
	EndedAt     time.Time              `json:"endedAt"`
	Duration    time.Duration          `json:"duration"`
	Errors      []string               `json:"errors,omitempty"`
	Warnings    []string               `json:"warnings,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// NewResult builds a result from a terminated execution context and the
// per-step results accumulated by the engine.
func NewResult(ctx *Context, steps map[string]*StepResult, warnings []string) *Result {
	ended := ctx.StartedAt
	if ctx.EndedAt != nil {
		ended = *ctx.EndedAt
	}
	status := ctx.GetStatus()
	result := &Result{
		WorkflowID:  ctx.WorkflowID,
		ExecutionID: ctx.ExecutionID,
		Status:      status,
		Success:     status == StatusCompleted,
		StepResults: steps,
		StartedAt:   ctx.StartedAt,
		EndedAt:     ended,
		Duration:    ended.Sub(ctx.StartedAt),
		Warnings:    warnings,
		Metadata:    ctx.Metadata,
	}
	if ctx.Err != "" {
		result.Errors = append(result.Errors, ctx.Err)
	}
	return result
}

// FirstError returns the first recorded error or an empty string.
func (r *Result) FirstError() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}
