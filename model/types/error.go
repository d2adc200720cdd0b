package types

import (
	"fmt"
	"strings"
	"time"
)

// Error kinds used by retry policies to decide whether a failed step may be
// re-attempted.
const (
	KindTimeout   = "timeout"
	KindExecution = "execution"
)

// ValidationError reports one or more structural problems with a workflow
// definition. A definition that fails validation is never partially
// registered.
type ValidationError struct {
	Workflow string
	Issues   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid workflow %q: %s", e.Workflow, strings.Join(e.Issues, "; "))
}

// NewValidationError creates a validation error for the supplied workflow.
func NewValidationError(workflow string, issues ...string) *ValidationError {
	return &ValidationError{Workflow: workflow, Issues: issues}
}

// DuplicateDefinitionError indicates that a workflow id is already registered.
type DuplicateDefinitionError struct {
	ID string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("workflow %q is already registered", e.ID)
}

// NotFoundError indicates an unknown workflow id or execution.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ConcurrencyLimitError is returned when the engine is already running the
// maximum number of concurrent workflow executions. It is caller-retryable.
type ConcurrencyLimitError struct {
	Limit int
}

func (e *ConcurrencyLimitError) Error() string {
	return fmt.Sprintf("concurrency limit of %d running workflows reached", e.Limit)
}

// MissingInputError indicates that a step's required inputs could not be
// resolved from the execution context. It is fatal for the execution.
type MissingInputError struct {
	Step    string
	Missing []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("step %q is missing required inputs: %s", e.Step, strings.Join(e.Missing, ", "))
}

// StepTimeoutError indicates that a step did not finish within its timeout.
type StepTimeoutError struct {
	Step    string
	Timeout time.Duration
}

func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("step %q timed out after %s", e.Step, e.Timeout)
}

// StepExecutionError wraps a failure returned by the executor bound to a step.
type StepExecutionError struct {
	Step string
	Err  error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// StateError indicates an invalid state mutation, such as progress outside
// [0,1] or an illegal status transition.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string { return e.Msg }

// NewStateError creates a state error with a formatted message.
func NewStateError(format string, args ...interface{}) *StateError {
	return &StateError{Msg: fmt.Sprintf(format, args...)}
}

// ErrorKind maps a step failure to the kind string matched against a step's
// retryable kinds. Non-step errors map to an empty string and are never
// retried.
func ErrorKind(err error) string {
	switch err.(type) {
	case *StepTimeoutError:
		return KindTimeout
	case *StepExecutionError:
		return KindExecution
	}
	return ""
}
