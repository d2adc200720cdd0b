package execution

import (
	"sync"
	"time"

	"github.com/flowvia/flowvia/internal/clock"
	"github.com/flowvia/flowvia/internal/idgen"
	"github.com/flowvia/flowvia/model/types"
)

// Context holds the mutable per-run state of one workflow execution. It is
// owned exclusively by the engine for the duration of the run; every
// mutation goes through its methods, which serialize access with a single
// lock so that concurrently dispatched steps cannot race on the shared data
// map.
type Context struct {
	WorkflowID  string                 `json:"workflowId"`
	ExecutionID string                 `json:"executionId"`
	Status      Status                 `json:"status"`
	StartedAt   time.Time              `json:"startedAt"`
	EndedAt     *time.Time             `json:"endedAt,omitempty"`
	CurrentStep string                 `json:"currentStep,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Err         string                 `json:"error,omitempty"`

	data map[string]interface{}
	mu   sync.RWMutex
}

// NewContext creates an execution context seeded with the caller-supplied
// input data.
func NewContext(workflowID string, input map[string]interface{}) *Context {
	data := make(map[string]interface{}, len(input))
	for k, v := range input {
		data[k] = v
	}
	return &Context{
		WorkflowID:  workflowID,
		ExecutionID: workflowID + "/" + idgen.New(),
		Status:      StatusPending,
		StartedAt:   clock.Now(),
		Metadata:    make(map[string]interface{}),
		data:        data,
	}
}

// Get retrieves a data value by key.
func (c *Context) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.data[key]
	return value, ok
}

// Set adds or replaces a single data value.
func (c *Context) Set(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// MergeOutputs copies a completed step's outputs into the shared data map.
// The merge itself is serialized even when step execution is concurrent.
func (c *Context) MergeOutputs(outputs map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range outputs {
		c.data[k] = v
	}
}

// ResolveInputs returns the subset of the data map named by keys. The second
// return value lists the requested keys that are absent.
func (c *Context) ResolveInputs(keys []string) (map[string]interface{}, []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resolved := make(map[string]interface{}, len(keys))
	var missing []string
	for _, key := range keys {
		if value, ok := c.data[key]; ok {
			resolved[key] = value
		} else {
			missing = append(missing, key)
		}
	}
	return resolved, missing
}

// Snapshot returns a copy of the data map for read-only inspection.
func (c *Context) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// SetStatus moves the execution to the next status, enforcing the
// pending -> running -> {completed|failed|terminated} state machine.
// Terminal statuses record the end time.
func (c *Context) SetStatus(next Status) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.Status.CanTransition(next) {
		return types.NewStateError("invalid status transition %s -> %s for execution %s", c.Status, next, c.ExecutionID)
	}
	c.Status = next
	if next.IsTerminal() {
		now := clock.Now()
		c.EndedAt = &now
	}
	return nil
}

// GetStatus returns the current status.
func (c *Context) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Status
}

// SetCurrentStep records the step the execution is positioned at.
func (c *Context) SetCurrentStep(step string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentStep = step
}

// Fail records the first fatal cause; later calls are no-ops so that the
// original error is preserved.
func (c *Context) Fail(err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err == "" {
		c.Err = err.Error()
	}
}
