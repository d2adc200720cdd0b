package flowvia

import (
	"context"
	"time"

	"github.com/flowvia/flowvia/model"
	"github.com/flowvia/flowvia/runtime/execution"
	"github.com/flowvia/flowvia/service/dao/definition"
	"github.com/flowvia/flowvia/service/engine"
	"github.com/flowvia/flowvia/service/event"
	"github.com/flowvia/flowvia/service/state"
)

// Runtime represents a workflow engine runtime
type Runtime struct {
	engine        *engine.Service
	definitionDAO *definition.Service
}

// Engine returns the workflow engine.
func (r *Runtime) Engine() *engine.Service {
	return r.engine
}

// Register validates and registers a workflow definition with the engine.
func (r *Runtime) Register(definition *model.Definition) error {
	return r.engine.Register(definition)
}

// LoadWorkflow loads a YAML workflow definition from the given location and
// registers it with the engine.
func (r *Runtime) LoadWorkflow(ctx context.Context, location string) (*model.Definition, error) {
	loaded, err := r.definitionDAO.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	if err := r.engine.Register(loaded); err != nil {
		return nil, err
	}
	return loaded, nil
}

// DecodeYAMLWorkflow decodes a workflow definition from YAML bytes without
// registering it.
func (r *Runtime) DecodeYAMLWorkflow(data []byte) (*model.Definition, error) {
	return r.definitionDAO.DecodeYAML(data)
}

// UpsertDefinition validates the definition and stores it as YAML at the
// specified location, updating the DAO cache for immediate availability.
func (r *Runtime) UpsertDefinition(ctx context.Context, location string, def *model.Definition) error {
	return r.definitionDAO.Upsert(ctx, location, def)
}

// Execute runs a registered workflow to completion.
func (r *Runtime) Execute(ctx context.Context, workflowID string, input map[string]interface{}, options ...engine.ExecuteOption) (*execution.Result, error) {
	return r.engine.Execute(ctx, workflowID, input, options...)
}

// Terminate requests cooperative termination of a running execution.
func (r *Runtime) Terminate(workflowID, reason string) error {
	return r.engine.Terminate(workflowID, reason)
}

// State returns the persisted state record of a workflow.
func (r *Runtime) State(ctx context.Context, workflowID string) (*state.Record, error) {
	return r.engine.State(ctx, workflowID)
}

// History returns recent lifecycle events, optionally filtered.
func (r *Runtime) History(eventType, workflowID string, limit int) []*event.Event {
	return r.engine.Events().History(eventType, workflowID, limit)
}

// Start starts the runtime.
func (r *Runtime) Start(ctx context.Context) error {
	return nil
}

// Shutdown waits for in-flight executions to drain or for the context to
// expire, whichever comes first.
func (r *Runtime) Shutdown(ctx context.Context) error {
	for len(r.engine.Running()) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}
