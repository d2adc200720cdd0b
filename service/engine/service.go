// Package engine runs registered workflow definitions: it schedules steps in
// dependency order, resolves their inputs from the execution context,
// dispatches agents with timeout and retry handling and keeps the state
// store and event bus in sync with execution progress.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flowvia/flowvia/internal/clock"
	"github.com/flowvia/flowvia/model"
	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/progress"
	"github.com/flowvia/flowvia/runtime/execution"
	"github.com/flowvia/flowvia/service/agent"
	"github.com/flowvia/flowvia/service/event"
	"github.com/flowvia/flowvia/service/state"
	"github.com/flowvia/flowvia/service/state/memory"
	"github.com/flowvia/flowvia/tracing"
)

// Service is the workflow engine.
type Service struct {
	config      Config
	mu          sync.RWMutex
	definitions map[string]*model.Definition
	running     map[string]*run

	registry   *agent.Registry
	events     *event.Service
	store      state.Store
	slots      chan struct{}
	onProgress func(progress.Progress)
}

// run tracks one in-flight execution so that Terminate can reach it.
type run struct {
	executionID string
	cancel      context.CancelFunc
	terminated  atomic.Bool
	reason      atomic.Value // string
}

func (r *run) terminate(reason string) {
	r.reason.Store(reason)
	r.terminated.Store(true)
	r.cancel()
}

func (r *run) terminationReason() string {
	if reason, ok := r.reason.Load().(string); ok {
		return reason
	}
	return ""
}

// New creates a new engine service
func New(options ...Option) *Service {
	s := &Service{
		config:      DefaultConfig(),
		definitions: make(map[string]*model.Definition),
		running:     make(map[string]*run),
		registry:    agent.NewRegistry(),
		events:      event.New(),
		store:       memory.New(),
	}
	for _, option := range options {
		option(s)
	}
	s.slots = make(chan struct{}, s.config.MaxConcurrentWorkflows)
	return s
}

// Registry returns the agent registry the engine dispatches against.
func (s *Service) Registry() *agent.Registry { return s.registry }

// Events returns the engine's event bus.
func (s *Service) Events() *event.Service { return s.events }

// Store returns the engine's state store.
func (s *Service) Store() state.Store { return s.store }

// Register validates and stores a workflow definition. The definition is
// sealed on success; a failed registration leaves the engine unchanged.
func (s *Service) Register(definition *model.Definition) error {
	if definition == nil || definition.ID == "" {
		return types.NewStateError("workflow definition requires an id")
	}
	if err := definition.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.definitions[definition.ID]; ok {
		return &types.DuplicateDefinitionError{ID: definition.ID}
	}
	definition.Seal()
	s.definitions[definition.ID] = definition
	return nil
}

// Definition returns the registered definition for a workflow id, or nil.
func (s *Service) Definition(workflowID string) *model.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.definitions[workflowID]
}

// Definitions returns the ids of every registered workflow.
func (s *Service) Definitions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.definitions))
	for id := range s.definitions {
		ids = append(ids, id)
	}
	return ids
}

// Running returns the ids of workflows with an in-flight execution.
func (s *Service) Running() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	return ids
}

// Execute runs a registered workflow to completion with the supplied initial
// input and returns the execution result. A fresh execution context is built
// unless the caller supplies one via WithExecutionContext. When the engine is
// already running MaxConcurrentWorkflows executions it fails fast with a
// *types.ConcurrencyLimitError so the caller can retry once a slot frees.
func (s *Service) Execute(ctx context.Context, workflowID string, input map[string]interface{}, options ...ExecuteOption) (*execution.Result, error) {
	definition := s.Definition(workflowID)
	if definition == nil {
		return nil, &types.NotFoundError{Kind: "workflow", ID: workflowID}
	}

	select {
	case s.slots <- struct{}{}:
	default:
		return nil, &types.ConcurrencyLimitError{Limit: s.config.MaxConcurrentWorkflows}
	}
	defer func() { <-s.slots }()

	order, err := definition.ExecutionOrder()
	if err != nil {
		return nil, err
	}

	ectx := newExecuteOptions(options).executionContext
	if ectx == nil {
		ectx = execution.NewContext(workflowID, input)
	} else {
		if ectx.WorkflowID != workflowID {
			return nil, types.NewStateError("execution context belongs to workflow %q, not %q", ectx.WorkflowID, workflowID)
		}
		if len(input) > 0 {
			ectx.MergeOutputs(input)
		}
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if definition.MaxExecutionTime != "" {
		if deadline, err := time.ParseDuration(definition.MaxExecutionTime); err == nil {
			runCtx, cancel = context.WithTimeout(runCtx, deadline)
			defer cancel()
		}
	}
	handle := &run{executionID: ectx.ExecutionID, cancel: cancel}
	s.trackRun(workflowID, handle)
	defer s.untrackRun(workflowID, handle)

	runCtx, tracker := progress.WithNewTracker(runCtx, ectx.ExecutionID, workflowID, s.onProgress)
	tracker.Update(progress.Delta{Total: len(order)})

	runCtx, span := tracing.StartSpan(runCtx, "engine.execute")
	span.WithAttributes(map[string]string{
		"workflow.id":  workflowID,
		"execution.id": ectx.ExecutionID,
	})

	record := state.NewRecord(workflowID, ectx.ExecutionID, order)
	record.Status = execution.StatusRunning
	if err := s.store.Save(runCtx, workflowID, record); err != nil {
		tracing.EndSpan(span, err)
		return nil, fmt.Errorf("failed to save execution state for %v: %w", workflowID, err)
	}
	if err := ectx.SetStatus(execution.StatusRunning); err != nil {
		tracing.EndSpan(span, err)
		return nil, err
	}
	s.events.Publish(runCtx, event.NewEvent(event.TypeWorkflowStarted, workflowID, map[string]interface{}{
		"executionId": ectx.ExecutionID,
	}))

	results := &resultSet{results: make(map[string]*execution.StepResult, len(order))}
	var runErr error
	switch definition.Strategy {
	case model.StrategyParallel:
		runErr = s.runFrontiers(runCtx, definition, ectx, handle, results, false)
	case model.StrategyAdaptive:
		runErr = s.runFrontiers(runCtx, definition, ectx, handle, results, true)
	default:
		runErr = s.runSequential(runCtx, definition, order, ectx, handle, results)
	}

	status := execution.StatusCompleted
	switch {
	case handle.terminated.Load():
		status = execution.StatusTerminated
		runErr = types.NewStateError("execution %s terminated: %s", ectx.ExecutionID, handle.terminationReason())
	case runErr != nil:
		status = execution.StatusFailed
	}
	ectx.Fail(runErr)
	if err := ectx.SetStatus(status); err != nil {
		runErr = err
	}
	s.finishRecord(ctx, workflowID, status, ectx.Err)
	tracing.EndSpan(span, runErr)

	data := map[string]interface{}{"executionId": ectx.ExecutionID}
	switch status {
	case execution.StatusCompleted:
		s.events.Publish(ctx, event.NewEvent(event.TypeWorkflowCompleted, workflowID, data))
	case execution.StatusTerminated:
		data["reason"] = handle.terminationReason()
		s.events.Publish(ctx, event.NewEvent(event.TypeWorkflowTerminated, workflowID, data))
	default:
		data["error"] = ectx.Err
		s.events.Publish(ctx, event.NewEvent(event.TypeWorkflowFailed, workflowID, data))
	}
	return execution.NewResult(ectx, results.snapshot(), nil), runErr
}

// Terminate requests cooperative termination of the running execution of a
// workflow. Steps already dispatched observe context cancellation; no new
// steps are started.
func (s *Service) Terminate(workflowID, reason string) error {
	s.mu.RLock()
	handle := s.running[workflowID]
	s.mu.RUnlock()
	if handle == nil {
		return &types.NotFoundError{Kind: "execution", ID: workflowID}
	}
	handle.terminate(reason)
	return nil
}

// State returns the persisted state record of a workflow.
func (s *Service) State(ctx context.Context, workflowID string) (*state.Record, error) {
	return s.store.Get(ctx, workflowID)
}

// UpdateState replaces the persisted state record of a workflow.
func (s *Service) UpdateState(ctx context.Context, workflowID string, record *state.Record) error {
	return s.store.Save(ctx, workflowID, record)
}

func (s *Service) trackRun(workflowID string, handle *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[workflowID] = handle
}

func (s *Service) untrackRun(workflowID string, handle *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[workflowID] == handle {
		delete(s.running, workflowID)
	}
}

// finishRecord stamps the terminal status onto the stored record. It uses the
// caller's context rather than the run context, which may already be
// cancelled.
func (s *Service) finishRecord(ctx context.Context, workflowID string, status execution.Status, errMsg string) {
	record, err := s.store.Get(ctx, workflowID)
	if err != nil {
		return
	}
	record.Status = status
	record.Error = errMsg
	if status == execution.StatusCompleted {
		record.Progress = 1.0
	}
	record.Touch()
	_ = s.store.Save(ctx, workflowID, record)
}

// resultSet collects per-step results; frontier dispatch writes to it from
// multiple goroutines.
type resultSet struct {
	mu      sync.Mutex
	results map[string]*execution.StepResult
}

func (r *resultSet) put(result *execution.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.Step] = result
}

func (r *resultSet) snapshot() map[string]*execution.StepResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*execution.StepResult, len(r.results))
	for k, v := range r.results {
		out[k] = v
	}
	return out
}

// runSequential walks the topological order one step at a time.
func (s *Service) runSequential(ctx context.Context, definition *model.Definition, order []string, ectx *execution.Context, handle *run, results *resultSet) error {
	for _, name := range order {
		if handle.terminated.Load() {
			return ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.runStep(ctx, definition.Lookup(name), ectx)
		results.put(result)
		if err != nil {
			return err
		}
	}
	return nil
}

// runFrontiers repeatedly dispatches the ready frontier, bounded by
// MaxConcurrentSteps, until every step has completed or one fails. With
// inlineSingles set (adaptive strategy) a single-step frontier runs in the
// calling goroutine; only wider frontiers fan out.
func (s *Service) runFrontiers(ctx context.Context, definition *model.Definition, ectx *execution.Context, handle *run, results *resultSet, inlineSingles bool) error {
	completed := make(map[string]bool, len(definition.Steps))
	for len(completed) < len(definition.Steps) {
		if handle.terminated.Load() {
			return ctx.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		frontier := definition.ParallelSteps(completed)
		if len(frontier) == 0 {
			return types.NewStateError("workflow %q has no dispatchable steps with %d of %d completed", definition.ID, len(completed), len(definition.Steps))
		}
		if limit := s.config.MaxConcurrentSteps; limit > 0 && len(frontier) > limit {
			frontier = frontier[:limit]
		}

		if inlineSingles && len(frontier) == 1 {
			result, err := s.runStep(ctx, definition.Lookup(frontier[0]), ectx)
			results.put(result)
			if err != nil {
				return err
			}
			completed[frontier[0]] = true
			continue
		}

		var wg sync.WaitGroup
		var mu sync.Mutex
		var firstErr error
		for _, name := range frontier {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				result, err := s.runStep(ctx, definition.Lookup(name), ectx)
				results.put(result)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}(name)
		}
		wg.Wait()
		if firstErr != nil {
			return firstErr
		}
		for _, name := range frontier {
			completed[name] = true
		}
	}
	return nil
}

// runStep resolves inputs, dispatches the agent with timeout and retry
// handling and, on success, merges the outputs back into the execution
// context and persists the completion.
func (s *Service) runStep(ctx context.Context, step *model.Step, ectx *execution.Context) (*execution.StepResult, error) {
	result := &execution.StepResult{Step: step.Name, StartedAt: clock.Now()}
	ectx.SetCurrentStep(step.Name)
	progress.UpdateCtx(ctx, progress.Delta{Running: 1})

	stepCtx, span := tracing.StartSpan(ctx, "engine.step/"+step.Name)
	span.WithAttributes(map[string]string{"agent.type": step.AgentType})

	s.events.Publish(stepCtx, event.NewEvent(event.TypeStepScheduled, ectx.WorkflowID, map[string]interface{}{
		"step": step.Name,
	}))

	output, err := s.attempt(stepCtx, step, ectx, result)
	result.Duration = clock.Now().Sub(result.StartedAt)
	tracing.EndSpan(span, err)

	if err != nil {
		result.Error = err.Error()
		log.Printf("step %s of workflow %s failed after %d attempt(s): %v", step.Name, ectx.WorkflowID, result.Attempts, err)
		progress.UpdateCtx(ctx, progress.Delta{Running: -1, Failed: 1})
		s.events.Publish(stepCtx, event.NewEvent(event.TypeStepFailed, ectx.WorkflowID, map[string]interface{}{
			"step":     step.Name,
			"error":    err.Error(),
			"attempts": result.Attempts,
		}))
		return result, err
	}

	result.Output = output
	ectx.MergeOutputs(output)
	progress.UpdateCtx(ctx, progress.Delta{Running: -1, Completed: 1})
	if err := s.store.MarkStepCompleted(ctx, ectx.WorkflowID, step.Name, output); err != nil {
		return result, fmt.Errorf("failed to persist completion of step %v: %w", step.Name, err)
	}
	fraction := 0.0
	if tracker, ok := progress.FromContext(ctx); ok {
		fraction = tracker.Fraction()
	}
	if err := s.store.UpdateProgress(ctx, ectx.WorkflowID, fraction, step.Name); err != nil {
		return result, fmt.Errorf("failed to persist progress of step %v: %w", step.Name, err)
	}
	s.events.Publish(stepCtx, event.NewEvent(event.TypeStepCompleted, ectx.WorkflowID, map[string]interface{}{
		"step":     step.Name,
		"attempts": result.Attempts,
	}))
	return result, nil
}

// attempt runs the step's executor, retrying failures whose kind the step's
// retry policy declares retryable with exponential backoff.
func (s *Service) attempt(ctx context.Context, step *model.Step, ectx *execution.Context, result *execution.StepResult) (map[string]interface{}, error) {
	resolved, _ := ectx.ResolveInputs(step.AllInputs())
	if missing := step.ValidateInputs(resolved); len(missing) > 0 {
		return nil, &types.MissingInputError{Step: step.Name, Missing: missing}
	}
	executor := s.registry.Lookup(step.AgentType)
	if executor == nil {
		return nil, &types.StepExecutionError{Step: step.Name, Err: fmt.Errorf("no agent registered for type %q", step.AgentType)}
	}

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1
		output, err := s.invoke(ctx, step, executor, resolved)
		if err == nil {
			err = verifyOutputs(step, output)
		}
		if err == nil {
			return output, nil
		}
		if step.Retry == nil || attempt >= step.Retry.MaxRetries || !step.Retry.Retryable(types.ErrorKind(err)) {
			return nil, err
		}
		if sleepErr := sleepContext(ctx, s.backoffDelay(step.Retry, attempt)); sleepErr != nil {
			return nil, sleepErr
		}
	}
}

// invoke dispatches the executor under the step timeout, converting timeout
// expiry and executor failures into the engine's error kinds. Executor panics
// are contained and surface as execution errors.
func (s *Service) invoke(ctx context.Context, step *model.Step, executor types.Executor, input map[string]interface{}) (map[string]interface{}, error) {
	timeout := s.stepTimeout(step)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		output map[string]interface{}
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &types.StepExecutionError{Step: step.Name, Err: fmt.Errorf("agent panic: %v", r)}}
			}
		}()
		output, err := executor.Execute(runCtx, input)
		if err != nil {
			err = &types.StepExecutionError{Step: step.Name, Err: err}
		}
		done <- outcome{output: output, err: err}
	}()

	select {
	case out := <-done:
		return out.output, out.err
	case <-runCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, &types.StepTimeoutError{Step: step.Name, Timeout: timeout}
	}
}

func (s *Service) stepTimeout(step *model.Step) time.Duration {
	if step.Timeout != "" {
		if timeout, err := time.ParseDuration(step.Timeout); err == nil && timeout > 0 {
			return timeout
		}
	}
	if timeout, err := time.ParseDuration(s.config.DefaultStepTimeout); err == nil && timeout > 0 {
		return timeout
	}
	return time.Minute
}

// backoffDelay computes min(base << attempt, max).
func (s *Service) backoffDelay(policy *model.RetryPolicy, attempt int) time.Duration {
	base := parseDurationOr(policy.Delay, parseDurationOr(s.config.DefaultRetryDelay, 100*time.Millisecond))
	max := parseDurationOr(policy.MaxDelay, parseDurationOr(s.config.DefaultRetryMaxDelay, 30*time.Second))
	delay := base << attempt
	if delay > max || delay <= 0 {
		delay = max
	}
	return delay
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func verifyOutputs(step *model.Step, output map[string]interface{}) error {
	var missing []string
	for _, name := range step.Outputs {
		if _, ok := output[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &types.StepExecutionError{Step: step.Name, Err: fmt.Errorf("agent did not produce declared outputs: %s", strings.Join(missing, ", "))}
	}
	return nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
