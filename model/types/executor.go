package types

import "context"

// Executor performs the actual work of a single step. Implementations are
// registered under an agent-type string and looked up at dispatch time; the
// engine never depends on a concrete implementation.
//
// Execute must return a value for every output the step declares; a missing
// declared output is treated by the engine as a contract violation and fails
// the step.
type Executor interface {
	Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	return f(ctx, input)
}
