package engine

import (
	"github.com/flowvia/flowvia/progress"
	"github.com/flowvia/flowvia/runtime/execution"
	"github.com/flowvia/flowvia/service/agent"
	"github.com/flowvia/flowvia/service/event"
	"github.com/flowvia/flowvia/service/state"
)

// Option customises the engine service.
type Option func(*Service)

// WithConfig replaces the whole engine configuration.
func WithConfig(config Config) Option {
	return func(s *Service) {
		s.config = config
	}
}

// WithMaxConcurrentWorkflows caps concurrently running executions.
func WithMaxConcurrentWorkflows(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.config.MaxConcurrentWorkflows = limit
		}
	}
}

// WithMaxConcurrentSteps bounds per-frontier step dispatch.
func WithMaxConcurrentSteps(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.config.MaxConcurrentSteps = limit
		}
	}
}

// WithDefaultStepTimeout overrides the fallback step timeout (duration
// string).
func WithDefaultStepTimeout(timeout string) Option {
	return func(s *Service) {
		if timeout != "" {
			s.config.DefaultStepTimeout = timeout
		}
	}
}

// WithStore injects the state store backend.
func WithStore(store state.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithEvents injects the event bus.
func WithEvents(events *event.Service) Option {
	return func(s *Service) {
		if events != nil {
			s.events = events
		}
	}
}

// WithRegistry injects the agent registry.
func WithRegistry(registry *agent.Registry) Option {
	return func(s *Service) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithProgressListener registers a callback invoked on every progress
// counter change.
func WithProgressListener(listener func(progress.Progress)) Option {
	return func(s *Service) {
		s.onProgress = listener
	}
}

// ExecuteOption customises a single execution.
type ExecuteOption func(*executeOptions)

type executeOptions struct {
	executionContext *execution.Context
}

func newExecuteOptions(options []ExecuteOption) *executeOptions {
	ret := &executeOptions{}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// WithExecutionContext reuses a previously built execution context instead
// of creating a fresh one; its seeded data and metadata carry over into the
// run.
func WithExecutionContext(ectx *execution.Context) ExecuteOption {
	return func(o *executeOptions) {
		o.executionContext = ectx
	}
}
