package flowvia

import (
	"github.com/viant/afs/storage"

	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/progress"
	"github.com/flowvia/flowvia/service/agent"
	"github.com/flowvia/flowvia/service/agent/nop"
	"github.com/flowvia/flowvia/service/dao/definition"
	"github.com/flowvia/flowvia/service/engine"
	"github.com/flowvia/flowvia/service/event"
	"github.com/flowvia/flowvia/service/state"
	"github.com/flowvia/flowvia/service/state/fs"
	"github.com/flowvia/flowvia/service/state/memory"
)

// Service assembles the engine, agent registry, event bus, state store and
// definition DAO into one workflow orchestration facade.
type Service struct {
	runtime          *Runtime
	config           *Config
	eventService     *event.Service
	stateStore       state.Store
	agents           map[string]types.Executor
	progressListener func(progress.Progress)
	definitionFsOpts []storage.Option
}

// New creates a new flowvia service
func New(options ...Option) (*Service, error) {
	ret := &Service{
		runtime: &Runtime{},
		config:  DefaultConfig(),
		agents:  make(map[string]types.Executor),
	}
	if err := ret.init(options); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(options []Option) error {
	for _, option := range options {
		option(s)
	}
	if err := s.config.Validate(); err != nil {
		return err
	}
	if err := s.ensureBaseSetup(); err != nil {
		return err
	}
	s.runtime.definitionDAO = definition.New(s.definitionFsOpts...)
	s.runtime.engine = engine.New(
		engine.WithConfig(s.config.Engine),
		engine.WithEvents(s.eventService),
		engine.WithStore(s.stateStore),
		engine.WithProgressListener(s.progressListener),
	)
	s.runtime.engine.Registry().Register(nop.Name, nop.New())
	for agentType, executor := range s.agents {
		s.runtime.engine.Registry().Register(agentType, executor)
	}
	return nil
}

func (s *Service) ensureBaseSetup() error {
	if s.eventService == nil {
		s.eventService = event.New(event.WithHistoryLimit(s.config.Event.HistoryLimit))
	}
	if s.stateStore == nil {
		if s.config.StateBaseURL != "" {
			store, err := fs.New(s.config.StateBaseURL)
			if err != nil {
				return err
			}
			s.stateStore = store
		} else {
			s.stateStore = memory.New()
		}
	}
	return nil
}

// Runtime returns the assembled runtime.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// RegisterAgent binds an executor to an agent type.
func (s *Service) RegisterAgent(agentType string, executor types.Executor) {
	s.runtime.engine.Registry().Register(agentType, executor)
}

// Registry returns the agent registry.
func (s *Service) Registry() *agent.Registry {
	return s.runtime.engine.Registry()
}

// Events returns the event bus.
func (s *Service) Events() *event.Service {
	return s.eventService
}
