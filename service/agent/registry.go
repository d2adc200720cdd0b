package agent

import (
	"sync"

	"github.com/viant/x"

	"github.com/flowvia/flowvia/model/types"
)

// Registry maps agent-type strings to executor implementations. It also
// carries a type registry describing the Go input/output types of typed
// agents, so that hosts can introspect an agent's contract.
type Registry struct {
	mux       sync.RWMutex
	executors map[string]types.Executor
	types     *x.Registry
}

// NewRegistry creates a new executor registry
func NewRegistry(goTypes ...*x.Type) *Registry {
	ret := &Registry{
		executors: make(map[string]types.Executor),
		types:     x.NewRegistry(),
	}
	for _, t := range goTypes {
		if t != nil {
			ret.types.Register(t)
		}
	}
	return ret
}

// Register binds an executor to an agent type, replacing any previous
// binding.
func (r *Registry) Register(agentType string, executor types.Executor) {
	r.mux.Lock()
	defer r.mux.Unlock()
	r.executors[agentType] = executor
}

// Lookup returns the executor bound to an agent type, or nil.
func (r *Registry) Lookup(agentType string) types.Executor {
	r.mux.RLock()
	defer r.mux.RUnlock()
	return r.executors[agentType]
}

// AgentTypes returns the registered agent-type names.
func (r *Registry) AgentTypes() []string {
	r.mux.RLock()
	defer r.mux.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	return names
}

// Types returns the registry of Go types registered by typed agents.
func (r *Registry) Types() *x.Registry {
	return r.types
}
