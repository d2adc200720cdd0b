package model

import (
	"fmt"
	"time"

	"github.com/flowvia/flowvia/model/types"
)

// Execution strategies recognised by the engine.
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
	StrategyAdaptive   = "adaptive"
)

// Definition represents a workflow definition: an ordered list of steps plus
// a dependency map forming a DAG. Dependencies[step] lists the steps that
// must complete before step may start (edge from -> to means to requires
// from).
type Definition struct {
	ID               string                 `json:"id" yaml:"id"`
	Name             string                 `json:"name" yaml:"name"`
	Description      string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Version          string                 `json:"version,omitempty" yaml:"version,omitempty"`
	Steps            []*Step                `json:"steps,omitempty" yaml:"steps,omitempty"`
	Dependencies     map[string][]string    `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	InitialInputs    []string               `json:"initialInputs,omitempty" yaml:"initialInputs,omitempty"`
	Strategy         string                 `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	MaxExecutionTime string                 `json:"maxExecutionTime,omitempty" yaml:"maxExecutionTime,omitempty"` // duration string
	Metadata         map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	sealed bool
}

// NewDefinition creates a new definition with the given id; the id doubles as
// the name unless overridden.
func NewDefinition(id string) *Definition {
	return &Definition{
		ID:           id,
		Name:         id,
		Dependencies: make(map[string][]string),
	}
}

// WithDescription sets the definition description
func (d *Definition) WithDescription(description string) *Definition {
	d.Description = description
	return d
}

// WithVersion sets the definition version
func (d *Definition) WithVersion(version string) *Definition {
	d.Version = version
	return d
}

// WithStrategy sets the execution strategy
func (d *Definition) WithStrategy(strategy string) *Definition {
	d.Strategy = strategy
	return d
}

// WithMaxExecutionTime sets the overall execution deadline as a duration string
func (d *Definition) WithMaxExecutionTime(timeout string) *Definition {
	d.MaxExecutionTime = timeout
	return d
}

// WithInitialInputs declares the input names the caller provides at execution
// start.
func (d *Definition) WithInitialInputs(names ...string) *Definition {
	d.InitialInputs = append(d.InitialInputs, names...)
	return d
}

// WithMetadata adds a metadata entry to the definition
func (d *Definition) WithMetadata(key string, value interface{}) *Definition {
	if d.Metadata == nil {
		d.Metadata = make(map[string]interface{})
	}
	d.Metadata[key] = value
	return d
}

// Seal freezes the definition; subsequent structural mutation fails. The
// engine seals a definition when registration succeeds.
func (d *Definition) Seal() { d.sealed = true }

// Sealed reports whether the definition has been sealed.
func (d *Definition) Sealed() bool { return d.sealed }

// AddStep appends a step to the definition. It fails once the definition has
// been sealed.
func (d *Definition) AddStep(step *Step) error {
	if d.sealed {
		return types.NewStateError("workflow %q is sealed, cannot add step %q", d.ID, step.Name)
	}
	d.Steps = append(d.Steps, step)
	return nil
}

// NewStepFor creates a step bound to agentType and adds it to the definition.
func (d *Definition) NewStepFor(name, agentType string) *Step {
	step := NewStep(name, agentType)
	d.Steps = append(d.Steps, step)
	return step
}

// AddDependency records that step requires dependsOn to have completed. It
// fails once the definition has been sealed.
func (d *Definition) AddDependency(step, dependsOn string) error {
	if d.sealed {
		return types.NewStateError("workflow %q is sealed, cannot add dependency %s -> %s", d.ID, dependsOn, step)
	}
	if d.Dependencies == nil {
		d.Dependencies = make(map[string][]string)
	}
	d.Dependencies[step] = append(d.Dependencies[step], dependsOn)
	return nil
}

// Lookup returns the step with the given name, or nil.
func (d *Definition) Lookup(name string) *Step {
	for _, step := range d.Steps {
		if step.Name == name {
			return step
		}
	}
	return nil
}

// StepNames returns the step names in declaration order.
func (d *Definition) StepNames() []string {
	names := make([]string, 0, len(d.Steps))
	for _, step := range d.Steps {
		names = append(names, step.Name)
	}
	return names
}

// Validate checks the definition's static properties in order: step-name
// uniqueness, dependency targets, acyclicity and input/output connectivity.
// It returns a *types.ValidationError aggregating every issue found, or nil.
func (d *Definition) Validate() error {
	var issues []string

	if len(d.Steps) == 0 {
		issues = append(issues, "workflow has no steps")
		return types.NewValidationError(d.ID, issues...)
	}

	// 1. step names unique, agent type present
	seen := map[string]bool{}
	for _, step := range d.Steps {
		if step.Name == "" {
			issues = append(issues, "step with empty name")
			continue
		}
		if seen[step.Name] {
			issues = append(issues, fmt.Sprintf("duplicate step name %q", step.Name))
		}
		seen[step.Name] = true
		if step.AgentType == "" {
			issues = append(issues, fmt.Sprintf("step %q has no agent type", step.Name))
		}
		if step.Timeout != "" {
			if _, err := time.ParseDuration(step.Timeout); err != nil {
				issues = append(issues, fmt.Sprintf("step %q has invalid timeout: %v", step.Name, err))
			}
		}
		if retry := step.Retry; retry != nil {
			if retry.Delay != "" {
				if _, err := time.ParseDuration(retry.Delay); err != nil {
					issues = append(issues, fmt.Sprintf("step %q has invalid retry delay: %v", step.Name, err))
				}
			}
			if retry.MaxDelay != "" {
				if _, err := time.ParseDuration(retry.MaxDelay); err != nil {
					issues = append(issues, fmt.Sprintf("step %q has invalid retry max delay: %v", step.Name, err))
				}
			}
		}
	}
	if d.MaxExecutionTime != "" {
		if _, err := time.ParseDuration(d.MaxExecutionTime); err != nil {
			issues = append(issues, fmt.Sprintf("invalid maxExecutionTime: %v", err))
		}
	}

	// 2. dependencies reference existing steps
	for step, deps := range d.Dependencies {
		if !seen[step] {
			issues = append(issues, fmt.Sprintf("dependency declared for unknown step %q", step))
		}
		for _, dep := range deps {
			if !seen[dep] {
				issues = append(issues, fmt.Sprintf("step %q depends on unknown step %q", step, dep))
			}
			if dep == step {
				issues = append(issues, fmt.Sprintf("step %q depends on itself", step))
			}
		}
	}
	if len(issues) > 0 {
		return types.NewValidationError(d.ID, issues...)
	}

	// 3. acyclicity – DFS tracking the current path so that the offending
	// step can be named.
	if step, cyclic := d.findCycle(); cyclic {
		issues = append(issues, fmt.Sprintf("cyclic dependency involving step %q", step))
		return types.NewValidationError(d.ID, issues...)
	}

	// 4. input/output connectivity – simulate execution in topological order
	// with an available-outputs set seeded from the initial inputs.
	order, err := d.ExecutionOrder()
	if err != nil {
		issues = append(issues, err.Error())
		return types.NewValidationError(d.ID, issues...)
	}
	available := map[string]bool{}
	for _, name := range d.InitialInputs {
		available[name] = true
	}
	for _, name := range order {
		step := d.Lookup(name)
		for _, input := range step.RequiredInputs {
			if !available[input] {
				issues = append(issues, fmt.Sprintf("step %q requires input %q which is not produced upstream", name, input))
			}
		}
		for _, output := range step.Outputs {
			available[output] = true
		}
	}
	if len(issues) > 0 {
		return types.NewValidationError(d.ID, issues...)
	}
	return nil
}

// findCycle runs a depth-first search over the dependency edges and returns
// the first step found on a cycle.
func (d *Definition) findCycle() (string, bool) {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	colour := map[string]int{}

	var offending string
	var dfs func(string) bool
	dfs = func(name string) bool {
		switch colour[name] {
		case grey:
			offending = name
			return true
		case black:
			return false
		}
		colour[name] = grey
		for _, dep := range d.Dependencies[name] {
			if dfs(dep) {
				return true
			}
		}
		colour[name] = black
		return false
	}

	for _, step := range d.Steps {
		if dfs(step.Name) {
			return offending, true
		}
	}
	return "", false
}

// ExecutionOrder computes a topological order with Kahn's algorithm over a
// name -> index arena. When the ordered count does not match the step count
// the graph holds a cycle and an error is returned; a partial order is never
// returned.
func (d *Definition) ExecutionOrder() ([]string, error) {
	index := make(map[string]int, len(d.Steps))
	for i, step := range d.Steps {
		index[step.Name] = i
	}

	inDegree := make([]int, len(d.Steps))
	adjacent := make([][]int, len(d.Steps))
	for _, step := range d.Steps {
		to := index[step.Name]
		for _, dep := range d.Dependencies[step.Name] {
			from, ok := index[dep]
			if !ok {
				return nil, types.NewValidationError(d.ID, fmt.Sprintf("step %q depends on unknown step %q", step.Name, dep))
			}
			adjacent[from] = append(adjacent[from], to)
			inDegree[to]++
		}
	}

	var queue []int
	for i := range d.Steps {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]string, 0, len(d.Steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, d.Steps[current].Name)
		for _, next := range adjacent[current] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(d.Steps) {
		return nil, types.NewValidationError(d.ID, "workflow contains cyclic dependencies")
	}
	return order, nil
}

// ParallelSteps returns the frontier: every step not yet completed whose
// dependencies are all completed. Steps in the returned slice may be
// dispatched concurrently.
func (d *Definition) ParallelSteps(completed map[string]bool) []string {
	var ready []string
	for _, step := range d.Steps {
		if completed[step.Name] {
			continue
		}
		if d.dependenciesMet(step.Name, completed) {
			ready = append(ready, step.Name)
		}
	}
	return ready
}

// NextSteps returns the steps directly gated by current whose remaining
// dependencies are already completed.
func (d *Definition) NextSteps(current string, completed map[string]bool) []string {
	var next []string
	for _, step := range d.Steps {
		if completed[step.Name] {
			continue
		}
		gated := false
		for _, dep := range d.Dependencies[step.Name] {
			if dep == current {
				gated = true
				break
			}
		}
		if !gated {
			continue
		}
		met := true
		for _, dep := range d.Dependencies[step.Name] {
			if dep != current && !completed[dep] {
				met = false
				break
			}
		}
		if met {
			next = append(next, step.Name)
		}
	}
	return next
}

func (d *Definition) dependenciesMet(step string, completed map[string]bool) bool {
	for _, dep := range d.Dependencies[step] {
		if !completed[dep] {
			return false
		}
	}
	return true
}

// Clone creates a deep copy of the definition. The clone is unsealed so that
// callers can derive a new version from a registered workflow.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	clone := &Definition{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		Version:          d.Version,
		Strategy:         d.Strategy,
		MaxExecutionTime: d.MaxExecutionTime,
	}
	if d.Steps != nil {
		clone.Steps = make([]*Step, len(d.Steps))
		for i, step := range d.Steps {
			clone.Steps[i] = step.Clone()
		}
	}
	if d.Dependencies != nil {
		clone.Dependencies = make(map[string][]string, len(d.Dependencies))
		for k, v := range d.Dependencies {
			clone.Dependencies[k] = append([]string(nil), v...)
		}
	}
	if d.InitialInputs != nil {
		clone.InitialInputs = append([]string(nil), d.InitialInputs...)
	}
	if d.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(d.Metadata))
		for k, v := range d.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
