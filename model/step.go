package model

type (
	// Step is the declarative contract for one unit of work. It names the
	// agent type that performs the work and declares the data keys the step
	// consumes and produces; the engine resolves both against the execution
	// context at dispatch time.
	Step struct {
		Name           string                 `json:"name" yaml:"name"`
		Description    string                 `json:"description,omitempty" yaml:"description,omitempty"`
		AgentType      string                 `json:"agentType,omitempty" yaml:"agentType,omitempty"`
		RequiredInputs []string               `json:"requiredInputs,omitempty" yaml:"requiredInputs,omitempty"`
		OptionalInputs []string               `json:"optionalInputs,omitempty" yaml:"optionalInputs,omitempty"`
		Outputs        []string               `json:"outputs,omitempty" yaml:"outputs,omitempty"`
		Timeout        string                 `json:"timeout,omitempty" yaml:"timeout,omitempty"` // duration string
		Retry          *RetryPolicy           `json:"retry,omitempty" yaml:"retry,omitempty"`
		Metadata       map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	}

	// RetryPolicy for a step
	RetryPolicy struct {
		MaxRetries     int      `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
		Delay          string   `json:"delay,omitempty" yaml:"delay,omitempty"` // base delay (duration string)
		MaxDelay       string   `json:"maxDelay,omitempty" yaml:"maxDelay,omitempty"`
		RetryableKinds []string `json:"retryableKinds,omitempty" yaml:"retryableKinds,omitempty"`
	}
)

// NewStep creates a step bound to the given agent type.
func NewStep(name, agentType string) *Step {
	return &Step{Name: name, AgentType: agentType}
}

// ValidateInputs returns the names of required inputs absent from provided.
func (s *Step) ValidateInputs(provided map[string]interface{}) []string {
	var missing []string
	for _, name := range s.RequiredInputs {
		if _, ok := provided[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// AllInputs returns required and optional input names, required first.
func (s *Step) AllInputs() []string {
	all := make([]string, 0, len(s.RequiredInputs)+len(s.OptionalInputs))
	all = append(all, s.RequiredInputs...)
	all = append(all, s.OptionalInputs...)
	return all
}

// Retryable reports whether the supplied error kind is listed in the step's
// retry policy.
func (p *RetryPolicy) Retryable(kind string) bool {
	if p == nil || kind == "" {
		return false
	}
	for _, candidate := range p.RetryableKinds {
		if candidate == kind {
			return true
		}
	}
	return false
}

// WithDescription sets the step description
func (s *Step) WithDescription(description string) *Step {
	s.Description = description
	return s
}

// WithRequiredInputs adds required input names to the step
func (s *Step) WithRequiredInputs(names ...string) *Step {
	s.RequiredInputs = append(s.RequiredInputs, names...)
	return s
}

// WithOptionalInputs adds optional input names to the step
func (s *Step) WithOptionalInputs(names ...string) *Step {
	s.OptionalInputs = append(s.OptionalInputs, names...)
	return s
}

// WithOutputs adds output names to the step
func (s *Step) WithOutputs(names ...string) *Step {
	s.Outputs = append(s.Outputs, names...)
	return s
}

// WithTimeout sets the step timeout as a duration string
func (s *Step) WithTimeout(timeout string) *Step {
	s.Timeout = timeout
	return s
}

// WithRetry sets the retry policy for the step
func (s *Step) WithRetry(policy *RetryPolicy) *Step {
	s.Retry = policy
	return s
}

// WithMetadata adds a metadata entry to the step
func (s *Step) WithMetadata(key string, value interface{}) *Step {
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	s.Metadata[key] = value
	return s
}

// Clone creates a deep copy of the step
func (s *Step) Clone() *Step {
	if s == nil {
		return nil
	}
	clone := &Step{
		Name:        s.Name,
		Description: s.Description,
		AgentType:   s.AgentType,
		Timeout:     s.Timeout,
	}
	if s.RequiredInputs != nil {
		clone.RequiredInputs = append([]string(nil), s.RequiredInputs...)
	}
	if s.OptionalInputs != nil {
		clone.OptionalInputs = append([]string(nil), s.OptionalInputs...)
	}
	if s.Outputs != nil {
		clone.Outputs = append([]string(nil), s.Outputs...)
	}
	if s.Retry != nil {
		retry := *s.Retry
		retry.RetryableKinds = append([]string(nil), s.Retry.RetryableKinds...)
		clone.Retry = &retry
	}
	if s.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}
