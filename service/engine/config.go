package engine

// Config represents engine configuration
type Config struct {
	// MaxConcurrentWorkflows caps the number of executions running at once;
	// Execute fails fast with a ConcurrencyLimitError when the cap is reached.
	MaxConcurrentWorkflows int `json:"maxConcurrentWorkflows,omitempty" yaml:"maxConcurrentWorkflows,omitempty"`

	// MaxConcurrentSteps bounds how many steps of one frontier are dispatched
	// together under the parallel and adaptive strategies.
	MaxConcurrentSteps int `json:"maxConcurrentSteps,omitempty" yaml:"maxConcurrentSteps,omitempty"`

	// DefaultStepTimeout applies to steps that declare no timeout (duration
	// string).
	DefaultStepTimeout string `json:"defaultStepTimeout,omitempty" yaml:"defaultStepTimeout,omitempty"`

	// DefaultRetryDelay is the backoff base used when a retry policy declares
	// none (duration string).
	DefaultRetryDelay string `json:"defaultRetryDelay,omitempty" yaml:"defaultRetryDelay,omitempty"`

	// DefaultRetryMaxDelay caps the backoff when a retry policy declares no
	// maximum (duration string).
	DefaultRetryMaxDelay string `json:"defaultRetryMaxDelay,omitempty" yaml:"defaultRetryMaxDelay,omitempty"`
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentWorkflows: 4,
		MaxConcurrentSteps:     8,
		DefaultStepTimeout:     "1m",
		DefaultRetryDelay:      "100ms",
		DefaultRetryMaxDelay:   "30s",
	}
}
