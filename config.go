package flowvia

import (
	"fmt"
	"time"

	"github.com/flowvia/flowvia/service/engine"
	"github.com/flowvia/flowvia/service/event"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON or YAML; the zero-value is useful – all nested
// fields inherit their package defaults.
type Config struct {
	Engine engine.Config `json:"engine" yaml:"engine"`
	Event  event.Config  `json:"event" yaml:"event"`

	// StateBaseURL, when set, switches state persistence from the in-memory
	// store to the filesystem store rooted at this location.
	StateBaseURL string `json:"stateBaseURL,omitempty" yaml:"stateBaseURL,omitempty"`
}

// DefaultConfig returns a Config populated with every package default.
func DefaultConfig() *Config {
	return &Config{
		Engine: engine.DefaultConfig(),
		Event:  event.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if c.Engine.MaxConcurrentWorkflows <= 0 {
		return fmt.Errorf("engine.maxConcurrentWorkflows must be > 0")
	}
	if c.Engine.MaxConcurrentSteps <= 0 {
		return fmt.Errorf("engine.maxConcurrentSteps must be > 0")
	}
	if c.Engine.DefaultStepTimeout != "" {
		if _, err := time.ParseDuration(c.Engine.DefaultStepTimeout); err != nil {
			return fmt.Errorf("engine.defaultStepTimeout is invalid: %w", err)
		}
	}
	if c.Event.HistoryLimit <= 0 {
		return fmt.Errorf("event.historyLimit must be > 0")
	}
	return nil
}
