// Package nop provides an agent that performs no work and returns
// immediately. It is useful as a placeholder for steps whose only purpose is
// to gate dependencies.
package nop

import (
	"context"
)

const Name = "nop"

// Service performs no operation
type Service struct{}

// New creates a new nop agent
func New() *Service {
	return &Service{}
}

// Execute returns an empty output for any input.
func (s *Service) Execute(_ context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
