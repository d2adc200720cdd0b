package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/service/agent/nop"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	registry := NewRegistry()
	registry.Register(nop.Name, nop.New())
	registry.Register("echo", types.ExecutorFunc(func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
		return input, nil
	}))

	assert.NotNil(t, registry.Lookup(nop.Name))
	assert.NotNil(t, registry.Lookup("echo"))
	assert.Nil(t, registry.Lookup("ghost"))
	assert.ElementsMatch(t, []string{"nop", "echo"}, registry.AgentTypes())
}

type analyzeInput struct {
	Facts []string `json:"facts"`
	Depth int      `json:"depth"`
}

type analyzeOutput struct {
	Findings []string `json:"findings"`
	Score    float64  `json:"score"`
}

func TestTyped(t *testing.T) {
	registry := NewRegistry()
	RegisterTyped(registry, "analyst", func(_ context.Context, input *analyzeInput) (*analyzeOutput, error) {
		return &analyzeOutput{
			Findings: append([]string{"summary"}, input.Facts...),
			Score:    float64(input.Depth),
		}, nil
	})

	executor := registry.Lookup("analyst")
	assert.NotNil(t, executor)

	output, err := executor.Execute(context.Background(), map[string]interface{}{
		"facts": []string{"a", "b"},
		"depth": 2,
	})
	assert.NoError(t, err)
	assert.Equal(t, []interface{}{"summary", "a", "b"}, output["findings"])
	assert.Equal(t, 2.0, output["score"])
}

func TestNopAgent(t *testing.T) {
	output, err := nop.New().Execute(context.Background(), map[string]interface{}{"ignored": true})
	assert.NoError(t, err)
	assert.Empty(t, output)
}
