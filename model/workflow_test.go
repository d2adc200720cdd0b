package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowvia/flowvia/model/types"
)

func analysisDefinition() *Definition {
	def := NewDefinition("analysis")
	def.NewStepFor("gather", "collector").WithOutputs("facts")
	def.NewStepFor("analyze", "analyst").WithRequiredInputs("facts").WithOutputs("findings")
	def.NewStepFor("draft", "writer").WithRequiredInputs("findings")
	_ = def.AddDependency("analyze", "gather")
	_ = def.AddDependency("draft", "analyze")
	return def
}

func TestDefinition_ExecutionOrder(t *testing.T) {
	testCases := []struct {
		name         string
		definition   *Definition
		expect       []string
		expectCyclic bool
	}{
		{
			name:       "linear chain",
			definition: analysisDefinition(),
			expect:     []string{"gather", "analyze", "draft"},
		},
		{
			name: "diamond",
			definition: func() *Definition {
				def := NewDefinition("diamond")
				def.NewStepFor("a", "x").WithOutputs("v")
				def.NewStepFor("b", "x").WithRequiredInputs("v").WithOutputs("l")
				def.NewStepFor("c", "x").WithRequiredInputs("v").WithOutputs("r")
				def.NewStepFor("d", "x").WithRequiredInputs("l", "r")
				_ = def.AddDependency("b", "a")
				_ = def.AddDependency("c", "a")
				_ = def.AddDependency("d", "b")
				_ = def.AddDependency("d", "c")
				return def
			}(),
			expect: []string{"a", "b", "c", "d"},
		},
		{
			name: "cycle",
			definition: func() *Definition {
				def := NewDefinition("cyclic")
				def.NewStepFor("a", "x")
				def.NewStepFor("b", "x")
				_ = def.AddDependency("a", "b")
				_ = def.AddDependency("b", "a")
				return def
			}(),
			expectCyclic: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			order, err := tc.definition.ExecutionOrder()
			if tc.expectCyclic {
				assert.Error(t, err)
				assert.Nil(t, order, "a cyclic graph must never yield a partial order")
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expect, order)

			// every dependency appears before its dependents
			position := map[string]int{}
			for i, name := range order {
				position[name] = i
			}
			for step, deps := range tc.definition.Dependencies {
				for _, dep := range deps {
					assert.Less(t, position[dep], position[step])
				}
			}
		})
	}
}

func TestDefinition_Validate(t *testing.T) {
	testCases := []struct {
		name        string
		definition  *Definition
		expectIssue string
	}{
		{
			name:       "valid",
			definition: analysisDefinition(),
		},
		{
			name: "duplicate step name",
			definition: func() *Definition {
				def := NewDefinition("dup")
				def.NewStepFor("a", "x")
				def.NewStepFor("a", "x")
				return def
			}(),
			expectIssue: `duplicate step name "a"`,
		},
		{
			name: "unknown dependency",
			definition: func() *Definition {
				def := NewDefinition("unknown")
				def.NewStepFor("a", "x")
				_ = def.AddDependency("a", "ghost")
				return def
			}(),
			expectIssue: `step "a" depends on unknown step "ghost"`,
		},
		{
			name: "cycle names offending step",
			definition: func() *Definition {
				def := NewDefinition("cyclic")
				def.NewStepFor("a", "x")
				def.NewStepFor("b", "x")
				_ = def.AddDependency("a", "b")
				_ = def.AddDependency("b", "a")
				return def
			}(),
			expectIssue: "cyclic dependency involving step",
		},
		{
			name: "unsatisfiable required input",
			definition: func() *Definition {
				def := NewDefinition("starved")
				def.NewStepFor("a", "x").WithOutputs("v")
				def.NewStepFor("b", "x").WithRequiredInputs("w")
				_ = def.AddDependency("b", "a")
				return def
			}(),
			expectIssue: `step "b" requires input "w" which is not produced upstream`,
		},
		{
			name: "initial inputs cover requirements",
			definition: func() *Definition {
				def := NewDefinition("seeded").WithInitialInputs("seed")
				def.NewStepFor("a", "x").WithRequiredInputs("seed")
				return def
			}(),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.definition.Validate()
			if tc.expectIssue == "" {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
			var validation *types.ValidationError
			assert.True(t, errors.As(err, &validation))
			assert.Contains(t, err.Error(), tc.expectIssue)
		})
	}
}

func TestDefinition_ParallelSteps(t *testing.T) {
	def := NewDefinition("fanout")
	def.NewStepFor("root", "x").WithOutputs("v")
	def.NewStepFor("left", "x").WithRequiredInputs("v")
	def.NewStepFor("right", "x").WithRequiredInputs("v")
	def.NewStepFor("join", "x")
	_ = def.AddDependency("left", "root")
	_ = def.AddDependency("right", "root")
	_ = def.AddDependency("join", "left")
	_ = def.AddDependency("join", "right")

	assert.Equal(t, []string{"root"}, def.ParallelSteps(map[string]bool{}))
	assert.Equal(t, []string{"left", "right"}, def.ParallelSteps(map[string]bool{"root": true}))
	assert.Equal(t, []string{"join"}, def.ParallelSteps(map[string]bool{"root": true, "left": true, "right": true}))
	assert.Empty(t, def.ParallelSteps(map[string]bool{"root": true, "left": true, "right": true, "join": true}))
}

func TestDefinition_NextSteps(t *testing.T) {
	def := NewDefinition("gated")
	def.NewStepFor("a", "x")
	def.NewStepFor("b", "x")
	def.NewStepFor("c", "x")
	_ = def.AddDependency("c", "a")
	_ = def.AddDependency("c", "b")

	// c is gated by a, but b has not completed yet
	assert.Empty(t, def.NextSteps("a", map[string]bool{"a": true}))
	assert.Equal(t, []string{"c"}, def.NextSteps("b", map[string]bool{"a": true, "b": true}))
}

func TestDefinition_SealRejectsMutation(t *testing.T) {
	def := analysisDefinition()
	def.Seal()

	err := def.AddStep(NewStep("late", "x"))
	var state *types.StateError
	assert.True(t, errors.As(err, &state))

	err = def.AddDependency("draft", "gather")
	assert.True(t, errors.As(err, &state))
	assert.Len(t, def.Dependencies["draft"], 1, "sealed definition must stay unchanged")
}
