package flowvia_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/flowvia/flowvia"
	"github.com/flowvia/flowvia/model"
	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/progress"
	"github.com/flowvia/flowvia/runtime/execution"
	"github.com/flowvia/flowvia/service/event"
)

func TestExecution_EndToEnd(t *testing.T) {
	var updates []progress.Progress
	srv, err := flowvia.New(
		flowvia.WithAgent("greeter", types.ExecutorFunc(func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"greeting": "hello " + input["name"].(string)}, nil
		})),
		flowvia.WithAgent("shouter", types.ExecutorFunc(func(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"shout": input["greeting"].(string) + "!"}, nil
		})),
		flowvia.WithProgressListener(func(p progress.Progress) {
			updates = append(updates, p)
		}),
	)
	assert.NoError(t, err)

	definition := model.NewDefinition("greeting").WithInitialInputs("name")
	definition.NewStepFor("greet", "greeter").
		WithRequiredInputs("name").
		WithOutputs("greeting")
	definition.NewStepFor("shout", "shouter").
		WithRequiredInputs("greeting").
		WithOutputs("shout")
	assert.NoError(t, definition.AddDependency("shout", "greet"))

	runtime := srv.Runtime()
	ctx := context.Background()
	assert.NoError(t, runtime.Start(ctx))
	assert.NoError(t, runtime.Register(definition))

	result, err := runtime.Execute(ctx, "greeting", map[string]interface{}{"name": "gopher"})
	assert.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hello gopher!", result.StepResults["shout"].Output["shout"])
	assert.NotEmpty(t, updates)

	record, err := runtime.State(ctx, "greeting")
	assert.NoError(t, err)
	assert.Equal(t, execution.StatusCompleted, record.Status)
	assert.Equal(t, []string{"greet", "shout"}, record.StepsCompleted)

	completed := runtime.History(event.TypeWorkflowCompleted, "greeting", 0)
	assert.Len(t, completed, 1)

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, runtime.Shutdown(shutdownCtx))
}

func TestExecution_UpsertAndReload(t *testing.T) {
	srv, err := flowvia.New()
	assert.NoError(t, err)
	runtime := srv.Runtime()
	ctx := context.Background()

	definition := model.NewDefinition("noop")
	definition.NewStepFor("idle", "nop")

	location := t.TempDir() + "/noop.yaml"
	assert.NoError(t, runtime.UpsertDefinition(ctx, location, definition))

	reloaded, err := runtime.LoadWorkflow(ctx, location)
	assert.NoError(t, err)
	assert.Equal(t, "noop", reloaded.ID)

	result, err := runtime.Execute(ctx, "noop", nil)
	assert.NoError(t, err)
	assert.True(t, result.Success)
}
