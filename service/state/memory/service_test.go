package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/service/state"
)

func newRecord() *state.Record {
	return state.NewRecord("wf", "wf/exec-1", []string{"gather", "analyze", "draft"})
}

func TestService_SaveGetDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Get(ctx, "wf")
	var notFound *types.NotFoundError
	assert.True(t, errors.As(err, &notFound))

	assert.NoError(t, store.Save(ctx, "wf", newRecord()))
	record, err := store.Get(ctx, "wf")
	assert.NoError(t, err)
	assert.Equal(t, "wf/exec-1", record.ExecutionID)
	assert.Equal(t, []string{"gather", "analyze", "draft"}, record.StepsRemaining)

	// stored state must not alias the caller's copy
	record.StepsRemaining[0] = "mutated"
	reloaded, _ := store.Get(ctx, "wf")
	assert.Equal(t, "gather", reloaded.StepsRemaining[0])

	assert.NoError(t, store.Delete(ctx, "wf"))
	_, err = store.Get(ctx, "wf")
	assert.True(t, errors.As(err, &notFound))
}

func TestService_UpdateProgress(t *testing.T) {
	store := New()
	ctx := context.Background()
	assert.NoError(t, store.Save(ctx, "wf", newRecord()))
	assert.NoError(t, store.UpdateProgress(ctx, "wf", 0.5, "analyze"))

	record, _ := store.Get(ctx, "wf")
	assert.Equal(t, 0.5, record.Progress)
	assert.Equal(t, "analyze", record.CurrentStep)

	var stateErr *types.StateError
	for _, invalid := range []float64{-0.1, 1.1} {
		err := store.UpdateProgress(ctx, "wf", invalid, "")
		assert.True(t, errors.As(err, &stateErr))
	}
	record, _ = store.Get(ctx, "wf")
	assert.Equal(t, 0.5, record.Progress, "rejected update must leave progress unchanged")
}

func TestService_MarkStepCompletedIsIdempotent(t *testing.T) {
	store := New()
	ctx := context.Background()
	assert.NoError(t, store.Save(ctx, "wf", newRecord()))

	assert.NoError(t, store.MarkStepCompleted(ctx, "wf", "gather", map[string]interface{}{"facts": 3}))
	assert.NoError(t, store.MarkStepCompleted(ctx, "wf", "gather", nil))

	record, _ := store.Get(ctx, "wf")
	assert.Equal(t, []string{"gather"}, record.StepsCompleted)
	assert.Equal(t, []string{"analyze", "draft"}, record.StepsRemaining)
	assert.Equal(t, map[string]interface{}{"facts": 3}, record.Data[state.StepOutputKey("gather")])
}

func TestService_SaveBareRecord(t *testing.T) {
	store := New()
	ctx := context.Background()

	// a caller-supplied record literal without allocated collections
	assert.NoError(t, store.Save(ctx, "wf", &state.Record{
		WorkflowID:     "wf",
		StepsRemaining: []string{"gather"},
	}))
	assert.NoError(t, store.MarkStepCompleted(ctx, "wf", "gather", map[string]interface{}{"facts": 1}))

	record, err := store.Get(ctx, "wf")
	assert.NoError(t, err)
	assert.Equal(t, []string{"gather"}, record.StepsCompleted)
	assert.Equal(t, map[string]interface{}{"facts": 1}, record.Data[state.StepOutputKey("gather")])
	assert.NotNil(t, record.Metadata)
}

func TestService_ConcurrentStepCompletions(t *testing.T) {
	store := New()
	ctx := context.Background()

	steps := make([]string, 40)
	for i := range steps {
		steps[i] = fmt.Sprintf("step-%d", i)
	}
	assert.NoError(t, store.Save(ctx, "wf", state.NewRecord("wf", "exec", steps)))

	var wg sync.WaitGroup
	for _, step := range steps {
		wg.Add(1)
		go func(step string) {
			defer wg.Done()
			assert.NoError(t, store.MarkStepCompleted(ctx, "wf", step, nil))
		}(step)
	}
	wg.Wait()

	record, _ := store.Get(ctx, "wf")
	assert.Len(t, record.StepsCompleted, len(steps))
	assert.Empty(t, record.StepsRemaining)
}

func TestService_UpdatedAtMonotonic(t *testing.T) {
	store := New()
	ctx := context.Background()
	assert.NoError(t, store.Save(ctx, "wf", newRecord()))
	first, _ := store.Get(ctx, "wf")
	assert.NoError(t, store.MarkStepCompleted(ctx, "wf", "gather", nil))
	second, _ := store.Get(ctx, "wf")
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt))
}

func TestService_CleanupExpired(t *testing.T) {
	store := New()
	ctx := context.Background()
	assert.NoError(t, store.Save(ctx, "one", state.NewRecord("one", "e1", nil)))
	assert.NoError(t, store.Save(ctx, "two", state.NewRecord("two", "e2", nil)))

	removed, err := store.CleanupExpired(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)

	var notFound *types.NotFoundError
	for _, id := range []string{"one", "two"} {
		_, err := store.Get(ctx, id)
		assert.True(t, errors.As(err, &notFound))
	}
}
