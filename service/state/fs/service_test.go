package fs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowvia/flowvia/model/types"
	"github.com/flowvia/flowvia/service/state"
)

func TestService_RoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	assert.NoError(t, err)
	ctx := context.Background()

	record := state.NewRecord("wf/analysis", "wf/analysis/exec-1", []string{"gather", "draft"})
	assert.NoError(t, store.Save(ctx, "wf/analysis", record))

	loaded, err := store.Get(ctx, "wf/analysis")
	assert.NoError(t, err)
	assert.Equal(t, "wf/analysis/exec-1", loaded.ExecutionID)
	assert.Equal(t, []string{"gather", "draft"}, loaded.StepsRemaining)

	assert.NoError(t, store.MarkStepCompleted(ctx, "wf/analysis", "gather", map[string]interface{}{"facts": "found"}))
	loaded, _ = store.Get(ctx, "wf/analysis")
	assert.Equal(t, []string{"gather"}, loaded.StepsCompleted)
	assert.Equal(t, []string{"draft"}, loaded.StepsRemaining)

	assert.NoError(t, store.UpdateProgress(ctx, "wf/analysis", 0.5, "draft"))
	loaded, _ = store.Get(ctx, "wf/analysis")
	assert.Equal(t, 0.5, loaded.Progress)

	assert.NoError(t, store.Delete(ctx, "wf/analysis"))
	_, err = store.Get(ctx, "wf/analysis")
	var notFound *types.NotFoundError
	assert.True(t, errors.As(err, &notFound))
}

func TestService_SaveBareRecord(t *testing.T) {
	store, err := New(t.TempDir())
	assert.NoError(t, err)
	ctx := context.Background()

	// a caller-supplied record literal without allocated collections; the
	// persisted document round-trips the nil data map as null
	assert.NoError(t, store.Save(ctx, "wf", &state.Record{
		WorkflowID:     "wf",
		StepsRemaining: []string{"gather"},
	}))
	assert.NoError(t, store.MarkStepCompleted(ctx, "wf", "gather", map[string]interface{}{"facts": "found"}))

	record, err := store.Get(ctx, "wf")
	assert.NoError(t, err)
	assert.Equal(t, []string{"gather"}, record.StepsCompleted)
	assert.Equal(t, map[string]interface{}{"facts": "found"}, record.Data[state.StepOutputKey("gather")])
	assert.NotNil(t, record.Metadata)
}

func TestService_ListAndCleanup(t *testing.T) {
	store, err := New(t.TempDir())
	assert.NoError(t, err)
	ctx := context.Background()

	assert.NoError(t, store.Save(ctx, "one", state.NewRecord("one", "e1", nil)))
	assert.NoError(t, store.Save(ctx, "two", state.NewRecord("two", "e2", nil)))

	records, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Len(t, records, 2)

	removed, err := store.CleanupExpired(ctx, 0)
	assert.NoError(t, err)
	assert.Equal(t, 2, removed)

	records, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, records)
}

func TestService_UpdateProgressRejectsOutOfRange(t *testing.T) {
	store, err := New(t.TempDir())
	assert.NoError(t, err)
	ctx := context.Background()
	assert.NoError(t, store.Save(ctx, "wf", state.NewRecord("wf", "e1", nil)))

	var stateErr *types.StateError
	assert.True(t, errors.As(store.UpdateProgress(ctx, "wf", 1.5, ""), &stateErr))
}
