// Package progress provides a lightweight tracker that keeps aggregated step
// counters for a single workflow run. The tracker instance lives in the
// execution context – every component that receives the context can update
// the counters via the Delta helper without requiring a global registry.
package progress

import (
	"context"
	"sync"
	"time"

	"github.com/flowvia/flowvia/internal/clock"
)

// Delta represents an incremental counter change. Fields are signed and can
// be either positive (increment) or negative (decrement).
type Delta struct {
	Total     int
	Completed int
	Failed    int
	Running   int
}

// Progress keeps aggregated step counters for one workflow execution. It is
// safe for concurrent use.
type Progress struct {
	ExecutionID string
	Workflow    string
	StartedAt   time.Time

	TotalSteps     int
	CompletedSteps int
	FailedSteps    int
	RunningSteps   int

	sync.Mutex
	onChange func(Progress)
}

// Update applies the supplied delta. If an onChange callback is registered
// it is invoked with a copy of the updated tracker outside the critical
// section so it can perform slow operations without blocking the engine.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.Lock()
	p.TotalSteps += d.Total
	p.CompletedSteps += d.Completed
	p.FailedSteps += d.Failed
	p.RunningSteps += d.Running
	snapshot := *p
	cb := p.onChange
	p.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Fraction returns completed/total in [0,1]; zero when no steps are tracked.
func (p *Progress) Fraction() float64 {
	if p == nil {
		return 0
	}
	p.Lock()
	defer p.Unlock()
	if p.TotalSteps == 0 {
		return 0
	}
	return float64(p.CompletedSteps) / float64(p.TotalSteps)
}

// Snapshot returns a copy of the tracker suitable for read-only inspection.
func (p *Progress) Snapshot() Progress {
	if p == nil {
		return Progress{}
	}
	p.Lock()
	defer p.Unlock()
	return *p
}

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a new Progress tracker, embeds it in a derived
// context and returns both. The onChange callback may be nil.
func WithNewTracker(ctx context.Context, executionID, workflow string, onChange func(Progress)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		ExecutionID: executionID,
		Workflow:    workflow,
		StartedAt:   clock.Now(),
		onChange:    onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the Progress tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// UpdateCtx looks up the tracker in ctx (if any) and applies the delta.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}
