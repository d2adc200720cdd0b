package execution

// Status represents the current status of a workflow execution
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusWaiting    Status = "waiting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusTerminated Status = "terminated"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTerminated:
		return true
	}
	return false
}

// CanTransition reports whether the per-execution state machine permits
// moving from s to next.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return false
	}
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusFailed || next == StatusTerminated
	case StatusRunning:
		return next == StatusWaiting || next == StatusCompleted || next == StatusFailed || next == StatusTerminated
	case StatusWaiting:
		return next == StatusRunning || next == StatusFailed || next == StatusTerminated
	}
	return false
}
