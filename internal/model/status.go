package model

import "fmt"

// Status represents the lifecycle state of a download task
type Status string

const (
	// StatusQueued means the task is admitted but not started
	StatusQueued Status = "Queued"

	// StatusRunning means the download is in progress
	StatusRunning Status = "Running"

	// StatusPaused means the task was suspended by user and can be resumed
	StatusPaused Status = "Paused"

	// StatusCanceled means the task was canceled by user
	StatusCanceled Status = "Canceled"

	// StatusFailed means the task failed with an error
	StatusFailed Status = "Failed"

	// StatusCompleted means the task finished successfully
	StatusCompleted Status = "Completed"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the task reached a final state (canceled, failed, or completed)
func (s Status) IsTerminal() bool {
	return s == StatusCanceled || s == StatusFailed || s == StatusCompleted
}

// IsActive returns true if the task still occupies or may claim a worker slot
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusRunning || s == StatusPaused
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
// Running is reachable only from Queued or Paused; Canceled from any
// non-terminal state; terminal states have no outgoing edges.
func (s Status) CanTransition(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case StatusCanceled:
		return true
	case StatusRunning:
		return s == StatusQueued || s == StatusPaused
	case StatusPaused, StatusFailed, StatusCompleted:
		return s == StatusRunning
	default:
		return false
	}
}

// ParseStatus converts a string into a Status
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusQueued, StatusRunning, StatusPaused, StatusCanceled, StatusFailed, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown task status: %q", s)
}
