package download

import (
	"context"
	"errors"
	"fmt"
)

// ErrCapacity is returned by Submit when the manager's hard task cap is reached.
var ErrCapacity = errors.New("download: task capacity exceeded")

// ErrUnknownTask is returned when an operation references an ID the manager does not track.
var ErrUnknownTask = errors.New("download: unknown task id")

// ErrInvalidConcurrency is returned by SetConcurrencyLimit for values below 1.
var ErrInvalidConcurrency = errors.New("download: concurrency limit must be at least 1")

// ErrInvalidURL is returned by Submit for an empty URL.
var ErrInvalidURL = errors.New("download: url must not be empty")

// ErrNotRunning is returned by Pause when the task is not currently running.
var ErrNotRunning = errors.New("download: task is not running")

// ErrNotPaused is returned by Resume when the task is not paused.
var ErrNotPaused = errors.New("download: task is not paused")

// ErrManagerClosed is returned after Shutdown has begun.
var ErrManagerClosed = errors.New("download: manager is closed")

// ErrorKind classifies a task failure for retry and reporting decisions
type ErrorKind string

const (
	// KindNetwork marks transient transfer failures, eligible for retry
	KindNetwork ErrorKind = "network"

	// KindExtraction marks site parsing failures from the extractor, not retried
	KindExtraction ErrorKind = "extraction"

	// KindFilesystem marks unwritable destinations or disk exhaustion, fatal for the task
	KindFilesystem ErrorKind = "filesystem"

	// KindCanceled marks interruption by the user, mapped to Canceled rather than Failed
	KindCanceled ErrorKind = "canceled"

	// KindUnknown marks anything the adapter could not classify
	KindUnknown ErrorKind = "unknown"
)

// TaskError is a classified failure reported by a fetcher
type TaskError struct {
	Kind  ErrorKind
	Op    string // operation that failed ("probe", "fetch")
	Cause error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewTaskError wraps cause with a classification
func NewTaskError(kind ErrorKind, op string, cause error) *TaskError {
	return &TaskError{Kind: kind, Op: op, Cause: cause}
}

// Classify extracts the ErrorKind from err. Context cancellation counts as
// KindCanceled whether or not the fetcher wrapped it.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var te *TaskError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindUnknown
}
