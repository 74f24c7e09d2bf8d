package model

// EventType identifies what changed on a task
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventProgress  EventType = "progress"
	EventPaused    EventType = "paused"
	EventResumed   EventType = "resumed"
	EventCanceled  EventType = "canceled"
	EventFailed    EventType = "failed"
	EventCompleted EventType = "completed"
)

// Event is delivered to subscribers on every status or progress change.
// Task is a snapshot taken at emission time; holding on to it is safe.
type Event struct {
	Type EventType
	Task Task
}
