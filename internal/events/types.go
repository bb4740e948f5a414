package events

import (
	"time"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topic names a stream of related events on the bus.
type Topic string

const (
	TopicTask Topic = "task"
	TopicRun  Topic = "run"
)

// Event type constants
const (
	EventTypeTaskStarted   = "task.started"
	EventTypeTaskSucceeded = "task.succeeded"
	EventTypeTaskFailed    = "task.failed"
	EventTypeTaskRetrying  = "task.retrying"
	EventTypeTaskSkipped   = "task.skipped"
	EventTypeTaskCancelled = "task.cancelled"
	EventTypeRunProgress   = "run.progress"
	EventTypeRunCompleted  = "run.completed"
	EventTypeRunCancelled  = "run.cancelled"
)

// TaskStartedEvent is published when a task is dispatched to the executor.
type TaskStartedEvent struct {
	ID         string
	Capability string
	Locks      string
	Timestamp  time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) TaskID() string    { return e.ID }

// TaskSucceededEvent is published when a task reaches TaskSucceeded.
type TaskSucceededEvent struct {
	ID        string
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskSucceededEvent) EventType() string { return EventTypeTaskSucceeded }
func (e TaskSucceededEvent) TaskID() string    { return e.ID }

// TaskFailedEvent is published when a task reaches TaskFailed.
type TaskFailedEvent struct {
	ID        string
	Reason    string
	Err       error
	Attempts  int
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskFailedEvent) EventType() string { return EventTypeTaskFailed }
func (e TaskFailedEvent) TaskID() string    { return e.ID }

// TaskRetryingEvent is published before each retry attempt.
type TaskRetryingEvent struct {
	ID        string
	Attempt   int // The attempt that just failed (1-indexed)
	Delay     time.Duration
	Err       error
	Timestamp time.Time
}

func (e TaskRetryingEvent) EventType() string { return EventTypeTaskRetrying }
func (e TaskRetryingEvent) TaskID() string    { return e.ID }

// TaskSkippedEvent is published when a task is skipped because a dependency
// did not succeed.
type TaskSkippedEvent struct {
	ID        string
	BlockedBy string
	Timestamp time.Time
}

func (e TaskSkippedEvent) EventType() string { return EventTypeTaskSkipped }
func (e TaskSkippedEvent) TaskID() string    { return e.ID }

// TaskCancelledEvent is published when a run abort cancels a task.
type TaskCancelledEvent struct {
	ID        string
	Timestamp time.Time
}

func (e TaskCancelledEvent) EventType() string { return EventTypeTaskCancelled }
func (e TaskCancelledEvent) TaskID() string    { return e.ID }

// RunProgressEvent is published whenever the per-state tallies change.
type RunProgressEvent struct {
	Total     int
	Succeeded int
	Running   int
	Failed    int
	Skipped   int
	Cancelled int
	Pending   int
	Timestamp time.Time
}

func (e RunProgressEvent) EventType() string { return EventTypeRunProgress }
func (e RunProgressEvent) TaskID() string    { return "" }

// RunCompletedEvent is published once when a run resolves.
type RunCompletedEvent struct {
	RunID     string
	Outcome   string
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) TaskID() string    { return "" }

// RunCancelledEvent is published when a run is aborted, either externally or
// by its own timeout.
type RunCancelledEvent struct {
	RunID     string
	Cause     string // "timeout", "abort-on-failure", or "external"
	Timestamp time.Time
}

func (e RunCancelledEvent) EventType() string { return EventTypeRunCancelled }
func (e RunCancelledEvent) TaskID() string    { return "" }
