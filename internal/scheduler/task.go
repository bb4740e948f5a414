package scheduler

import (
	"time"
)

// TaskState represents the current state of a task.
type TaskState int

const (
	TaskPending   TaskState = iota // Waiting for dependencies
	TaskReady                      // All dependencies succeeded, waiting for a slot
	TaskRunning                    // Currently executing
	TaskSucceeded                  // Finished successfully
	TaskFailed                     // Finished with error (retries exhausted, fatal, or denied)
	TaskSkipped                    // Never ran because a dependency failed/skipped/cancelled
	TaskCancelled                  // Run aborted before the task reached a terminal state
)

// String returns the lowercase name of the state.
func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	case TaskSkipped:
		return "skipped"
	case TaskCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the state is one a task never leaves.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskSucceeded, TaskFailed, TaskSkipped, TaskCancelled:
		return true
	}
	return false
}

// FailureClass is the retry classification of a failed attempt.
type FailureClass int

const (
	FailureTransient FailureClass = iota // Retry per the task's policy
	FailureFatal                         // Terminate the task immediately
)

// Classifier decides whether a failed attempt is worth retrying.
type Classifier func(err error) FailureClass

// RetryPolicy controls the executor's retry loop for one task.
// The delay before retry n (1-indexed) is BaseDelay * Multiplier^(n-1),
// clipped to MaxDelay, plus a uniformly random jitter in [0, JitterBound].
type RetryPolicy struct {
	MaxAttempts int           // Total attempts, including the first. <=0 means 1.
	BaseDelay   time.Duration // Delay before the first retry.
	Multiplier  float64       // Backoff growth factor. <=1 means no growth.
	MaxDelay    time.Duration // Cap on the computed delay. 0 means uncapped.
	JitterBound time.Duration // Upper bound of the additive random jitter.
	Classify    Classifier    // nil: everything except cancellation is transient.
}

// Attempts returns the effective total attempt count.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Invocation is an opaque reference to an executable capability. The engine
// never inspects Args; they are handed verbatim to the capability handler.
type Invocation struct {
	Name string
	Args map[string]any
}

// Task represents a unit of work in the graph.
type Task struct {
	ID         string        // Unique identifier within the graph
	Name       string        // Human-readable name (optional)
	Capability Invocation    // What to execute
	Locks      LockSet       // Side-effect domains this task touches
	DependsOn  []string      // Task IDs that must succeed before this task starts
	Timeout    time.Duration // Wall-clock budget per attempt. 0 means no limit.
	Retry      RetryPolicy
	Priority   int // Higher runs earlier when slots are contended

	State  TaskState
	Result *TaskResult // Populated when State becomes terminal
}

// TaskResult records the terminal outcome of a task.
type TaskResult struct {
	State    TaskState
	Reason   Reason        // Why the task failed/skipped/cancelled; ReasonNone on success
	Output   string        // Capability output on success
	Err      error         // Last error on failure
	Attempts int           // Number of attempts actually made
	Elapsed  time.Duration // Wall-clock time from first dispatch to terminal state
}

func cloneTask(task *Task) *Task {
	if task == nil {
		return nil
	}

	cp := *task
	if task.DependsOn != nil {
		cp.DependsOn = append([]string(nil), task.DependsOn...)
	}
	cp.Locks = task.Locks.Clone()
	if task.Result != nil {
		res := *task.Result
		cp.Result = &res
	}
	return &cp
}
