package runner

import (
	"time"

	"github.com/taskforge/taskforge/internal/scheduler"
)

// Outcome is the overall result of a run.
type Outcome int

const (
	OutcomeAllSucceeded Outcome = iota
	OutcomePartialFailure
	OutcomeCancelled
)

// String returns the lowercase name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAllSucceeded:
		return "all-succeeded"
	case OutcomePartialFailure:
		return "partial-failure"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// RunResult aggregates every task's terminal result plus the overall
// outcome. A caller can distinguish "never ran because a dependency failed"
// (TaskSkipped) from "ran and failed" (TaskFailed with attempts recorded)
// from "aborted" (TaskCancelled).
type RunResult struct {
	RunID   string
	Outcome Outcome
	Tasks   map[string]scheduler.TaskResult
	Elapsed time.Duration
}

// Failed returns the IDs of tasks that ended in TaskFailed, sorted order not
// guaranteed.
func (r *RunResult) Failed() []string {
	var ids []string
	for id, res := range r.Tasks {
		if res.State == scheduler.TaskFailed {
			ids = append(ids, id)
		}
	}
	return ids
}
