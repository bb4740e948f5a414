// Package runner drives a task graph to resolution: it asks the graph who is
// ready, the conflict scheduler who may run together, dispatches to the
// executor pool, and folds completion events back into graph state until no
// task remains pending or running.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/taskforge/taskforge/internal/capability"
	"github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/history"
	"github.com/taskforge/taskforge/internal/scheduler"
)

// Gate is an optional permission predicate consulted once per task before
// its first dispatch. A denied task is marked failed with
// ReasonPermissionDenied and never reaches the executor pool.
type Gate interface {
	Allowed(t *scheduler.Task) bool
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(t *scheduler.Task) bool

func (f GateFunc) Allowed(t *scheduler.Task) bool { return f(t) }

// Config configures a Controller.
type Config struct {
	Concurrency    int                       // Max concurrent tasks (default 4)
	RunTimeout     time.Duration             // Whole-run budget; 0 disables
	AbortOnFailure bool                      // First TaskFailed cancels the run
	Registry       *capability.Registry      // Required
	Gate           Gate                      // Optional permission gate
	Breakers       *executor.BreakerRegistry // Optional per-capability circuit breakers
	Bus            *events.Bus               // Optional lifecycle event stream
	History        history.Store             // Optional run-record persistence
}

// Controller owns one graph for the duration of one run.
//
// The controller loop is single-threaded: task bodies run in parallel on
// pool goroutines, but every state transition happens here in response to
// completion events, so the graph needs no locking beyond its own method
// serialization.
type Controller struct {
	cfg   Config
	graph *scheduler.Graph
	pool  *executor.Pool

	held     scheduler.LockSet           // union of locks of in-flight tasks
	inflight map[string]scheduler.LockSet // taskID -> its locks
	cause    string                       // why the run was cancelled, if it was
}

// New creates a controller for the given graph.
func New(cfg Config, g *scheduler.Graph) *Controller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Controller{
		cfg:   cfg,
		graph: g,
		pool: executor.NewPool(executor.Config{
			Registry: cfg.Registry,
			Breakers: cfg.Breakers,
			Bus:      cfg.Bus,
		}),
		held:     make(scheduler.LockSet),
		inflight: make(map[string]scheduler.LockSet),
	}
}

// Run resolves the graph: every task ends Succeeded, Failed, Skipped, or
// Cancelled. The returned error is non-nil only for configuration problems
// detected before any task runs; execution failures are reported through the
// RunResult, not the error.
func (c *Controller) Run(ctx context.Context) (*RunResult, error) {
	if c.cfg.Registry == nil {
		return nil, errors.New("runner: no capability registry configured")
	}
	if _, err := c.graph.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if c.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.cfg.RunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	eg, taskCtx := errgroup.WithContext(runCtx)
	completions := make(chan executor.Outcome)

	cancelled := false

	for {
		// Cascade skips before anything else: a task whose dependency
		// failed/skipped/cancelled must never be reported ready.
		c.cascadeSkips()

		// A cancelled run dispatches nothing further.
		if runCtx.Err() != nil {
			c.shutdown(runID, runCtx, completions)
			cancelled = true
			break
		}

		// Promote newly ready tasks.
		for _, t := range c.graph.Ready() {
			if err := c.graph.MarkReady(t.ID); err != nil {
				log.Printf("ERROR: failed to mark task %q ready: %v", t.ID, err)
			}
		}

		readyTasks := c.graph.InState(scheduler.TaskReady)
		if len(readyTasks) == 0 && len(c.inflight) == 0 {
			break // fully resolved
		}

		dispatched := c.dispatch(taskCtx, eg, completions, readyTasks, cancel)
		if dispatched {
			// Gate denials resolved tasks without executing them; recompute
			// the skip cascade before scheduling again.
			continue
		}

		// Await at least one outcome. The controller never busy-polls.
		select {
		case out := <-completions:
			c.apply(out, cancel)
		case <-runCtx.Done():
			c.shutdown(runID, runCtx, completions)
			cancelled = true
		}

		if cancelled {
			break
		}
	}

	// All pool goroutines have reported by now; Wait is bookkeeping.
	_ = eg.Wait()

	result := c.collect(runID, cancelled, time.Since(start))
	c.publishRun(events.RunCompletedEvent{
		RunID:     runID,
		Outcome:   result.Outcome.String(),
		Duration:  result.Elapsed,
		Timestamp: time.Now(),
	})

	c.record(ctx, start, result)

	return result, nil
}

// dispatch runs one scheduling round. Returns true if it terminally resolved
// any task without executing it (gate denial), which requires a fresh
// readiness pass.
func (c *Controller) dispatch(taskCtx context.Context, eg *errgroup.Group, completions chan<- executor.Outcome, ready []*scheduler.Task, cancel context.CancelFunc) bool {
	picked := scheduler.PickDispatch(ready, c.held, len(c.inflight), c.cfg.Concurrency)

	denied := false
	for _, t := range picked {
		if c.cfg.Gate != nil && !c.cfg.Gate.Allowed(t) {
			err := fmt.Errorf("permission gate rejected task %q", t.ID)
			if markErr := c.graph.MarkFailed(t.ID, scheduler.ReasonPermissionDenied, err, 0, 0); markErr != nil {
				log.Printf("ERROR: failed to mark denied task %q: %v", t.ID, markErr)
			}
			c.publishTask(events.TaskFailedEvent{
				ID:        t.ID,
				Reason:    string(scheduler.ReasonPermissionDenied),
				Err:       err,
				Timestamp: time.Now(),
			})
			denied = true
			if c.cfg.AbortOnFailure {
				c.abort("abort-on-failure", cancel)
			}
			continue
		}

		if err := c.graph.MarkRunning(t.ID); err != nil {
			log.Printf("ERROR: failed to mark task %q running: %v", t.ID, err)
			continue
		}
		c.held.Add(t.Locks)
		c.inflight[t.ID] = t.Locks

		c.publishTask(events.TaskStartedEvent{
			ID:         t.ID,
			Capability: t.Capability.Name,
			Locks:      t.Locks.String(),
			Timestamp:  time.Now(),
		})

		task := t
		eg.Go(func() error {
			res := c.pool.Run(taskCtx, task)
			completions <- executor.Outcome{TaskID: task.ID, Result: res}
			return nil
		})
	}

	c.publishProgress()
	return denied
}

// apply folds one completion back into controller state and releases the
// task's locks.
func (c *Controller) apply(out executor.Outcome, cancel context.CancelFunc) {
	locks, ok := c.inflight[out.TaskID]
	if !ok {
		log.Printf("WARNING: completion for unknown in-flight task %q", out.TaskID)
	}
	c.held.Remove(locks)
	delete(c.inflight, out.TaskID)

	if err := c.graph.Resolve(out.TaskID, out.Result); err != nil {
		log.Printf("ERROR: failed to resolve task %q: %v", out.TaskID, err)
		return
	}

	now := time.Now()
	switch out.Result.State {
	case scheduler.TaskSucceeded:
		c.publishTask(events.TaskSucceededEvent{
			ID:        out.TaskID,
			Attempts:  out.Result.Attempts,
			Duration:  out.Result.Elapsed,
			Timestamp: now,
		})
	case scheduler.TaskFailed:
		c.publishTask(events.TaskFailedEvent{
			ID:        out.TaskID,
			Reason:    string(out.Result.Reason),
			Err:       out.Result.Err,
			Attempts:  out.Result.Attempts,
			Duration:  out.Result.Elapsed,
			Timestamp: now,
		})
		if c.cfg.AbortOnFailure {
			c.abort("abort-on-failure", cancel)
		}
	case scheduler.TaskCancelled:
		c.publishTask(events.TaskCancelledEvent{ID: out.TaskID, Timestamp: now})
	}

	c.publishProgress()
}

// cascadeSkips marks every doomed pending task Skipped, repeating until the
// cascade reaches a fixed point. Skips are applied in sorted id order so the
// propagation order is deterministic across runs.
func (c *Controller) cascadeSkips() {
	for {
		doomed := c.graph.Doomed()
		if len(doomed) == 0 {
			return
		}
		for _, d := range doomed {
			if err := c.graph.MarkSkipped(d.ID, d.BlockedBy); err != nil {
				log.Printf("ERROR: failed to skip task %q: %v", d.ID, err)
				continue
			}
			c.publishTask(events.TaskSkippedEvent{
				ID:        d.ID,
				BlockedBy: d.BlockedBy,
				Timestamp: time.Now(),
			})
		}
		c.publishProgress()
	}
}

// shutdown handles run-level cancellation: drain in-flight tasks (they
// observe the cancelled context at their next suspension point), then mark
// everything still non-terminal as Cancelled.
func (c *Controller) shutdown(runID string, runCtx context.Context, completions <-chan executor.Outcome) {
	cause := c.cause
	if cause == "" {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			cause = "timeout"
		} else {
			cause = "external"
		}
	}
	c.publishRun(events.RunCancelledEvent{RunID: runID, Cause: cause, Timestamp: time.Now()})

	for len(c.inflight) > 0 {
		out := <-completions
		c.apply(out, func() {})
	}

	for _, t := range c.graph.Tasks() {
		if t.State.Terminal() {
			continue
		}
		if err := c.graph.MarkCancelled(t.ID); err != nil {
			log.Printf("ERROR: failed to cancel task %q: %v", t.ID, err)
			continue
		}
		c.publishTask(events.TaskCancelledEvent{ID: t.ID, Timestamp: time.Now()})
	}
	c.publishProgress()
}

// abort requests full cancellation of the run. Idempotent.
func (c *Controller) abort(cause string, cancel context.CancelFunc) {
	if c.cause == "" {
		c.cause = cause
	}
	cancel()
}

// collect builds the RunResult from terminal graph state.
func (c *Controller) collect(runID string, cancelled bool, elapsed time.Duration) *RunResult {
	results := make(map[string]scheduler.TaskResult, c.graph.Len())
	allSucceeded := true
	for _, t := range c.graph.Tasks() {
		if t.Result != nil {
			results[t.ID] = *t.Result
		} else {
			// Should not happen: every task is terminal once the loop exits.
			results[t.ID] = scheduler.TaskResult{State: t.State}
		}
		if t.State != scheduler.TaskSucceeded {
			allSucceeded = false
		}
	}

	outcome := OutcomePartialFailure
	switch {
	case cancelled:
		outcome = OutcomeCancelled
	case allSucceeded:
		outcome = OutcomeAllSucceeded
	}

	return &RunResult{
		RunID:   runID,
		Outcome: outcome,
		Tasks:   results,
		Elapsed: elapsed,
	}
}

// record persists the run if a history store is configured. Persistence
// failures are logged, never surfaced: history is observability, not state.
func (c *Controller) record(ctx context.Context, start time.Time, result *RunResult) {
	if c.cfg.History == nil {
		return
	}

	run := history.RunRecord{
		RunID:      result.RunID,
		Outcome:    result.Outcome.String(),
		StartedAt:  start,
		FinishedAt: start.Add(result.Elapsed),
	}
	tasks := make([]history.TaskRecord, 0, len(result.Tasks))
	for id, res := range result.Tasks {
		rec := history.TaskRecord{
			RunID:    result.RunID,
			TaskID:   id,
			State:    res.State.String(),
			Reason:   string(res.Reason),
			Output:   res.Output,
			Attempts: res.Attempts,
			Elapsed:  res.Elapsed,
		}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		tasks = append(tasks, rec)
	}

	// The run context may already be cancelled; recording still happens.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := c.cfg.History.SaveRun(saveCtx, run, tasks); err != nil {
		log.Printf("WARNING: failed to record run %q: %v", result.RunID, err)
	}
}

func (c *Controller) publishTask(e events.Event) {
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(events.TopicTask, e)
	}
}

func (c *Controller) publishRun(e events.Event) {
	if c.cfg.Bus != nil {
		c.cfg.Bus.Publish(events.TopicRun, e)
	}
}

func (c *Controller) publishProgress() {
	if c.cfg.Bus == nil {
		return
	}
	counts := c.graph.CountByState()
	c.cfg.Bus.Publish(events.TopicRun, events.RunProgressEvent{
		Total:     c.graph.Len(),
		Succeeded: counts[scheduler.TaskSucceeded],
		Running:   counts[scheduler.TaskRunning],
		Failed:    counts[scheduler.TaskFailed],
		Skipped:   counts[scheduler.TaskSkipped],
		Cancelled: counts[scheduler.TaskCancelled],
		Pending:   counts[scheduler.TaskPending] + counts[scheduler.TaskReady],
		Timestamp: time.Now(),
	})
}
