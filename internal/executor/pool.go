// Package executor runs individual tasks: one capability invocation per
// attempt, bounded by the task's timeout, wrapped in its retry policy and an
// optional per-capability circuit breaker.
//
// The pool itself holds no scheduling state. Which tasks run, and when, is
// the controller's job; the pool's contract is "given a task, produce its
// terminal result".
package executor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/taskforge/taskforge/internal/capability"
	"github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/scheduler"
)

// Outcome pairs a task with its terminal result, delivered to the
// controller's completion channel.
type Outcome struct {
	TaskID string
	Result scheduler.TaskResult
}

// Config configures a Pool. Registry is required; Breakers and Bus are
// optional.
type Config struct {
	Registry *capability.Registry
	Breakers *BreakerRegistry // nil disables circuit breaking
	Bus      *events.Bus      // nil disables retry events
}

// Pool executes tasks. It is safe for concurrent use; the controller runs
// one Run call per in-flight task.
type Pool struct {
	registry *capability.Registry
	breakers *BreakerRegistry
	bus      *events.Bus
}

// NewPool creates a Pool from cfg.
func NewPool(cfg Config) *Pool {
	return &Pool{
		registry: cfg.Registry,
		breakers: cfg.Breakers,
		bus:      cfg.Bus,
	}
}

// Run executes the task's capability through its retry loop and returns the
// terminal result. It blocks until the task succeeds, fails, or observes
// cancellation; the caller decides on what goroutine it runs.
func (p *Pool) Run(ctx context.Context, t *scheduler.Task) scheduler.TaskResult {
	start := time.Now()

	handler, ok := p.registry.Lookup(t.Capability.Name)
	if !ok {
		return scheduler.TaskResult{
			State:   scheduler.TaskFailed,
			Reason:  scheduler.ReasonFatal,
			Err:     fmt.Errorf("no capability registered for %q", t.Capability.Name),
			Elapsed: time.Since(start),
		}
	}

	// The backoff policy drives delay growth; jitter is additive per the
	// task's policy, so RandomizationFactor stays 0.
	pol := t.Retry
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = pol.BaseDelay
	exp.Multiplier = pol.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.MaxInterval = pol.MaxDelay
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = backoff.DefaultMaxInterval
	}
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0 // bounded by attempt count, not wall clock
	exp.Reset()

	maxAttempts := pol.Attempts()

	for attempt := 1; ; attempt++ {
		output, reason, err := p.attempt(ctx, t, handler)
		if err == nil {
			return scheduler.TaskResult{
				State:    scheduler.TaskSucceeded,
				Output:   output,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}

		if reason == scheduler.ReasonCancelled {
			return scheduler.TaskResult{
				State:    scheduler.TaskCancelled,
				Reason:   scheduler.ReasonCancelled,
				Err:      err,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}

		if p.classify(t, reason, err) == scheduler.FailureFatal {
			if reason == scheduler.ReasonTransient {
				reason = scheduler.ReasonFatal
			}
			return scheduler.TaskResult{
				State:    scheduler.TaskFailed,
				Reason:   reason,
				Err:      err,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}

		if attempt >= maxAttempts {
			return scheduler.TaskResult{
				State:    scheduler.TaskFailed,
				Reason:   reason,
				Err:      fmt.Errorf("retries exhausted after %d attempts: %w", attempt, err),
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}

		delay := exp.NextBackOff()
		if delay == backoff.Stop {
			delay = 0
		}
		if pol.JitterBound > 0 {
			delay += time.Duration(rand.Int63n(int64(pol.JitterBound) + 1))
		}

		if p.bus != nil {
			p.bus.Publish(events.TopicTask, events.TaskRetryingEvent{
				ID:        t.ID,
				Attempt:   attempt,
				Delay:     delay,
				Err:       err,
				Timestamp: time.Now(),
			})
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return scheduler.TaskResult{
				State:    scheduler.TaskCancelled,
				Reason:   scheduler.ReasonCancelled,
				Err:      ctx.Err(),
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}
	}
}

// attempt makes exactly one capability invocation under the per-attempt
// timeout and maps the error to a failure reason.
func (p *Pool) attempt(ctx context.Context, t *scheduler.Task, h capability.Handler) (string, scheduler.Reason, error) {
	// Never invoke the handler once the run is aborted.
	if err := ctx.Err(); err != nil {
		return "", scheduler.ReasonCancelled, err
	}

	attemptCtx := ctx
	cancel := func() {}
	if t.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, t.Timeout)
	}
	defer cancel()

	var res capability.Result
	var err error
	if p.breakers != nil {
		cb := p.breakers.Get(t.Capability.Name)
		var out any
		out, err = cb.Execute(func() (any, error) {
			return h.Execute(attemptCtx, t.Capability.Args)
		})
		if err == nil {
			res = out.(capability.Result)
		}
	} else {
		res, err = h.Execute(attemptCtx, t.Capability.Args)
	}

	if err == nil {
		return res.Output, scheduler.ReasonNone, nil
	}

	switch {
	case ctx.Err() != nil:
		// The run itself was aborted; the attempt outcome is cancellation
		// regardless of what the handler returned.
		return "", scheduler.ReasonCancelled, err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return "", scheduler.ReasonTimeout, fmt.Errorf("attempt exceeded %v budget: %w", t.Timeout, err)
	case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
		// Breaker is open: retrying immediately cannot help.
		return "", scheduler.ReasonFatal, err
	default:
		return "", scheduler.ReasonTransient, err
	}
}

// classify applies the task's retry classifier. Timeouts follow the same
// classification path as any other error; breaker-open is always fatal.
func (p *Pool) classify(t *scheduler.Task, reason scheduler.Reason, err error) scheduler.FailureClass {
	if reason == scheduler.ReasonFatal {
		return scheduler.FailureFatal
	}
	if t.Retry.Classify != nil {
		return t.Retry.Classify(err)
	}
	return scheduler.FailureTransient
}
