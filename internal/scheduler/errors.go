package scheduler

import "fmt"

// Reason explains why a task reached a non-successful terminal state.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonPermissionDenied Reason = "permission-denied"
	ReasonTransient        Reason = "transient-failure"
	ReasonFatal            Reason = "fatal-failure"
	ReasonTimeout          Reason = "timeout"
	ReasonCancelled        Reason = "cancelled"
	ReasonDependency       Reason = "dependency-failed"
)

// ValidationError reports a malformed graph: duplicate IDs, dangling
// dependencies, or cycles. It is returned at construction time, before any
// task runs.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid task graph: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("invalid task graph: %s", e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
