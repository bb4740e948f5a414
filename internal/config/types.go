package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so config files can say "30s" or "2m".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string ("30s") or a number of
// nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
		return nil
	default:
		return fmt.Errorf("invalid duration value %v", v)
	}
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetrySpec is the declarative form of a task's retry policy.
type RetrySpec struct {
	MaxAttempts int      `json:"max_attempts"`
	BaseDelay   Duration `json:"base_delay,omitempty"`
	Multiplier  float64  `json:"multiplier,omitempty"`
	MaxDelay    Duration `json:"max_delay,omitempty"`
	JitterBound Duration `json:"jitter_bound,omitempty"`
}

// TaskSpec is the declarative form of one task in a graph file.
type TaskSpec struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Capability string         `json:"capability"`
	Args       map[string]any `json:"args,omitempty"`
	Locks      []string       `json:"locks,omitempty"`
	DependsOn  []string       `json:"depends_on,omitempty"`
	Timeout    Duration       `json:"timeout,omitempty"`
	Priority   int            `json:"priority,omitempty"`
	Retry      *RetrySpec     `json:"retry,omitempty"`
}

// GraphSpec is the top-level structure of a graph file.
type GraphSpec struct {
	Tasks []TaskSpec `json:"tasks"`
}

// RunConfig is the top-level run configuration.
type RunConfig struct {
	Concurrency    int      `json:"concurrency"`
	RunTimeout     Duration `json:"run_timeout,omitempty"`
	AbortOnFailure bool     `json:"abort_on_failure,omitempty"`
	HistoryPath    string   `json:"history_path,omitempty"`
}
