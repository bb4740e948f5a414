package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/taskforge/taskforge/internal/scheduler"
)

// Load reads and merges run configuration from global and project paths.
// Order of precedence (highest to lowest): project config, global config,
// defaults. Missing files are not errors; malformed JSON returns an error.
func Load(globalPath, projectPath string) (*RunConfig, error) {
	cfg := DefaultRunConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}

	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}

	return cfg, nil
}

// LoadDefault loads run configuration from conventional paths.
// Global: ~/.taskforge/config.json
// Project: .taskforge/config.json (relative to cwd)
func LoadDefault() (*RunConfig, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".taskforge", "config.json")
	projectPath := filepath.Join(".taskforge", "config.json")

	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges its non-zero fields
// into the base config. Missing files are silently skipped.
func mergeConfigFile(base *RunConfig, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // Missing file is not an error
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded RunConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.Concurrency > 0 {
		base.Concurrency = loaded.Concurrency
	}
	if loaded.RunTimeout > 0 {
		base.RunTimeout = loaded.RunTimeout
	}
	if loaded.AbortOnFailure {
		base.AbortOnFailure = true
	}
	if loaded.HistoryPath != "" {
		base.HistoryPath = loaded.HistoryPath
	}

	return nil
}

// LoadGraph reads a graph file and builds a validated task graph from it.
// Construction fails with a *scheduler.ValidationError on duplicate ids,
// dangling dependencies, or cycles.
func LoadGraph(path string) (*scheduler.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file %s: %w", path, err)
	}

	var spec GraphSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("parsing graph file %s: %w", path, err)
	}

	return BuildGraph(&spec)
}

// BuildGraph converts a GraphSpec into a validated scheduler.Graph.
func BuildGraph(spec *GraphSpec) (*scheduler.Graph, error) {
	tasks := make([]*scheduler.Task, 0, len(spec.Tasks))
	for _, ts := range spec.Tasks {
		if ts.Capability == "" {
			return nil, fmt.Errorf("task %q declares no capability", ts.ID)
		}

		locks := make([]scheduler.ResourceLock, 0, len(ts.Locks))
		for _, l := range ts.Locks {
			locks = append(locks, scheduler.ResourceLock(l))
		}

		task := &scheduler.Task{
			ID:   ts.ID,
			Name: ts.Name,
			Capability: scheduler.Invocation{
				Name: ts.Capability,
				Args: ts.Args,
			},
			Locks:     scheduler.NewLockSet(locks...),
			DependsOn: ts.DependsOn,
			Timeout:   ts.Timeout.Std(),
			Priority:  ts.Priority,
		}
		if ts.Retry != nil {
			task.Retry = scheduler.RetryPolicy{
				MaxAttempts: ts.Retry.MaxAttempts,
				BaseDelay:   ts.Retry.BaseDelay.Std(),
				Multiplier:  ts.Retry.Multiplier,
				MaxDelay:    ts.Retry.MaxDelay.Std(),
				JitterBound: ts.Retry.JitterBound.Std(),
			}
		}
		tasks = append(tasks, task)
	}

	return scheduler.Build(tasks...)
}
