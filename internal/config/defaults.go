package config

// DefaultRunConfig returns the built-in run configuration: four concurrent
// tasks, no run timeout, keep going past individual failures.
func DefaultRunConfig() *RunConfig {
	return &RunConfig{
		Concurrency: 4,
	}
}
