package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/toposort"
)

// Graph is a directed acyclic graph of tasks keyed by ID.
//
// A Graph is exclusively owned by one run controller for the duration of a
// run; state transitions go through the Mark* methods, which serialize
// access internally.
type Graph struct {
	mu         sync.RWMutex
	tasks      map[string]*Task    // All tasks indexed by ID
	dependents map[string][]string // Maps taskID -> list of tasks that depend on it
}

// NewGraph creates an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		tasks:      make(map[string]*Task),
		dependents: make(map[string][]string),
	}
}

// Build constructs and validates a graph from the given tasks. It fails with
// a *ValidationError on duplicate IDs, dangling dependencies, or cycles, so
// an invalid graph never reaches a controller.
func Build(tasks ...*Task) (*Graph, error) {
	g := NewGraph()
	for _, t := range tasks {
		if err := g.AddTask(t); err != nil {
			return nil, err
		}
	}
	if _, err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// AddTask adds a task to the graph. Returns a *ValidationError if the task
// ID is empty or already exists.
func (g *Graph) AddTask(task *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if task.ID == "" {
		return validationErrorf("task has empty ID")
	}
	if _, exists := g.tasks[task.ID]; exists {
		return validationErrorf("task with ID %q already exists", task.ID)
	}

	g.tasks[task.ID] = task

	// Build dependents map for efficient downstream lookup
	for _, depID := range task.DependsOn {
		g.dependents[depID] = append(g.dependents[depID], task.ID)
	}

	return nil
}

// Validate runs topological sort using gammazero/toposort.
// Returns ordered task IDs or a *ValidationError if a cycle is detected.
// Also verifies all task IDs in DependsOn exist in the graph.
func (g *Graph) Validate() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	// First, verify all dependencies exist
	for taskID, task := range g.tasks {
		for _, depID := range task.DependsOn {
			if _, exists := g.tasks[depID]; !exists {
				return nil, validationErrorf("task %q depends on non-existent task %q", taskID, depID)
			}
		}
	}

	// Build edges for topological sort
	var edges []toposort.Edge
	for taskID, task := range g.tasks {
		if len(task.DependsOn) == 0 {
			// Task with no dependencies - add edge from nil to ensure it's included
			edges = append(edges, toposort.Edge{nil, taskID})
		} else {
			for _, depID := range task.DependsOn {
				// Edge (depID, taskID) means depID must come before taskID
				edges = append(edges, toposort.Edge{depID, taskID})
			}
		}
	}

	// Run topological sort
	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, &ValidationError{Message: "graph contains cycle", Err: err}
	}

	// Convert []interface{} to []string
	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	// Verify all tasks are in the sorted result (catches disconnected components)
	if len(order) != len(g.tasks) {
		missing := []string{}
		foundMap := make(map[string]bool)
		for _, id := range order {
			foundMap[id] = true
		}
		for taskID := range g.tasks {
			if !foundMap[taskID] {
				missing = append(missing, taskID)
			}
		}
		return nil, validationErrorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}

// MarkReady transitions a pending task to TaskReady.
func (g *Graph) MarkReady(taskID string) error {
	return g.transition(taskID, func(t *Task) error {
		if t.State != TaskPending {
			return fmt.Errorf("task %q is %s, not pending", taskID, t.State)
		}
		t.State = TaskReady
		return nil
	})
}

// MarkRunning transitions a ready task to TaskRunning.
func (g *Graph) MarkRunning(taskID string) error {
	return g.transition(taskID, func(t *Task) error {
		if t.State != TaskReady {
			return fmt.Errorf("task %q is %s, not ready", taskID, t.State)
		}
		t.State = TaskRunning
		return nil
	})
}

// MarkSucceeded records a successful terminal state and its result.
func (g *Graph) MarkSucceeded(taskID, output string, attempts int, elapsed time.Duration) error {
	return g.terminal(taskID, &TaskResult{
		State:    TaskSucceeded,
		Output:   output,
		Attempts: attempts,
		Elapsed:  elapsed,
	})
}

// MarkFailed records a failed terminal state with the reason and last error.
func (g *Graph) MarkFailed(taskID string, reason Reason, err error, attempts int, elapsed time.Duration) error {
	return g.terminal(taskID, &TaskResult{
		State:    TaskFailed,
		Reason:   reason,
		Err:      err,
		Attempts: attempts,
		Elapsed:  elapsed,
	})
}

// MarkSkipped records that a task never ran because of the named dependency.
func (g *Graph) MarkSkipped(taskID, becauseOf string) error {
	return g.terminal(taskID, &TaskResult{
		State:  TaskSkipped,
		Reason: ReasonDependency,
		Err:    fmt.Errorf("dependency %q did not succeed", becauseOf),
	})
}

// MarkCancelled records that the run was aborted before the task finished.
func (g *Graph) MarkCancelled(taskID string) error {
	return g.terminal(taskID, &TaskResult{
		State:  TaskCancelled,
		Reason: ReasonCancelled,
	})
}

// Resolve records a terminal result computed by the executor pool.
func (g *Graph) Resolve(taskID string, res TaskResult) error {
	if !res.State.Terminal() {
		return fmt.Errorf("cannot resolve task %q to non-terminal state %s", taskID, res.State)
	}
	return g.terminal(taskID, &res)
}

func (g *Graph) terminal(taskID string, res *TaskResult) error {
	return g.transition(taskID, func(t *Task) error {
		if t.State.Terminal() {
			return fmt.Errorf("task %q is already terminal (%s)", taskID, t.State)
		}
		t.State = res.State
		t.Result = res
		return nil
	})
}

func (g *Graph) transition(taskID string, fn func(*Task) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	return fn(task)
}

// Get returns a copy of the task by ID.
func (g *Graph) Get(taskID string) (*Task, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	task, exists := g.tasks[taskID]
	if !exists {
		return nil, false
	}
	return cloneTask(task), true
}

// Tasks returns copies of all tasks.
func (g *Graph) Tasks() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	tasks := make([]*Task, 0, len(g.tasks))
	for _, task := range g.tasks {
		tasks = append(tasks, cloneTask(task))
	}
	return tasks
}

// InState returns copies of all tasks currently in the given state, sorted
// by ID.
func (g *Graph) InState(state TaskState) []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var tasks []*Task
	for _, task := range g.tasks {
		if task.State == state {
			tasks = append(tasks, cloneTask(task))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// CountByState tallies tasks per state.
func (g *Graph) CountByState() map[TaskState]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts := make(map[TaskState]int)
	for _, task := range g.tasks {
		counts[task.State]++
	}
	return counts
}

// Unresolved reports whether any task is still in a non-terminal state.
func (g *Graph) Unresolved() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, task := range g.tasks {
		if !task.State.Terminal() {
			return true
		}
	}
	return false
}
