package scheduler

import "sort"

// Ready returns copies of all tasks in state TaskPending whose dependencies
// have ALL succeeded, sorted by ID. A task with a dependency in any other
// terminal state is never ready; see Doomed.
func (g *Graph) Ready() []*Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ready := []*Task{}

	for _, task := range g.tasks {
		if task.State != TaskPending {
			continue
		}

		allSucceeded := true
		for _, depID := range task.DependsOn {
			dep, exists := g.tasks[depID]
			if !exists || dep.State != TaskSucceeded {
				allSucceeded = false
				break
			}
		}

		if allSucceeded {
			ready = append(ready, cloneTask(task))
		}
	}

	sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
	return ready
}

// Doomed identifies pending tasks that can never run: at least one
// dependency ended Failed, Skipped, or Cancelled. Each entry names the task
// and the first blocking dependency in the task's declared order. Results
// are sorted by task ID so skip cascades propagate deterministically.
func (g *Graph) Doomed() []DoomedTask {
	g.mu.RLock()
	defer g.mu.RUnlock()

	doomed := []DoomedTask{}

	for _, task := range g.tasks {
		if task.State != TaskPending {
			continue
		}

		for _, depID := range task.DependsOn {
			dep, exists := g.tasks[depID]
			if !exists {
				continue
			}
			if dep.State == TaskFailed || dep.State == TaskSkipped || dep.State == TaskCancelled {
				doomed = append(doomed, DoomedTask{ID: task.ID, BlockedBy: depID})
				break
			}
		}
	}

	sort.Slice(doomed, func(i, j int) bool { return doomed[i].ID < doomed[j].ID })
	return doomed
}

// DoomedTask names a pending task whose dependency chain is broken.
type DoomedTask struct {
	ID        string // The task that can never run
	BlockedBy string // The dependency that did not succeed
}
