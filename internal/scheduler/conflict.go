package scheduler

import "sort"

// PickDispatch selects the subset of ready tasks to dispatch this round.
//
// Candidates are walked in priority order (descending, ties broken by ID so
// selection is deterministic) and greedily accepted while:
//
//   - the candidate's lock set is disjoint from the locks held by running
//     tasks and by tasks already selected this round, and
//   - inflight + selected stays below the concurrency ceiling.
//
// Read-only tasks (empty lock set) are compatible with everything and only
// bounded by the ceiling. A rejected candidate is simply reconsidered next
// round; it keeps its ready state.
//
// Greedy selection does not find the maximum compatible subset, but it is
// linear, deterministic, and never admits two tasks with overlapping locks,
// which is the property that matters.
//
// The function is pure: held is not mutated and tasks are not reordered in
// place.
func PickDispatch(ready []*Task, held LockSet, inflight, ceiling int) []*Task {
	if ceiling <= 0 || inflight >= ceiling {
		return nil
	}

	candidates := make([]*Task, len(ready))
	copy(candidates, ready)
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		return candidates[i].ID < candidates[j].ID
	})

	taken := held.Clone()
	if taken == nil {
		taken = make(LockSet)
	}

	var selected []*Task
	for _, t := range candidates {
		if inflight+len(selected) >= ceiling {
			break
		}
		if t.Locks.Overlaps(taken) {
			continue
		}
		selected = append(selected, t)
		taken.Add(t.Locks)
	}

	return selected
}
