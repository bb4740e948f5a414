package scheduler

import (
	"errors"
	"testing"
)

func taskIDs(tasks []*Task) []string {
	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	return ids
}

// TestReady verifies readiness requires every dependency to have succeeded.
func TestReady(t *testing.T) {
	g, err := Build(
		&Task{ID: "A"},
		&Task{ID: "B"},
		&Task{ID: "C", DependsOn: []string{"A", "B"}},
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	ready := taskIDs(g.Ready())
	if len(ready) != 2 || ready[0] != "A" || ready[1] != "B" {
		t.Fatalf("expected [A B], got %v", ready)
	}

	// One dependency done is not enough.
	_ = g.MarkReady("A")
	_ = g.MarkRunning("A")
	_ = g.MarkSucceeded("A", "", 1, 0)
	for _, id := range taskIDs(g.Ready()) {
		if id == "C" {
			t.Fatal("C became ready with only one of two dependencies succeeded")
		}
	}

	_ = g.MarkReady("B")
	_ = g.MarkRunning("B")
	_ = g.MarkSucceeded("B", "", 1, 0)
	ready = taskIDs(g.Ready())
	if len(ready) != 1 || ready[0] != "C" {
		t.Fatalf("expected [C], got %v", ready)
	}
}

// TestReadyExcludesNonPending verifies only pending tasks are reported.
func TestReadyExcludesNonPending(t *testing.T) {
	g, err := Build(&Task{ID: "A"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_ = g.MarkReady("A")
	if got := g.Ready(); len(got) != 0 {
		t.Errorf("expected no ready tasks after promotion, got %v", taskIDs(got))
	}
}

// TestDoomed verifies tasks downstream of a failure are detected, including
// transitively once the skip is applied.
func TestDoomed(t *testing.T) {
	g, err := Build(
		&Task{ID: "A"},
		&Task{ID: "B", DependsOn: []string{"A"}},
		&Task{ID: "C", DependsOn: []string{"B"}},
		&Task{ID: "D"},
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_ = g.MarkReady("A")
	_ = g.MarkRunning("A")
	_ = g.MarkFailed("A", ReasonFatal, errors.New("boom"), 1, 0)

	doomed := g.Doomed()
	if len(doomed) != 1 || doomed[0].ID != "B" || doomed[0].BlockedBy != "A" {
		t.Fatalf("expected B blocked by A, got %v", doomed)
	}

	// Applying the skip dooms the next level.
	_ = g.MarkSkipped("B", "A")
	doomed = g.Doomed()
	if len(doomed) != 1 || doomed[0].ID != "C" || doomed[0].BlockedBy != "B" {
		t.Fatalf("expected C blocked by B, got %v", doomed)
	}

	_ = g.MarkSkipped("C", "B")
	if doomed = g.Doomed(); len(doomed) != 0 {
		t.Fatalf("expected no doomed tasks, got %v", doomed)
	}

	// D is unrelated and still ready.
	found := false
	for _, id := range taskIDs(g.Ready()) {
		if id == "D" {
			found = true
		}
	}
	if !found {
		t.Error("unrelated task D should remain ready")
	}
}

// TestDoomedDeterministicOrder verifies doomed tasks come back sorted by ID.
func TestDoomedDeterministicOrder(t *testing.T) {
	g, err := Build(
		&Task{ID: "root"},
		&Task{ID: "z", DependsOn: []string{"root"}},
		&Task{ID: "a", DependsOn: []string{"root"}},
		&Task{ID: "m", DependsOn: []string{"root"}},
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_ = g.MarkReady("root")
	_ = g.MarkRunning("root")
	_ = g.MarkFailed("root", ReasonFatal, errors.New("boom"), 1, 0)

	doomed := g.Doomed()
	if len(doomed) != 3 {
		t.Fatalf("expected 3 doomed tasks, got %d", len(doomed))
	}
	for i, want := range []string{"a", "m", "z"} {
		if doomed[i].ID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, doomed[i].ID)
		}
	}
}

// TestSkippedDependencyDooms verifies a skipped dependency blocks dependents
// the same way a failed one does.
func TestSkippedDependencyDooms(t *testing.T) {
	g, err := Build(
		&Task{ID: "A"},
		&Task{ID: "B", DependsOn: []string{"A"}},
	)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	_ = g.MarkSkipped("A", "upstream")
	doomed := g.Doomed()
	if len(doomed) != 1 || doomed[0].ID != "B" {
		t.Fatalf("expected B doomed by skipped A, got %v", doomed)
	}
}
