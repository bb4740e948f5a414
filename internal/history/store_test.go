package history

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("NewMemoryStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// TestSaveAndGetRun verifies a round trip of a run and its task results.
func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	run := RunRecord{
		RunID:      "run-1",
		Outcome:    "partial-failure",
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
	}
	tasks := []TaskRecord{
		{RunID: "run-1", TaskID: "build", State: "succeeded", Output: "ok", Attempts: 1, Elapsed: 1200 * time.Millisecond},
		{RunID: "run-1", TaskID: "deploy", State: "failed", Reason: "fatal-failure", Error: "boom", Attempts: 3, Elapsed: 800 * time.Millisecond},
		{RunID: "run-1", TaskID: "notify", State: "skipped", Reason: "dependency-failed"},
	}

	if err := store.SaveRun(ctx, run, tasks); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, gotTasks, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.RunID != "run-1" || got.Outcome != "partial-failure" {
		t.Errorf("unexpected run record: %+v", got)
	}

	// Task records come back sorted by task id.
	if len(gotTasks) != 3 {
		t.Fatalf("expected 3 task records, got %d", len(gotTasks))
	}
	for i, want := range []string{"build", "deploy", "notify"} {
		if gotTasks[i].TaskID != want {
			t.Errorf("position %d: expected %q, got %q", i, want, gotTasks[i].TaskID)
		}
	}

	deploy := gotTasks[1]
	if deploy.State != "failed" || deploy.Reason != "fatal-failure" || deploy.Error != "boom" {
		t.Errorf("unexpected deploy record: %+v", deploy)
	}
	if deploy.Attempts != 3 || deploy.Elapsed != 800*time.Millisecond {
		t.Errorf("unexpected deploy attempts/elapsed: %+v", deploy)
	}
}

// TestGetRunNotFound verifies loading an unknown run fails.
func TestGetRunNotFound(t *testing.T) {
	store := newTestStore(t)

	if _, _, err := store.GetRun(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown run")
	}
}

// TestSaveRunDuplicate verifies the run id is unique.
func TestSaveRunDuplicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := RunRecord{RunID: "run-1", Outcome: "all-succeeded", StartedAt: time.Now(), FinishedAt: time.Now()}
	if err := store.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := store.SaveRun(ctx, run, nil); err == nil {
		t.Error("expected error saving duplicate run id")
	}
}

// TestListRuns verifies ordering and limit.
func TestListRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"old", "middle", "recent"} {
		run := RunRecord{
			RunID:      id,
			Outcome:    "all-succeeded",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 5*time.Second),
		}
		if err := store.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun %q failed: %v", id, err)
		}
	}

	runs, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "recent" || runs[1].RunID != "middle" {
		t.Errorf("expected newest first [recent middle], got [%s %s]", runs[0].RunID, runs[1].RunID)
	}
}
