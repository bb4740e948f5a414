package scheduler

import (
	"testing"
)

// TestLockSetOverlaps exercises disjointness checks.
func TestLockSetOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b LockSet
		want bool
	}{
		{"both empty", nil, nil, false},
		{"empty vs populated", nil, NewLockSet(LockGit), false},
		{"disjoint", NewLockSet(LockGit), NewLockSet(LockShell), false},
		{"shared lock", NewLockSet(LockGit, LockShell), NewLockSet(LockShell), true},
		{"identical", NewLockSet(LockMemory), NewLockSet(LockMemory), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			// Overlap is symmetric.
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps(%s, %s) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

// TestLockSetAddRemove verifies the held-lock bookkeeping operations.
func TestLockSetAddRemove(t *testing.T) {
	held := make(LockSet)
	held.Add(NewLockSet(LockGit, LockShell))
	if len(held) != 2 {
		t.Fatalf("expected 2 locks held, got %d", len(held))
	}

	held.Remove(NewLockSet(LockGit))
	if held.Overlaps(NewLockSet(LockGit)) {
		t.Error("git lock should be released")
	}
	if !held.Overlaps(NewLockSet(LockShell)) {
		t.Error("shell lock should still be held")
	}
}

// TestLockSetClone verifies clones are independent.
func TestLockSetClone(t *testing.T) {
	orig := NewLockSet(LockGit)
	cp := orig.Clone()
	cp.Add(NewLockSet(LockShell))

	if len(orig) != 1 {
		t.Errorf("clone mutation leaked into original: %s", orig)
	}
	if (LockSet)(nil).Clone() != nil {
		t.Error("clone of nil should be nil")
	}
}

// TestLockSetString verifies deterministic rendering.
func TestLockSetString(t *testing.T) {
	if got := (LockSet)(nil).String(); got != "(none)" {
		t.Errorf("expected (none), got %q", got)
	}
	if got := NewLockSet(LockShell, LockGit).String(); got != "git,shell" {
		t.Errorf("expected sorted git,shell, got %q", got)
	}
}
