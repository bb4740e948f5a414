package scheduler

import (
	"sort"
	"strings"
)

// ResourceLock names a side-effect domain a task may mutate or require
// exclusively. The set of values is open: the constants below cover the
// built-in domains, but callers may declare their own.
type ResourceLock string

const (
	LockFilesystemWrite ResourceLock = "fs:write"
	LockGit             ResourceLock = "git"
	LockShell           ResourceLock = "shell"
	LockNetwork         ResourceLock = "network"
	LockMemory          ResourceLock = "memory"
)

// LockSet is a set of resource locks. The zero value (nil) is a valid empty
// set and marks a task as read-only: it conflicts with nothing.
type LockSet map[ResourceLock]struct{}

// NewLockSet builds a LockSet from the given locks.
func NewLockSet(locks ...ResourceLock) LockSet {
	if len(locks) == 0 {
		return nil
	}
	s := make(LockSet, len(locks))
	for _, l := range locks {
		s[l] = struct{}{}
	}
	return s
}

// Overlaps reports whether the two sets share any lock.
func (s LockSet) Overlaps(other LockSet) bool {
	// Iterate the smaller set.
	if len(other) < len(s) {
		s, other = other, s
	}
	for l := range s {
		if _, ok := other[l]; ok {
			return true
		}
	}
	return false
}

// Add inserts every lock from other into s.
func (s LockSet) Add(other LockSet) {
	for l := range other {
		s[l] = struct{}{}
	}
}

// Remove deletes every lock in other from s.
func (s LockSet) Remove(other LockSet) {
	for l := range other {
		delete(s, l)
	}
}

// Clone returns an independent copy of s.
func (s LockSet) Clone() LockSet {
	if s == nil {
		return nil
	}
	cp := make(LockSet, len(s))
	for l := range s {
		cp[l] = struct{}{}
	}
	return cp
}

// String renders the locks in sorted order, for logs and errors.
func (s LockSet) String() string {
	if len(s) == 0 {
		return "(none)"
	}
	names := make([]string, 0, len(s))
	for l := range s {
		names = append(names, string(l))
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}
