// Package inflight tracks which files are currently being processed so a
// burst of filesystem events for the same file triggers exactly one run.
package inflight

import "sync"

// Set is a concurrency-safe membership set keyed by path.
// The zero value is not usable; call NewSet.
type Set struct {
	mu      sync.Mutex
	members map[string]struct{}
}

// NewSet returns an empty in-flight set.
func NewSet() *Set {
	return &Set{members: make(map[string]struct{})}
}

// TryAcquire claims the path for processing. It returns false when the
// path is already claimed by another worker.
func (s *Set) TryAcquire(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.members[path]; held {
		return false
	}
	s.members[path] = struct{}{}
	return true
}

// Release returns the path to the available state. Releasing a path that
// is not held is a no-op.
func (s *Set) Release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members, path)
}

// Len reports how many paths are currently in flight.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}
