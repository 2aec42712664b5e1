// Package main - obstacles.go
//
// ObstacleSet is the session-lifetime negative cache of tiles the character
// failed to enter. It starts empty each run, only grows during it, and is
// never persisted.
// The set plays the role the avoided-area list plays for mob clicks: a place
// that did not work once is not offered again.
package main

import "sync"

// ObstacleSet is a grow-only set of blocked coordinates.
//
// The director's goroutine is the only writer; the mutex lets status
// reporting read the size from other goroutines.
type ObstacleSet struct {
	cells map[Coordinate]struct{}
	mu    sync.RWMutex
}

// NewObstacleSet creates an empty set
func NewObstacleSet() *ObstacleSet {
	return &ObstacleSet{cells: make(map[Coordinate]struct{})}
}

// Add marks c as blocked. It reports whether c was new.
func (s *ObstacleSet) Add(c Coordinate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cells[c]; ok {
		return false
	}
	s.cells[c] = struct{}{}
	return true
}

// Contains reports whether c is blocked
func (s *ObstacleSet) Contains(c Coordinate) bool {
	if s == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cells[c]
	return ok
}

// Len returns the number of blocked cells
func (s *ObstacleSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cells)
}

// Clear empties the set. Only called between runs.
func (s *ObstacleSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells = make(map[Coordinate]struct{})
}
