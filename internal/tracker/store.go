// Package tracker holds the authoritative in-memory roster of tracked points.
//
// Positions are always stored in normalized internal coordinates; scene
// conversion happens at the transport edges. Store is safe for concurrent use
// and every operation is atomic with respect to the others.
package tracker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotFound is returned when removing an id that is not in the roster.
	ErrNotFound = errors.New("tracker not found")
	// ErrAlreadyExists is returned when adding an id that is already in the roster.
	ErrAlreadyExists = errors.New("tracker already exists")
)

// State is the position of a single tracker in internal coordinates.
type State struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
}

// Store maps tracker ids to their latest state.
type Store struct {
	mu       sync.RWMutex
	trackers map[int]State
}

// NewStore returns a store seeded with the provided states.
func NewStore(initial ...State) *Store {
	s := &Store{trackers: make(map[int]State, len(initial))}
	for _, st := range initial {
		s.trackers[st.ID] = st
	}
	return s
}

// Roster builds count trackers with ids 0..count-1 at the given position.
func Roster(count int, x, y, z float64) []State {
	if count < 0 {
		count = 0
	}
	out := make([]State, count)
	for i := range out {
		out[i] = State{ID: i, X: x, Y: y, Z: z}
	}
	return out
}

// All returns a snapshot of every tracker ordered by id.
func (s *Store) All() []State {
	s.mu.RLock()
	out := make([]State, 0, len(s.trackers))
	for _, st := range s.trackers {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the state for id.
func (s *Store) Get(id int) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.trackers[id]
	return st, ok
}

// Len reports the number of trackers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trackers)
}

// Upsert replaces the position for st.ID, creating the tracker if needed.
func (s *Store) Upsert(st State) {
	s.mu.Lock()
	s.trackers[st.ID] = st
	s.mu.Unlock()
}

// Add inserts a new tracker and fails if the id is taken.
func (s *Store) Add(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trackers[st.ID]; exists {
		return fmt.Errorf("%w: id %d", ErrAlreadyExists, st.ID)
	}
	s.trackers[st.ID] = st
	return nil
}

// Remove deletes the tracker and fails if it is absent.
func (s *Store) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trackers[id]; !exists {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	delete(s.trackers, id)
	return nil
}
