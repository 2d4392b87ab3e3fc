package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/carsearch/internal/store"
)

// StateStore keeps hysteresis state in a map. State is lost on restart.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]store.HysteresisState
}

// NewStateStore constructs an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]store.HysteresisState)}
}

// GetState returns the state for key or store.ErrNotFound.
func (s *StateStore) GetState(_ context.Context, key string) (store.HysteresisState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[key]
	if !ok {
		return store.HysteresisState{}, store.ErrNotFound
	}
	return st, nil
}

// SetState overwrites the state for key.
func (s *StateStore) SetState(_ context.Context, key string, state store.HysteresisState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state
	return nil
}

// Len reports how many keys have state.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
