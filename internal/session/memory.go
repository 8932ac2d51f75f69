package session

import (
	"context"
	"sync"

	"github.com/lukasbauer/sahayak/internal/dialogue"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]dialogue.State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]dialogue.State)}
}

func (s *MemoryStore) Load(_ context.Context, id string) (dialogue.State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[id]
	if !ok {
		return dialogue.State{}, false, nil
	}
	return state.Clone(), true, nil
}

func (s *MemoryStore) Save(_ context.Context, id string, state dialogue.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = state.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
