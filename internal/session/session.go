// Package session stores conversation state keyed by session identifier.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lukasbauer/sahayak/internal/dialogue"
)

// Store holds one conversation state per session. Implementations never
// share state between sessions and never hand out references into their
// own storage.
type Store interface {
	// Load returns the state for id; ok is false when the session is unknown.
	Load(ctx context.Context, id string) (state dialogue.State, ok bool, err error)
	Save(ctx context.Context, id string, state dialogue.State) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh random session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id is acceptable as a session key.
func ValidID(id string) bool {
	return id != "" && len(id) <= 128 && strings.TrimSpace(id) == id && !strings.ContainsAny(id, "/\x00")
}

func encode(state dialogue.State) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode session state: %w", err)
	}
	return data, nil
}

func decode(data []byte) (dialogue.State, error) {
	var state dialogue.State
	if err := json.Unmarshal(data, &state); err != nil {
		return dialogue.State{}, fmt.Errorf("decode session state: %w", err)
	}
	return state, nil
}
