package httpapi

import (
	"context"
	"sync"
	"sync/atomic"
)

// TurnRegistry tracks in-flight conversation turns and supports graceful
// draining: once draining starts, new turns are rejected while running ones
// finish.
//
// mu makes the draining check and wg.Add in Add atomic, so no turn can slip
// in between StartDraining and Wait.
type TurnRegistry struct {
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
	count    atomic.Int64
}

// NewTurnRegistry creates a new TurnRegistry.
func NewTurnRegistry() *TurnRegistry {
	return &TurnRegistry{}
}

// Add registers a new turn. It returns false if the registry is draining.
func (tr *TurnRegistry) Add() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.draining {
		return false
	}
	tr.wg.Add(1)
	tr.count.Add(1)
	return true
}

// Done marks a turn as finished. Must be called exactly once per successful Add.
func (tr *TurnRegistry) Done() {
	tr.count.Add(-1)
	tr.wg.Done()
}

// StartDraining makes all future Add calls return false.
func (tr *TurnRegistry) StartDraining() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.draining = true
}

// IsDraining reports whether the registry is in draining mode.
func (tr *TurnRegistry) IsDraining() bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.draining
}

// ActiveCount returns the number of in-flight turns.
func (tr *TurnRegistry) ActiveCount() int64 {
	return tr.count.Load()
}

// Wait blocks until all in-flight turns are done or ctx expires.
func (tr *TurnRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		tr.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
