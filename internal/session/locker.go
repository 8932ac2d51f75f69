package session

import (
	"context"
	"sync"
)

// Locker serializes turns per session. Different sessions never contend.
type Locker struct {
	mu      sync.Mutex
	locks   map[string]*sessionLock
	observe func(active int)
}

type sessionLock struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int
}

// NewLocker creates an empty locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*sessionLock)}
}

// Lock blocks until the session's lock is held or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, id string) (func(), error) {
	l.mu.Lock()
	sl, ok := l.locks[id]
	if !ok {
		sl = &sessionLock{ch: make(chan struct{}, 1)}
		l.locks[id] = sl
	}
	sl.refs++
	l.notify()
	l.mu.Unlock()

	select {
	case sl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(id, sl)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-sl.ch
			l.release(id, sl)
		})
	}, nil
}

func (l *Locker) release(id string, sl *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(l.locks, id)
	}
	l.notify()
}

// Observe registers fn to receive the Active count whenever it changes. fn
// runs under the locker's mutex and must not call back into the locker.
func (l *Locker) Observe(fn func(active int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observe = fn
}

func (l *Locker) notify() {
	if l.observe != nil {
		l.observe(len(l.locks))
	}
}

// Active returns the number of sessions with a holder or waiter.
func (l *Locker) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
