// Package matchlock serialises work on a single match while letting different
// matches proceed in parallel.
package matchlock

import (
	"context"
	"sync"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// Locks is a registry of per-match mutual exclusion scopes. The zero value
// is not usable; call New.
type Locks struct {
	mu      sync.Mutex
	entries map[int64]*entry
}

// New returns an empty registry.
func New() *Locks {
	return &Locks{entries: make(map[int64]*entry)}
}

// Lock blocks until the scope for matchID is held or ctx is done. The
// returned function releases the scope and must be called exactly once.
func (l *Locks) Lock(ctx context.Context, matchID int64) (func(), error) {
	e := l.acquire(matchID)
	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.release(matchID)
			})
		}, nil
	case <-ctx.Done():
		l.release(matchID)
		return nil, ctx.Err()
	}
}

// Held returns the number of matches with a holder or waiter.
func (l *Locks) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Locks) acquire(matchID int64) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[matchID]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.entries[matchID] = e
	}
	e.refs++
	return e
}

func (l *Locks) release(matchID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[matchID]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, matchID)
	}
}
