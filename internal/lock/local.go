package lock

import (
	"context"
	"fmt"
	"sync"
)

// Local enforces exclusivity with a per-key semaphore in process memory.
// It is correct only within one process: a second process holding its own
// Local sees none of these holds. That limitation is the point — it is the
// baseline the store-backed strategies exist to fix.
type Local struct {
	mu   sync.Mutex
	sems map[string]*localSem
}

type localSem struct {
	ch   chan struct{}
	refs int // holders plus waiters; entry is dropped at zero
}

func NewLocal() *Local {
	return &Local{sems: make(map[string]*localSem)}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Acquire(ctx context.Context, key string) (*Handle, error) {
	l.mu.Lock()
	sem, ok := l.sems[key]
	if !ok {
		sem = &localSem{ch: make(chan struct{}, 1)}
		l.sems[key] = sem
	}
	sem.refs++
	l.mu.Unlock()

	select {
	case sem.ch <- struct{}{}:
		return &Handle{Key: key}, nil
	case <-ctx.Done():
		l.drop(key, sem)
		return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
	}
}

func (l *Local) Release(ctx context.Context, h *Handle, opErr error) error {
	l.mu.Lock()
	sem, ok := l.sems[h.Key]
	l.mu.Unlock()
	if !ok {
		return nil
	}
	<-sem.ch
	l.drop(h.Key, sem)
	return nil
}

func (l *Local) drop(key string, sem *localSem) {
	l.mu.Lock()
	sem.refs--
	if sem.refs == 0 {
		delete(l.sems, key)
	}
	l.mu.Unlock()
}
