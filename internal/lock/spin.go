package lock

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vhoang/stockguard/internal/port"
)

// Spin is the poll-based distributed lock: an atomic create-if-absent with
// TTL against the lock store, retried on a fixed interval until acquired or
// the deadline elapses. Simple, at the cost of store load proportional to
// contention times polling frequency.
type Spin struct {
	store port.LockStore
	ttl   time.Duration
	retry RetryPolicy
}

func NewSpin(store port.LockStore, ttl time.Duration, retry RetryPolicy) *Spin {
	return &Spin{store: store, ttl: ttl, retry: retry}
}

func (s *Spin) Name() string { return "spin" }

func (s *Spin) Acquire(ctx context.Context, key string) (*Handle, error) {
	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		ok, err := s.store.SetIfAbsent(ctx, key, token, s.ttl)
		if err != nil {
			// A store fault is never treated as an acquired lock.
			return nil, fmt.Errorf("spin acquire %s: %w", key, err)
		}
		if ok {
			return &Handle{Key: key, Token: token, TTL: s.ttl, ExpiresAt: time.Now().Add(s.ttl)}, nil
		}
		if err := s.retry.Wait(ctx, attempt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, err)
		}
	}
}

func (s *Spin) Release(ctx context.Context, h *Handle, opErr error) error {
	return releaseOwned(ctx, s.store, h)
}

// releaseOwned deletes the lock key only while the handle's token still
// owns it. A stale release after TTL expiry is logged and dropped: the
// critical section it guarded has already run, and the key now belongs to
// whoever re-acquired it.
func releaseOwned(ctx context.Context, store port.LockStore, h *Handle) error {
	deleted, err := store.CompareAndDelete(ctx, h.Key, h.Token)
	if err != nil {
		return fmt.Errorf("release %s: %w", h.Key, err)
	}
	if !deleted {
		log.Printf("lock: stale release of %s ignored (hold expired)", h.Key)
	}
	return nil
}
