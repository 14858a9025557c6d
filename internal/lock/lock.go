// Package lock provides the mutual-exclusion strategies that protect the
// inventory decrement's critical section: in-process, store-row pessimistic,
// optimistic version-checked, MySQL named advisory, and Redis key-value in
// spin and notify variants. All five share one contract so callers can swap
// them at configuration time.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/vhoang/stockguard/internal/port"
)

var (
	// ErrLockTimeout reports that exclusivity was not obtained within the
	// acquisition bound. Retryable by the caller.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	// ErrRetriesExhausted reports a RetryPolicy whose attempt budget ran out.
	ErrRetriesExhausted = errors.New("retry budget exhausted")
)

// Strategy is the common contract over all five exclusion variants.
type Strategy interface {
	Name() string

	// Acquire obtains exclusive access to key, blocking no longer than the
	// context allows. A nil error means the caller holds the key.
	Acquire(ctx context.Context, key string) (*Handle, error)

	// Release finalizes the hold on every exit path. opErr is the outcome of
	// the protected operation: transactional strategies commit when opErr is
	// nil and roll back otherwise; the other strategies ignore it.
	Release(ctx context.Context, h *Handle, opErr error) error
}

// Handle represents one acquisition. Only the acquiring attempt holds the
// owner token, so an expired holder cannot release a lock re-acquired by
// someone else.
type Handle struct {
	Key       string
	Token     string
	TTL       time.Duration
	ExpiresAt time.Time

	tx    port.ResourceTx
	named port.NamedLock
}

// Tx returns the transaction scoping a pessimistic hold, or nil.
func (h *Handle) Tx() port.ResourceTx {
	if h == nil {
		return nil
	}
	return h.tx
}

// Expired reports whether a TTL-bounded hold has lapsed. Holds without a
// TTL never expire.
func (h *Handle) Expired() bool {
	return !h.ExpiresAt.IsZero() && time.Now().After(h.ExpiresAt)
}
