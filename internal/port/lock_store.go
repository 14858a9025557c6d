package port

import (
	"context"
	"time"
)

// LockStore is the shared key-value store backing the distributed lock
// strategies. Implementations must use the store's native atomic primitives;
// read-then-write sequences would reintroduce the race the lock exists to
// prevent.
type LockStore interface {
	// SetIfAbsent atomically creates key with the owner token and TTL,
	// returning false when the key already exists.
	SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error)

	// CompareAndDelete deletes key only while it still holds token,
	// returning false when the key is absent or owned by someone else.
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)

	// Publish broadcasts a release event on channel.
	Publish(ctx context.Context, channel string) error

	// Subscribe delivers release events on channel until stop is called.
	// Events are signals, not payloads; a slow receiver drops rather than
	// blocks the publisher.
	Subscribe(ctx context.Context, channel string) (events <-chan struct{}, stop func(), err error)
}
