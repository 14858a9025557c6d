package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vhoang/stockguard/internal/port"
)

// Notify is the notification-based distributed lock. Ownership and TTL work
// exactly as in Spin, but contenders subscribe to a release channel and
// re-attempt acquisition on signal instead of polling, bounding store load
// to the number of release events. A fallback timer guards against missed
// notifications; wake-ups are best effort, not FIFO.
type Notify struct {
	store    port.LockStore
	ttl      time.Duration
	fallback time.Duration
}

func NewNotify(store port.LockStore, ttl, fallback time.Duration) *Notify {
	return &Notify{store: store, ttl: ttl, fallback: fallback}
}

func (n *Notify) Name() string { return "notify" }

func releaseChannel(key string) string { return "unlock:" + key }

func (n *Notify) Acquire(ctx context.Context, key string) (*Handle, error) {
	token := uuid.NewString()

	h, ok, err := n.try(ctx, key, token)
	if err != nil || ok {
		return h, err
	}

	// Subscribe before re-attempting so a release landing between the failed
	// attempt and the wait cannot be missed.
	events, stop, err := n.store.Subscribe(ctx, releaseChannel(key))
	if err != nil {
		return nil, fmt.Errorf("notify subscribe %s: %w", key, err)
	}
	defer stop()

	fallback := time.NewTimer(n.fallback)
	defer fallback.Stop()

	for {
		h, ok, err := n.try(ctx, key, token)
		if err != nil || ok {
			return h, err
		}

		if !fallback.Stop() {
			select {
			case <-fallback.C:
			default:
			}
		}
		fallback.Reset(n.fallback)

		select {
		case <-events:
		case <-fallback.C:
			// Missed-notification safety net: re-attempt anyway.
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		}
	}
}

func (n *Notify) try(ctx context.Context, key, token string) (*Handle, bool, error) {
	ok, err := n.store.SetIfAbsent(ctx, key, token, n.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("notify acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return &Handle{Key: key, Token: token, TTL: n.ttl, ExpiresAt: time.Now().Add(n.ttl)}, true, nil
}

func (n *Notify) Release(ctx context.Context, h *Handle, opErr error) error {
	if err := releaseOwned(ctx, n.store, h); err != nil {
		return err
	}
	// Publish regardless of who ended up owning the key; a spurious wake-up
	// costs one failed re-attempt, a missed one costs a fallback interval.
	if err := n.store.Publish(ctx, releaseChannel(h.Key)); err != nil {
		return fmt.Errorf("notify release publish %s: %w", h.Key, err)
	}
	return nil
}
