package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/vhoang/stockguard/internal/port"
)

const namedLockPrefix = "stockguard:"

// Named takes an advisory lock identified purely by name from the resource
// store's lock coordinator (MySQL GET_LOCK). Unlike the pessimistic
// strategy the lock outlives any transaction: it stays held until Release
// or the coordinator's session drops. The protected operation therefore
// runs as its own unit of work on pool connections, independent of the
// lock's session.
type Named struct {
	store port.NamedLockStore
	wait  time.Duration
}

func NewNamed(store port.NamedLockStore, wait time.Duration) *Named {
	return &Named{store: store, wait: wait}
}

func (n *Named) Name() string { return "named" }

func (n *Named) Acquire(ctx context.Context, key string) (*Handle, error) {
	wait := n.wait
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: named lock %s: no time left to wait", ErrLockTimeout, key)
		}
		if remaining < wait {
			wait = remaining
		}
	}

	nl, err := n.store.NamedLock(ctx, namedLockPrefix+key, wait)
	if err != nil {
		return nil, fmt.Errorf("named acquire: %w", err)
	}
	if nl == nil {
		return nil, fmt.Errorf("%w: named lock %s not granted within %v", ErrLockTimeout, key, wait)
	}
	return &Handle{Key: key, named: nl}, nil
}

func (n *Named) Release(ctx context.Context, h *Handle, opErr error) error {
	return h.named.Release(ctx)
}
