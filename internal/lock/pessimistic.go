package lock

import (
	"context"
	"fmt"

	"github.com/vhoang/stockguard/internal/port"
)

// Pessimistic scopes exclusivity to a store transaction. Acquire only opens
// the transaction; the exclusive row hold is taken by the service's
// lock-qualified read, and ending the transaction releases it. There is no
// separate lock key and no TTL.
type Pessimistic struct {
	store port.ResourceStore
}

func NewPessimistic(store port.ResourceStore) *Pessimistic {
	return &Pessimistic{store: store}
}

func (p *Pessimistic) Name() string { return "pessimistic" }

func (p *Pessimistic) Acquire(ctx context.Context, key string) (*Handle, error) {
	tx, err := p.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("pessimistic acquire: %w", err)
	}
	return &Handle{Key: key, tx: tx}, nil
}

func (p *Pessimistic) Release(ctx context.Context, h *Handle, opErr error) error {
	if opErr != nil {
		// Nothing was written on the failure paths; rolling back only drops
		// the row hold.
		return h.tx.Rollback()
	}
	return h.tx.Commit()
}
