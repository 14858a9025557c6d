package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/vhoang/stockguard/internal/core/domain"
	"github.com/vhoang/stockguard/internal/lock"
	"github.com/vhoang/stockguard/internal/port"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidAmount     = errors.New("amount must be positive")

	// ErrInvariantViolation means a negative quantity was observed at rest.
	// That is not a business error but a broken exclusivity guarantee in the
	// active strategy; callers must not retry it.
	ErrInvariantViolation = errors.New("non-negative invariant violated")
)

// StockService performs the protected read-modify-write on the inventory
// counter. It assumes the caller already holds whatever exclusivity the
// active strategy provides; the only locking it does itself is the
// lock-qualified read demanded by a transactional handle.
type StockService struct {
	store port.ResourceStore
}

func NewStockService(store port.ResourceStore) *StockService {
	return &StockService{store: store}
}

// Decrement subtracts amount from the item's quantity and returns the new
// value. Exactly one durable write happens per successful call and none on
// any failure path.
func (s *StockService) Decrement(ctx context.Context, h *lock.Handle, itemID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	var (
		inv *domain.Inventory
		err error
	)
	if tx := h.Tx(); tx != nil {
		inv, err = tx.LockingRead(ctx, itemID)
	} else {
		inv, err = s.store.Read(ctx, itemID)
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", itemID, err)
	}
	if inv == nil {
		return 0, ErrItemNotFound
	}
	if inv.Quantity < 0 {
		return 0, fmt.Errorf("%w: %s at %d", ErrInvariantViolation, itemID, inv.Quantity)
	}

	newQty := inv.Quantity - amount
	if newQty < 0 {
		return 0, ErrInsufficientStock
	}

	if tx := h.Tx(); tx != nil {
		err = tx.Write(ctx, itemID, newQty)
	} else {
		// Version-conditional even under an exclusive hold: with the hold
		// the condition trivially passes, without one it is the optimistic
		// conflict check.
		err = s.store.ConditionalWrite(ctx, itemID, newQty, inv.Version)
	}
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", itemID, err)
	}

	return newQty, nil
}

// Quantity returns the item's current quantity outside any lock.
func (s *StockService) Quantity(ctx context.Context, itemID string) (int, error) {
	inv, err := s.store.Read(ctx, itemID)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", itemID, err)
	}
	if inv == nil {
		return 0, ErrItemNotFound
	}
	return inv.Quantity, nil
}
