package port

import (
	"context"
	"errors"
	"time"

	"github.com/vhoang/stockguard/internal/core/domain"
)

var (
	// ErrVersionConflict reports a conditional write rejected because the
	// row's version moved since it was read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrLockWait reports a transaction aborted by the store's deadlock
	// detector or lock-wait timeout. Retryable; the data is intact.
	ErrLockWait = errors.New("store lock wait aborted")
)

type ResourceStore interface {
	// Read returns the current inventory row, or nil when the item is unknown.
	Read(ctx context.Context, itemID string) (*domain.Inventory, error)

	// ConditionalWrite persists newQty only if the row's version still equals
	// expectedVersion, incrementing the version. Returns ErrVersionConflict
	// from the adapter when another writer got there first.
	ConditionalWrite(ctx context.Context, itemID string, newQty, expectedVersion int) error

	// Begin opens a transaction for the pessimistic strategy. The row hold is
	// taken by the transaction's LockingRead, not by Begin itself.
	Begin(ctx context.Context) (ResourceTx, error)

	// InsertDecrementRecord journals a completed decrement.
	InsertDecrementRecord(ctx context.Context, rec domain.DecrementRecord) error
}

// ResourceTx scopes an exclusive row hold to one unit of work. Releasing the
// hold is implicit in Commit or Rollback.
type ResourceTx interface {
	// LockingRead reads the row and holds it exclusively until the
	// transaction ends. Competing locking reads block at the store.
	LockingRead(ctx context.Context, itemID string) (*domain.Inventory, error)

	// Write persists newQty inside the transaction, incrementing the version.
	Write(ctx context.Context, itemID string, newQty int) error

	Commit() error
	Rollback() error
}

// NamedLockStore grants advisory locks identified purely by name, detached
// from any data row.
type NamedLockStore interface {
	// NamedLock blocks up to wait for the advisory lock. It returns
	// (nil, nil) when the wait elapses without the lock being granted.
	NamedLock(ctx context.Context, name string, wait time.Duration) (NamedLock, error)
}

// NamedLock is a held advisory lock. It is not released by any transaction
// ending; the holder must call Release.
type NamedLock interface {
	Release(ctx context.Context) error
}
