package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/vhoang/stockguard/internal/core/domain"
	"github.com/vhoang/stockguard/internal/port"
)

const (
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Read(ctx context.Context, itemID string) (*domain.Inventory, error) {
	return scanInventory(m.db.QueryRowContext(ctx, `
		SELECT item_id, quantity, version, created_at, updated_at
		FROM inventory WHERE item_id = ?`, itemID))
}

func (m *MySQLAdapter) ConditionalWrite(ctx context.Context, itemID string, newQty, expectedVersion int) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = ?, version = version + 1, updated_at = NOW()
		WHERE item_id = ? AND version = ?`,
		newQty, itemID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", mapMySQLErr(err))
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return port.ErrVersionConflict
	}

	return nil
}

func (m *MySQLAdapter) Begin(ctx context.Context) (port.ResourceTx, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &mysqlTx{tx: tx}, nil
}

func (m *MySQLAdapter) InsertDecrementRecord(ctx context.Context, rec domain.DecrementRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO decrement_log (id, item_id, amount, remaining, strategy, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ItemID, rec.Amount, rec.Remaining, rec.Strategy, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert decrement record: %w", err)
	}
	return nil
}

// NamedLock takes a MySQL advisory lock via GET_LOCK. The lock is bound to
// the session, so the connection is pinned until Release.
func (m *MySQLAdapter) NamedLock(ctx context.Context, name string, wait time.Duration) (port.NamedLock, error) {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("named lock conn: %w", err)
	}

	var got sql.NullInt64
	err = conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, name, lockWaitSeconds(wait)).Scan(&got)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("get_lock %s: %w", name, err)
	}
	if !got.Valid || got.Int64 != 1 {
		// 0 means the wait elapsed, NULL means the server failed to grant.
		conn.Close()
		return nil, nil
	}

	return &namedLock{conn: conn, name: name}, nil
}

// lockWaitSeconds converts wait to whole GET_LOCK seconds, rounding up so a
// sub-second wait still blocks. GET_LOCK treats a negative timeout as
// infinite, so anything non-positive is clamped to an immediate try.
func lockWaitSeconds(wait time.Duration) int {
	if wait <= 0 {
		return 0
	}
	return int((wait + time.Second - 1) / time.Second)
}

type namedLock struct {
	conn *sql.Conn
	name string
}

func (l *namedLock) Release(ctx context.Context) error {
	var released sql.NullInt64
	err := l.conn.QueryRowContext(ctx, `SELECT RELEASE_LOCK(?)`, l.name).Scan(&released)
	if closeErr := l.conn.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("release_lock %s: %w", l.name, err)
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) LockingRead(ctx context.Context, itemID string) (*domain.Inventory, error) {
	inv, err := scanInventory(t.tx.QueryRowContext(ctx, `
		SELECT item_id, quantity, version, created_at, updated_at
		FROM inventory WHERE item_id = ? FOR UPDATE`, itemID))
	if err != nil {
		return nil, mapMySQLErr(err)
	}
	return inv, nil
}

func (t *mysqlTx) Write(ctx context.Context, itemID string, newQty int) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = ?, version = version + 1, updated_at = NOW()
		WHERE item_id = ?`,
		newQty, itemID,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", mapMySQLErr(err))
	}
	return nil
}

func (t *mysqlTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", mapMySQLErr(err))
	}
	return nil
}

func (t *mysqlTx) Rollback() error {
	return t.tx.Rollback()
}

func scanInventory(row *sql.Row) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := row.Scan(&inv.ItemID, &inv.Quantity, &inv.Version, &inv.CreatedAt, &inv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &inv, nil
}

func mapMySQLErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return fmt.Errorf("%w: %v", port.ErrLockWait, err)
		}
	}
	return err
}
