package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/vhoang/stockguard/internal/core/domain"
	"github.com/vhoang/stockguard/internal/port"
)

func testRecord() domain.DecrementRecord {
	return domain.DecrementRecord{
		ID:        uuid.NewString(),
		ItemID:    "test-item",
		Amount:    1,
		Remaining: 9,
		Strategy:  "pessimistic",
		CreatedAt: time.Now().Truncate(time.Second),
	}
}

func getMySQLAdapter(t *testing.T) (*MySQLAdapter, *sql.DB) {
	t.Helper()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/stockguard?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	adapter := NewMySQLAdapter(db)
	if err := adapter.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return adapter, db
}

func TestConditionalWrite_Success(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)
	ctx := context.Background()

	if err := adapter.SeedItem(ctx, "test-item", 10); err != nil {
		t.Fatalf("seed: %v", err)
	}

	inv, err := adapter.Read(ctx, "test-item")
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if err := adapter.ConditionalWrite(ctx, "test-item", 9, inv.Version); err != nil {
		t.Fatalf("conditional write: %v", err)
	}

	after, err := adapter.Read(ctx, "test-item")
	if err != nil {
		t.Fatalf("read after write: %v", err)
	}
	if after.Quantity != 9 {
		t.Errorf("expected quantity 9, got %d", after.Quantity)
	}
	if after.Version != inv.Version+1 {
		t.Errorf("expected version bump to %d, got %d", inv.Version+1, after.Version)
	}
}

func TestConditionalWrite_StaleVersionRejected(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)
	ctx := context.Background()

	if err := adapter.SeedItem(ctx, "test-item", 10); err != nil {
		t.Fatalf("seed: %v", err)
	}

	inv, _ := adapter.Read(ctx, "test-item")
	if err := adapter.ConditionalWrite(ctx, "test-item", 9, inv.Version); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Replay with the old version: the row moved underneath us.
	err := adapter.ConditionalWrite(ctx, "test-item", 8, inv.Version)
	if !errors.Is(err, port.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestRead_MissingItem(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)

	inv, err := adapter.Read(context.Background(), "no-such-item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv != nil {
		t.Errorf("expected nil for a missing item, got %+v", inv)
	}
}

func TestLockingRead_BlocksCompetingTransaction(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)
	ctx := context.Background()

	if err := adapter.SeedItem(ctx, "test-item", 10); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tx1, err := adapter.Begin(ctx)
	if err != nil {
		t.Fatalf("begin tx1: %v", err)
	}
	if _, err := tx1.LockingRead(ctx, "test-item"); err != nil {
		t.Fatalf("locking read tx1: %v", err)
	}

	blocked := make(chan time.Duration, 1)
	go func() {
		tx2, err := adapter.Begin(ctx)
		if err != nil {
			blocked <- 0
			return
		}
		start := time.Now()
		_, err = tx2.LockingRead(ctx, "test-item")
		elapsed := time.Since(start)
		tx2.Rollback()
		if err != nil {
			blocked <- 0
			return
		}
		blocked <- elapsed
	}()

	time.Sleep(200 * time.Millisecond)
	if err := tx1.Commit(); err != nil {
		t.Fatalf("commit tx1: %v", err)
	}

	select {
	case waited := <-blocked:
		if waited < 100*time.Millisecond {
			t.Errorf("competing locking read did not block on the row hold (waited %v)", waited)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("competing transaction never finished")
	}
}

// GET_LOCK takes whole seconds and treats negatives as wait-forever, so the
// conversion must round up and never go below zero.
func TestLockWaitSeconds(t *testing.T) {
	cases := []struct {
		wait time.Duration
		want int
	}{
		{-time.Second, 0},
		{0, 0},
		{300 * time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{10 * time.Second, 10},
	}
	for _, c := range cases {
		if got := lockWaitSeconds(c.wait); got != c.want {
			t.Errorf("lockWaitSeconds(%v) = %d, want %d", c.wait, got, c.want)
		}
	}
}

func TestNamedLock_ExclusiveUntilRelease(t *testing.T) {
	adapter, _ := getMySQLAdapter(t)
	ctx := context.Background()

	nl, err := adapter.NamedLock(ctx, "stockguard-test", 2*time.Second)
	if err != nil {
		t.Fatalf("named lock: %v", err)
	}
	if nl == nil {
		t.Fatal("expected the lock to be granted")
	}

	// A second session must time out while the first holds the name.
	second, err := adapter.NamedLock(ctx, "stockguard-test", time.Second)
	if err != nil {
		t.Fatalf("second named lock: %v", err)
	}
	if second != nil {
		second.Release(ctx)
		t.Fatal("name granted to two sessions at once")
	}

	if err := nl.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	third, err := adapter.NamedLock(ctx, "stockguard-test", time.Second)
	if err != nil {
		t.Fatalf("third named lock: %v", err)
	}
	if third == nil {
		t.Fatal("expected the name to be free after release")
	}
	third.Release(ctx)
}

func TestInsertDecrementRecord(t *testing.T) {
	adapter, db := getMySQLAdapter(t)
	ctx := context.Background()

	rec := testRecord()
	if err := adapter.InsertDecrementRecord(ctx, rec); err != nil {
		t.Fatalf("insert record: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM decrement_log WHERE id = ?`, rec.ID)
	})

	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decrement_log WHERE id = ?`, rec.ID).Scan(&count)
	if count != 1 {
		t.Error("record not found in decrement_log")
	}
}
