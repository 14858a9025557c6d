package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vhoang/stockguard/internal/core/domain"
	"github.com/vhoang/stockguard/internal/lock"
	"github.com/vhoang/stockguard/internal/metrics"
	"github.com/vhoang/stockguard/internal/port"
)

var (
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrConcurrentModification is surfaced when the optimistic retry budget
	// runs out with the row still moving under the caller.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Facade composes a chosen exclusion strategy with the decrement service:
// acquire, invoke exactly once per successful acquisition, release on every
// exit path. Which strategy runs is purely configuration.
type Facade struct {
	service        *StockService
	strategies     map[string]lock.Strategy
	retry          lock.RetryPolicy
	acquireTimeout time.Duration

	journalMu     sync.Mutex
	journalClosed bool
	journal       chan domain.DecrementRecord
}

func NewFacade(svc *StockService, retry lock.RetryPolicy, acquireTimeout time.Duration, journalSize int) *Facade {
	return &Facade{
		service:        svc,
		strategies:     make(map[string]lock.Strategy),
		retry:          retry,
		acquireTimeout: acquireTimeout,
		journal:        make(chan domain.DecrementRecord, journalSize),
	}
}

// Register makes a strategy selectable by its name.
func (f *Facade) Register(s lock.Strategy) {
	f.strategies[s.Name()] = s
}

// Strategies lists the registered strategy names.
func (f *Facade) Strategies() []string {
	names := make([]string, 0, len(f.strategies))
	for name := range f.strategies {
		names = append(names, name)
	}
	return names
}

// Decrement runs the protected decrement under the named strategy and
// returns the remaining quantity.
func (f *Facade) Decrement(ctx context.Context, strategyName, itemID string, amount int) (int, error) {
	strategy, ok := f.strategies[strategyName]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyName)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.acquireTimeout)
		defer cancel()
	}

	qty, err := f.decrement(ctx, strategy, itemID, amount)
	if err == nil {
		f.record(strategyName, itemID, amount, qty)
	}
	return qty, err
}

func (f *Facade) decrement(ctx context.Context, strategy lock.Strategy, itemID string, amount int) (int, error) {
	if _, ok := strategy.(*lock.Optimistic); ok {
		return f.decrementOptimistic(ctx, strategy, itemID, amount)
	}

	qty, err := f.once(ctx, strategy, itemID, amount)
	switch {
	case errors.Is(err, port.ErrLockWait):
		// The store aborted the blocked transaction (deadlock detection or
		// lock-wait timeout). Data is intact; the caller may retry.
		metrics.Timeouts.WithLabelValues(strategy.Name()).Inc()
		return 0, fmt.Errorf("%w: %v", lock.ErrLockTimeout, err)
	case errors.Is(err, lock.ErrLockTimeout):
		metrics.Timeouts.WithLabelValues(strategy.Name()).Inc()
	}
	return qty, err
}

// decrementOptimistic repeats the whole acquire-read-write cycle on version
// conflicts, bounded by the retry policy. Each attempt re-reads current
// state; the stale read is never reused.
func (f *Facade) decrementOptimistic(ctx context.Context, strategy lock.Strategy, itemID string, amount int) (int, error) {
	for attempt := 0; ; attempt++ {
		qty, err := f.once(ctx, strategy, itemID, amount)
		if !errors.Is(err, port.ErrVersionConflict) {
			return qty, err
		}

		metrics.Conflicts.Inc()
		if waitErr := f.retry.Wait(ctx, attempt); waitErr != nil {
			return 0, fmt.Errorf("%w: %s after %d attempts: %v", ErrConcurrentModification, itemID, attempt+1, waitErr)
		}
		metrics.Retries.Inc()
	}
}

func (f *Facade) once(ctx context.Context, strategy lock.Strategy, itemID string, amount int) (qty int, err error) {
	h, err := strategy.Acquire(ctx, itemID)
	if err != nil {
		return 0, err
	}
	metrics.Acquisitions.WithLabelValues(strategy.Name()).Inc()

	defer func() {
		// Release must run even when the call's deadline already passed.
		releaseErr := strategy.Release(context.WithoutCancel(ctx), h, err)
		if releaseErr == nil {
			return
		}
		if err == nil {
			// For transactional strategies release is the commit; a failure
			// here means the write never became durable.
			qty, err = 0, fmt.Errorf("release %s: %w", itemID, releaseErr)
			return
		}
		log.Printf("facade: release %s after failure: %v", itemID, releaseErr)
	}()

	// A TTL-bounded hold that silently lapsed no longer excludes anyone;
	// entering the critical section would reintroduce the lost update.
	if h.Expired() {
		return 0, fmt.Errorf("%w: hold on %s expired before the protected call", lock.ErrLockTimeout, itemID)
	}

	qty, err = f.service.Decrement(ctx, h, itemID, amount)
	return qty, err
}

func (f *Facade) record(strategyName, itemID string, amount, remaining int) {
	rec := domain.DecrementRecord{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Amount:    amount,
		Remaining: remaining,
		Strategy:  strategyName,
		CreatedAt: time.Now(),
	}
	// The closed check and the send share the mutex so a concurrent Close
	// cannot slip between them; sending on a closed channel panics.
	f.journalMu.Lock()
	defer f.journalMu.Unlock()
	if f.journalClosed {
		log.Printf("facade: journal closed, dropping record for %s", itemID)
		return
	}
	select {
	case f.journal <- rec:
	default:
		log.Printf("facade: journal queue full, dropping record for %s", itemID)
	}
}

// Records exposes the journal queue for the persistence workers.
func (f *Facade) Records() <-chan domain.DecrementRecord {
	return f.journal
}

// Close stops accepting journal records and lets the workers drain. Records
// from decrements still in flight are dropped, not panicked on.
func (f *Facade) Close() {
	f.journalMu.Lock()
	defer f.journalMu.Unlock()
	if f.journalClosed {
		return
	}
	f.journalClosed = true
	close(f.journal)
}
