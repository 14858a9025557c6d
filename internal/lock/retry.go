package lock

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy bounds the busy-wait loops: the spin strategy's polling and
// the facade's optimistic retry. Every loop it governs terminates either by
// attempt budget or by context deadline, never by neither.
type RetryPolicy struct {
	// MaxAttempts caps the number of attempts; 0 means bounded only by the
	// context deadline.
	MaxAttempts int
	Backoff     time.Duration
	Jitter      time.Duration
}

// DefaultRetryPolicy mirrors the 100ms poll interval of the classic Redis
// spin lock, with a little jitter so contenders do not wake in lockstep.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 50,
	Backoff:     100 * time.Millisecond,
	Jitter:      20 * time.Millisecond,
}

// Wait sleeps between attempt and attempt+1. It returns ErrRetriesExhausted
// when the budget is spent and the context error when the deadline wins.
func (p RetryPolicy) Wait(ctx context.Context, attempt int) error {
	if p.MaxAttempts > 0 && attempt+1 >= p.MaxAttempts {
		return ErrRetriesExhausted
	}

	d := p.Backoff
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
