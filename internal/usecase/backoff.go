package usecase

import (
	"context"
	"time"
)

// Backoff yields the delay before each reconnect attempt.
type Backoff interface {
	Next() time.Duration
	Reset()
}

// ExponentialBackoff grows the delay by Multiplier per attempt up to Max.
// The schedule is non-decreasing and stays at Max once reached.
type ExponentialBackoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64

	cur time.Duration
}

// NewExponentialBackoff fills zero values with 500ms / 30s / x2.
func NewExponentialBackoff(initial, max time.Duration, mult float64) *ExponentialBackoff {
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	if max < initial {
		max = initial
	}
	if mult < 1 {
		mult = 2
	}
	return &ExponentialBackoff{Initial: initial, Max: max, Multiplier: mult}
}

func (b *ExponentialBackoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
		return b.cur
	}
	next := time.Duration(float64(b.cur) * b.Multiplier)
	if next > b.Max || next < b.cur {
		next = b.Max
	}
	b.cur = next
	return b.cur
}

func (b *ExponentialBackoff) Reset() { b.cur = 0 }

// sleepCtx waits d or until ctx is done. It reports whether the full delay elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
