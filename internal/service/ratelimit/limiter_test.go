package ratelimit

import (
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(capacity, perSec float64) (*Limiter, *clock) {
	c := &clock{t: time.Unix(1700000000, 0)}
	l := New(capacity, perSec)
	l.now = c.now
	return l, c
}

func TestBurstThenRefill(t *testing.T) {
	l, c := newTestLimiter(3, 1)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("burst request %d denied", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("request beyond burst allowed")
	}
	if !l.Allow("10.0.0.2") {
		t.Fatalf("other key should have its own bucket")
	}

	c.advance(1500 * time.Millisecond)
	if !l.Allow("10.0.0.1") {
		t.Fatalf("token not refilled")
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("only one token should have refilled")
	}

	c.advance(time.Hour)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("refill above capacity lost at %d", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Fatalf("refill exceeded capacity")
	}
}

func TestSweep(t *testing.T) {
	l, c := newTestLimiter(1, 1)
	l.Allow("a")
	c.advance(time.Minute)
	l.Allow("b")
	if n := l.Sweep(30 * time.Second); n != 1 {
		t.Fatalf("swept %d", n)
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d", l.Len())
	}
}

func TestZeroCapacityStillAllowsOne(t *testing.T) {
	l, _ := newTestLimiter(0, 0)
	if !l.Allow("k") {
		t.Fatalf("first request denied")
	}
	if l.Allow("k") {
		t.Fatalf("no refill configured, second request allowed")
	}
}
