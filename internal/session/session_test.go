package session

import (
	"testing"

	"MarketRelay/internal/domain/models"
)

func ev(price string) *models.MarketEvent {
	return models.NewMarketEvent("BTCUSDT", price, 1, nil)
}

func TestPushIsBoundedAndOrdered(t *testing.T) {
	s := New(2)
	if !s.Push(ev("1")) || !s.Push(ev("2")) {
		t.Fatalf("push into free buffer failed")
	}
	if s.Push(ev("3")) {
		t.Fatalf("push into full buffer should fail")
	}
	if s.Pending() != 2 {
		t.Fatalf("pending = %d", s.Pending())
	}
	if got := (<-s.Events()).Price(); got != "1" {
		t.Fatalf("first = %s", got)
	}
	if got := (<-s.Events()).Price(); got != "2" {
		t.Fatalf("second = %s", got)
	}
}

func TestCloseIsIdempotentAndRejectsPush(t *testing.T) {
	s := New(4)
	s.Close()
	s.Close()
	if !s.Closed() {
		t.Fatalf("expected closed")
	}
	select {
	case <-s.Done():
	default:
		t.Fatalf("done not closed")
	}
	if s.Push(ev("1")) {
		t.Fatalf("push after close should fail")
	}
}

func TestDefaultBuffer(t *testing.T) {
	s := New(0)
	if cap(s.events) != DefaultBuffer {
		t.Fatalf("cap = %d", cap(s.events))
	}
}
