// Package session implements the downstream side of one subscription:
// a bounded, push-only queue plus a close notification.
package session

import (
	"sync"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
)

const DefaultBuffer = 256

// Session is a bounded queue the hub pushes into and a downstream writer drains.
// The events channel is never closed; readers select on Done.
type Session struct {
	events    chan *models.MarketEvent
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a session holding at most buffer undelivered events.
func New(buffer int) *Session {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Session{
		events: make(chan *models.MarketEvent, buffer),
		done:   make(chan struct{}),
	}
}

var _ drepo.Sink = (*Session)(nil)

// Push enqueues ev without blocking. It returns false when the session is
// closed or its buffer is full; the hub treats both as "downstream gone".
func (s *Session) Push(ev *models.MarketEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// Events is the receive side for the downstream writer.
func (s *Session) Events() <-chan *models.MarketEvent { return s.events }

func (s *Session) Done() <-chan struct{} { return s.done }

// Close marks the downstream as gone. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Pending is the number of queued, undelivered events.
func (s *Session) Pending() int { return len(s.events) }
