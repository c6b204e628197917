// Package hub fans decoded market events out to downstream sessions.
//
// Publish never waits on a subscriber: each sink gets one non-blocking push
// and a sink that refuses it is dropped. Sessions register and leave
// independently of the upstream connection.
package hub

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"MarketRelay/internal/domain/errs"
	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"

	"github.com/google/uuid"
)

type subscription struct {
	id    string
	sink  drepo.Sink
	alive atomic.Bool
	since time.Time
}

// Hub is the process-wide subscriber registry.
type Hub struct {
	mu      sync.RWMutex
	subs    map[string]*subscription
	closed  bool
	quit    chan struct{}
	wg      sync.WaitGroup
	logger  *applogger.Logger
	metrics drepo.Metrics
}

// New creates an empty hub.
func New(l *applogger.Logger, m drepo.Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]*subscription),
		quit:    make(chan struct{}),
		logger:  l,
		metrics: m,
	}
}

var _ drepo.Broadcaster = (*Hub)(nil)

// Subscribe registers s and returns its subscription id. The hub also
// watches s.Done() and unsubscribes it when the downstream goes away.
func (h *Hub) Subscribe(s drepo.Sink) (string, error) {
	if s == nil {
		return "", errors.New("hub: nil sink")
	}
	sub := &subscription{id: uuid.NewString(), sink: s, since: time.Now()}
	sub.alive.Store(true)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.Close()
		return "", errs.ErrHubClosed
	}
	h.subs[sub.id] = sub
	n := len(h.subs)
	h.wg.Add(1)
	h.mu.Unlock()

	go h.watch(sub)

	h.metrics.SetSubscribers(n)
	h.logger.Debug("subscriber added", applogger.String("id", sub.id), applogger.Int("subscribers", n))
	return sub.id, nil
}

// Unsubscribe removes id. Unknown or already removed ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.remove(id, "unsubscribed")
}

// Publish hands ev to every registered subscription. A subscription whose
// sink refuses the push is marked dead at once and removed after the fan-out.
func (h *Hub) Publish(ev *models.MarketEvent) {
	if ev == nil {
		return
	}
	start := time.Now()
	var dropped []string

	h.mu.RLock()
	for id, sub := range h.subs {
		if !sub.alive.Load() {
			continue
		}
		if sub.sink.Push(ev) {
			continue
		}
		select {
		case <-sub.sink.Done():
			// closed by its owner; watch removes it
			continue
		default:
		}
		if sub.alive.CompareAndSwap(true, false) {
			dropped = append(dropped, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range dropped {
		h.metrics.RecordError("subscriber_dropped")
		h.remove(id, "saturated")
	}
	h.metrics.RecordMessageSent("hub", ev.Symbol())
	h.metrics.RecordLatency("hub_publish", time.Since(start).Seconds())
}

// Len returns the number of registered subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close releases every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[string]*subscription)
	close(h.quit)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.alive.Store(false)
		sub.sink.Close()
	}
	h.wg.Wait()
	h.metrics.SetSubscribers(0)
	h.logger.Info("hub closed", applogger.Int("released", len(subs)))
}

func (h *Hub) watch(sub *subscription) {
	defer h.wg.Done()
	select {
	case <-sub.sink.Done():
		h.remove(sub.id, "closed")
	case <-h.quit:
	}
}

func (h *Hub) remove(id, reason string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	sub.alive.Store(false)
	sub.sink.Close()
	h.metrics.SetSubscribers(n)

	fields := []applogger.Field{
		applogger.String("id", id),
		applogger.String("reason", reason),
		applogger.Duration("lifetime_ms", time.Since(sub.since)),
		applogger.Int("subscribers", n),
	}
	if reason == "saturated" {
		h.logger.Warn("subscriber dropped", fields...)
		return
	}
	h.logger.Debug("subscriber removed", fields...)
}
