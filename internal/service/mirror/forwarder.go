// Package mirror copies the live event stream to external brokers.
//
// A Forwarder is an ordinary hub subscriber, so a slow broker is dropped by
// the hub like any other slow consumer and never holds back the relay.
package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	"MarketRelay/internal/session"
	applogger "MarketRelay/pkg/logger"
)

// Option configures Forwarder.
type Option func(*Forwarder)

// WithBuffer sets the subscriber buffer between hub and broker.
func WithBuffer(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.buffer = n
		}
	}
}

// WithBatchSize caps the events sent per broker write.
func WithBatchSize(n int) Option {
	return func(f *Forwarder) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithPublishTimeout bounds each broker write.
func WithPublishTimeout(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRejoinDelay sets the pause before resubscribing after the hub dropped us.
func WithRejoinDelay(d time.Duration) Option {
	return func(f *Forwarder) {
		if d > 0 {
			f.rejoin = d
		}
	}
}

// Forwarder drains a hub subscription into a Publisher.
type Forwarder struct {
	name      string
	hub       drepo.Broadcaster
	pub       drepo.Publisher
	buffer    int
	batchSize int
	timeout   time.Duration
	rejoin    time.Duration
	logger    *applogger.Logger
	metrics   drepo.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a forwarder named after its broker, e.g. "kafka".
func New(name string, hub drepo.Broadcaster, pub drepo.Publisher, l *applogger.Logger, m drepo.Metrics, opts ...Option) *Forwarder {
	f := &Forwarder{
		name:      name,
		hub:       hub,
		pub:       pub,
		buffer:    4096,
		batchSize: 100,
		timeout:   5 * time.Second,
		rejoin:    time.Second,
		logger:    l.With("mirror", name),
		metrics:   m,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the broker name.
func (f *Forwarder) Name() string { return f.name }

// Start subscribes to the hub and begins forwarding.
func (f *Forwarder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		return errors.New("mirror " + f.name + " already started")
	}
	s, err := f.join()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx, s, f.done)
	f.logger.Info("mirror started")
	return nil
}

func (f *Forwarder) join() (*session.Session, error) {
	s := session.New(f.buffer)
	if _, err := f.hub.Subscribe(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (f *Forwarder) run(ctx context.Context, s *session.Session, done chan struct{}) {
	defer close(done)
	batch := make([]*models.MarketEvent, 0, f.batchSize)
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case ev := <-s.Events():
			batch = append(batch[:0], ev)
			batch = f.fill(s, batch)
			f.flush(ctx, batch)
		case <-s.Done():
			// flush what was buffered before the hub let go of us
			if batch = f.fill(s, batch[:0]); len(batch) > 0 {
				f.flush(ctx, batch)
			}
			var ok bool
			if s, ok = f.rejoinHub(ctx); !ok {
				return
			}
		}
	}
}

// fill appends already buffered events without blocking.
func (f *Forwarder) fill(s *session.Session, batch []*models.MarketEvent) []*models.MarketEvent {
	for len(batch) < f.batchSize {
		select {
		case ev := <-s.Events():
			batch = append(batch, ev)
		default:
			return batch
		}
	}
	return batch
}

func (f *Forwarder) flush(ctx context.Context, batch []*models.MarketEvent) {
	start := time.Now()
	pctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := f.pub.PublishBatch(pctx, batch); err != nil {
		f.metrics.RecordError("mirror_" + f.name)
		f.logger.Error("mirror publish failed", applogger.Error(err), applogger.Int("events", len(batch)))
		return
	}
	for _, ev := range batch {
		f.metrics.RecordMessageSent(f.name, ev.Symbol())
	}
	f.metrics.RecordLatency("mirror_"+f.name, time.Since(start).Seconds())
}

func (f *Forwarder) rejoinHub(ctx context.Context) (*session.Session, bool) {
	f.logger.Warn("mirror fell behind and was dropped, rejoining", applogger.Duration("delay_ms", f.rejoin))
	t := time.NewTimer(f.rejoin)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, false
	case <-t.C:
	}
	s, err := f.join()
	if err != nil {
		// hub closed: the relay is shutting down
		f.logger.Info("mirror stopped", applogger.Error(err))
		return nil, false
	}
	return s, true
}

// Stop ends forwarding and closes the publisher.
func (f *Forwarder) Stop(ctx context.Context) error {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.mu.Unlock()
	if cancel == nil {
		return f.pub.Close()
	}
	cancel()
	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return errors.Join(err, f.pub.Close())
}
