package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"MarketRelay/internal/domain/errs"
	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"
)

// RelaySupervisor owns the upstream lifecycle: it connects, decodes every
// frame into the hub and reconnects with backoff until shut down.
type RelaySupervisor struct {
	conn     drepo.Connector
	dec      drepo.Decoder
	hub      drepo.Broadcaster
	backoff  Backoff
	endpoint string
	topic    string
	logger   *applogger.Logger
	metrics  drepo.Metrics

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastErr string

	reconnects  atomic.Int64
	events      atomic.Int64
	lastEventAt atomic.Int64 // unix nanos
}

// NewRelaySupervisor wires the relay. Nothing runs until Start.
func NewRelaySupervisor(conn drepo.Connector, dec drepo.Decoder, hub drepo.Broadcaster, b Backoff,
	endpoint, topic string, l *applogger.Logger, m drepo.Metrics) *RelaySupervisor {
	return &RelaySupervisor{
		conn:     conn,
		dec:      dec,
		hub:      hub,
		backoff:  b,
		endpoint: endpoint,
		topic:    topic,
		logger:   l.With("topic", topic),
		metrics:  m,
	}
}

// Start launches the connect loop and returns immediately.
func (s *RelaySupervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return errors.New("relay supervisor already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)
	s.logger.Info("relay started", applogger.String("endpoint", s.endpoint))
	return nil
}

func (s *RelaySupervisor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		received := s.relayOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		// a connection that carried traffic starts the schedule over
		if received {
			s.backoff.Reset()
		}
		delay := s.backoff.Next()
		s.reconnects.Add(1)
		s.metrics.RecordReconnect()
		s.logger.Warn("upstream lost, reconnecting",
			applogger.Duration("delay_ms", delay),
			applogger.Int64("reconnects", s.reconnects.Load()))
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

// relayOnce runs one connection to completion and reports whether any frame arrived.
func (s *RelaySupervisor) relayOnce(ctx context.Context) bool {
	if err := s.conn.Connect(ctx, s.endpoint); err != nil {
		if ctx.Err() == nil {
			s.fail(err)
		}
		return false
	}

	frames, errc := s.conn.Read(ctx)
	received := false
	for {
		select {
		case <-ctx.Done():
			return received
		case raw, ok := <-frames:
			if !ok {
				s.closed(ctx, errc)
				return received
			}
			received = true
			s.handle(raw)
		}
	}
}

func (s *RelaySupervisor) closed(ctx context.Context, errc <-chan error) {
	if ctx.Err() != nil {
		return
	}
	select {
	case err := <-errc:
		if err != nil {
			s.fail(err)
			return
		}
	default:
	}
	s.fail(&errs.ConnectionError{Op: "read", Endpoint: s.endpoint, Err: errs.ErrRemoteClosed})
}

func (s *RelaySupervisor) handle(raw []byte) {
	start := time.Now()
	ev, err := s.dec.Decode(raw)
	if err != nil {
		if errors.Is(err, errs.ErrNotEvent) {
			s.logger.Debug("skipping control frame", applogger.Int("bytes", len(raw)))
			return
		}
		s.metrics.RecordError("decode")
		s.logger.Warn("skipping undecodable frame",
			applogger.Error(err),
			applogger.Int("bytes", len(raw)))
		return
	}

	s.hub.Publish(ev)
	s.events.Add(1)
	s.lastEventAt.Store(time.Now().UnixNano())
	if f, err := strconv.ParseFloat(ev.Price(), 64); err == nil {
		s.metrics.RecordLastPrice(ev.Symbol(), f)
	}
	s.metrics.RecordLatency("relay_event", time.Since(start).Seconds())
}

func (s *RelaySupervisor) fail(err error) {
	s.metrics.RecordError("upstream")
	s.mu.Lock()
	s.lastErr = err.Error()
	s.mu.Unlock()
	s.logger.Error("upstream failure", applogger.Error(err))
}

// Shutdown stops reconnecting, releases the socket and empties the hub.
// It waits for the connect loop until ctx expires.
func (s *RelaySupervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := s.conn.Disconnect()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			err = errors.Join(err, ctx.Err())
		}
	}
	s.hub.Close()
	s.logger.Info("relay stopped",
		applogger.Int64("events", s.events.Load()),
		applogger.Int64("reconnects", s.reconnects.Load()))
	return err
}

// State returns the upstream connection state.
func (s *RelaySupervisor) State() models.ConnectionState { return s.conn.State() }

// IsConnected returns true if the upstream is connected.
func (s *RelaySupervisor) IsConnected() bool { return s.State() == models.StateConnected }

// Status snapshots the relay for the status endpoint.
func (s *RelaySupervisor) Status() models.RelayStatus {
	s.mu.Lock()
	lastErr := s.lastErr
	s.mu.Unlock()

	st := models.RelayStatus{
		Topic:         s.topic,
		Endpoint:      s.endpoint,
		State:         s.conn.State(),
		Subscribers:   s.hub.Len(),
		Reconnects:    s.reconnects.Load(),
		LastError:     lastErr,
		EventsRelayed: s.events.Load(),
	}
	if ns := s.lastEventAt.Load(); ns > 0 {
		st.LastEventAt = time.Unix(0, ns)
	}
	return st
}
