package upstream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"MarketRelay/internal/domain/errs"
	"MarketRelay/internal/domain/models"
	drepo "MarketRelay/internal/domain/repository"
	applogger "MarketRelay/pkg/logger"

	"github.com/gorilla/websocket"
)

// Option configures Client.
type Option func(*Client)

// WithSubscribeMessages sets raw text frames written right after the handshake.
func WithSubscribeMessages(msgs []string) Option {
	return func(c *Client) { c.subscribe = msgs }
}

// WithPingInterval sets the keepalive ping period (0 disables).
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithReadLimit caps the size of a single upstream message.
func WithReadLimit(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

// WithFrameBuffer sets the capacity of the frame channel returned by Read.
func WithFrameBuffer(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.frameBuffer = n
		}
	}
}

// Client implements Connector over a gorilla websocket.
type Client struct {
	dialer       *websocket.Dialer
	subscribe    []string
	pingInterval time.Duration
	readLimit    int64
	frameBuffer  int
	logger       *applogger.Logger
	metrics      drepo.Metrics

	mu       sync.Mutex
	conn     *websocket.Conn
	endpoint string
	state    atomic.Int32
}

// New creates a disconnected upstream client.
func New(l *applogger.Logger, m drepo.Metrics, opts ...Option) *Client {
	d := *websocket.DefaultDialer
	c := &Client{
		dialer:       &d,
		pingInterval: 30 * time.Second,
		readLimit:    1 << 20,
		frameBuffer:  1024,
		logger:       l,
		metrics:      m,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.setState(models.StateDisconnected)
	return c
}

var _ drepo.Connector = (*Client)(nil)

// Connect dials endpoint and sends the configured subscribe frames.
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	c.setState(models.StateConnecting)

	conn, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.setState(models.StateFailed)
		return &errs.ConnectionError{Op: "dial", Endpoint: endpoint, Err: err}
	}
	conn.SetReadLimit(c.readLimit)

	for _, msg := range c.subscribe {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			_ = conn.Close()
			c.setState(models.StateFailed)
			return &errs.ConnectionError{Op: "subscribe", Endpoint: endpoint, Err: err}
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.endpoint = endpoint
	c.setState(models.StateConnected)
	c.mu.Unlock()

	c.logger.Info("upstream connected",
		applogger.String("endpoint", endpoint),
		applogger.Int("subscribe_frames", len(c.subscribe)))
	return nil
}

// Read streams raw frames in arrival order. When the connection ends with
// an error the state becomes Failed, one error is sent on errs and frames
// is closed. A deliberate Disconnect or ctx cancel closes frames silently.
func (c *Client) Read(ctx context.Context) (<-chan []byte, <-chan error) {
	frames := make(chan []byte, c.frameBuffer)
	errc := make(chan error, 1)

	c.mu.Lock()
	conn, endpoint := c.conn, c.endpoint
	c.mu.Unlock()
	if conn == nil {
		errc <- &errs.ConnectionError{Op: "read", Err: errs.ErrNotConnected}
		close(frames)
		return frames, errc
	}

	readCtx, cancel := context.WithCancel(ctx)

	// cancel the blocking read on shutdown
	go func() {
		<-readCtx.Done()
		if ctx.Err() != nil {
			c.release(conn, models.StateDisconnected)
		}
	}()

	if c.pingInterval > 0 {
		go c.pingLoop(readCtx, conn)
	}

	go func() {
		defer close(frames)
		defer cancel()
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if !c.release(conn, models.StateFailed) {
					return // already released by Disconnect or ctx
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = errors.Join(errs.ErrRemoteClosed, err)
				}
				errc <- &errs.ConnectionError{Op: "read", Endpoint: endpoint, Err: err}
				return
			}
			select {
			case frames <- b:
			case <-readCtx.Done():
				return
			}
		}
	}()

	return frames, errc
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a failed ping surfaces through the read loop
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.pingInterval)); err != nil {
				c.metrics.RecordError("upstream_ping")
			}
		}
	}
}

// Disconnect releases the socket unconditionally.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		c.setState(models.StateDisconnected)
		return nil
	}
	c.release(conn, models.StateDisconnected)
	c.logger.Info("upstream disconnected")
	return nil
}

// State returns the current connection state.
func (c *Client) State() models.ConnectionState {
	return models.ConnectionState(c.state.Load())
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.State() == models.StateConnected }

// release closes conn if it is still the live connection and moves to next.
// It reports whether this call did the release.
func (c *Client) release(conn *websocket.Conn, next models.ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return false
	}
	c.conn = nil
	if next == models.StateDisconnected {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	_ = conn.Close()
	c.setState(next)
	return true
}

func (c *Client) setState(s models.ConnectionState) {
	c.state.Store(int32(s))
	c.metrics.SetUpstreamState(s.String())
}
