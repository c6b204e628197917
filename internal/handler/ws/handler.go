// Package ws serves the relay topic to browser and service consumers over websocket.
package ws

import (
	"encoding/json"
	"net/http"
	"time"

	drepo "MarketRelay/internal/domain/repository"
	"MarketRelay/internal/service/ratelimit"
	"MarketRelay/internal/session"
	xhttp "MarketRelay/pkg/http"
	"MarketRelay/pkg/http/middleware"
	applogger "MarketRelay/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const maxInboundMessage = 4096

// Options tunes downstream sessions.
type Options struct {
	Buffer         int
	WriteTimeout   time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	AllowedOrigins []string
}

func (o *Options) applyDefaults() {
	if o.Buffer <= 0 {
		o.Buffer = session.DefaultBuffer
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
}

// Handler upgrades subscribers and attaches each one to the hub.
type Handler struct {
	hub      drepo.Broadcaster
	topic    string
	limiter  *ratelimit.Limiter
	opts     Options
	upgrader websocket.Upgrader
	logger   *applogger.Logger
	metrics  drepo.Metrics
}

// NewHandler creates the websocket handler for topic. limiter may be nil.
func NewHandler(hub drepo.Broadcaster, topic string, limiter *ratelimit.Limiter, opts Options, l *applogger.Logger, m drepo.Metrics) *Handler {
	opts.applyDefaults()
	h := &Handler{
		hub:     hub,
		topic:   topic,
		limiter: limiter,
		opts:    opts,
		logger:  l,
		metrics: m,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(h.opts.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return h
}

// RegisterRoutes implements xhttp.Handler.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ws/topic/:topic", h.Subscribe)
}

type subscribeRequest struct {
	Topic  string `param:"topic" validate:"required"`
	Buffer int    `query:"buffer" validate:"gte=0,lte=65536"`

	relayBuffer int
}

// SetDefaults falls back to the relay-wide buffer when the client sends none or 0.
func (r *subscribeRequest) SetDefaults() {
	if r.Buffer == 0 {
		r.Buffer = r.relayBuffer
	}
}

// Subscribe upgrades the request and streams every event published after this point.
func (h *Handler) Subscribe(c echo.Context) error {
	req := subscribeRequest{relayBuffer: h.opts.Buffer}
	if verrs := xhttp.ReadAndValidateRequest(c, &req); verrs != nil {
		return xhttp.BadRequest(c, verrs)
	}
	if req.Topic != h.topic {
		return xhttp.Fail(c, xhttp.NotFound("unknown topic %q", req.Topic).WithParam("topic", h.topic))
	}
	remote := c.RealIP()
	if h.limiter != nil && !h.limiter.Allow(remote) {
		h.metrics.RecordError("ws_rate_limited")
		return xhttp.Fail(c, xhttp.TooManyRequests("too many connection attempts"))
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the HTTP error
		h.metrics.RecordError("ws_upgrade")
		h.logger.Warn("websocket upgrade failed", applogger.Error(err), applogger.String("remote_ip", remote))
		return nil
	}

	buffer := req.Buffer
	s := session.New(buffer)
	id, err := h.hub.Subscribe(s)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "relay unavailable"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return nil
	}

	l := h.logger.With("subscription", id)
	l.Info("subscriber connected", applogger.String("remote_ip", remote), applogger.Int("buffer", buffer))
	start := time.Now()

	go h.writePump(conn, s, l)
	h.readPump(conn, s)

	l.Info("subscriber disconnected", applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// readPump only services control frames; consumers never send data we act on.
func (h *Handler) readPump(conn *websocket.Conn, s *session.Session) {
	defer s.Close()
	conn.SetReadLimit(maxInboundMessage)
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, s *session.Session, l *applogger.Logger) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case <-s.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
				time.Now().Add(h.opts.WriteTimeout))
			return
		case ev := <-s.Events():
			b, err := json.Marshal(ev)
			if err != nil {
				h.metrics.RecordError("ws_encode")
				l.Error("encode event failed", applogger.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				h.metrics.RecordError("ws_write")
				l.Debug("write failed", applogger.Error(err))
				return
			}
			h.metrics.RecordMessageSent("ws", ev.Symbol())
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
