package api

import (
	"time"

	models "MarketRelay/internal/domain/models"
	xhttp "MarketRelay/pkg/http"
	xlogger "MarketRelay/pkg/logger"

	"github.com/labstack/echo/v4"
)

// StatusSource is satisfied by the relay supervisor.
type StatusSource interface {
	Status() models.RelayStatus
}

// RelayHandler serves health, readiness and relay status.
type RelayHandler struct {
	logger *xlogger.Logger
	relay  StatusSource
}

func NewRelayHandler(logger *xlogger.Logger, relay StatusSource) *RelayHandler {
	return &RelayHandler{logger: logger, relay: relay}
}

func (h *RelayHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/ready", h.Ready)
	e.GET("/api/relay/status", h.Status)
}

// StatusResponse is the wire form of models.RelayStatus.
type StatusResponse struct {
	Topic         string     `json:"topic"`
	Endpoint      string     `json:"endpoint"`
	State         string     `json:"state"`
	Subscribers   int        `json:"subscribers"`
	Reconnects    int64      `json:"reconnects"`
	EventsRelayed int64      `json:"events_relayed"`
	LastError     string     `json:"last_error,omitempty"`
	LastEventAt   *time.Time `json:"last_event_at,omitempty"`
}

func toStatusResponse(s models.RelayStatus) StatusResponse {
	res := StatusResponse{
		Topic:         s.Topic,
		Endpoint:      s.Endpoint,
		State:         s.State.String(),
		Subscribers:   s.Subscribers,
		Reconnects:    s.Reconnects,
		EventsRelayed: s.EventsRelayed,
		LastError:     s.LastError,
	}
	if !s.LastEventAt.IsZero() {
		t := s.LastEventAt.UTC()
		res.LastEventAt = &t
	}
	return res
}

// Health is liveness: the process serves HTTP.
func (h *RelayHandler) Health(c echo.Context) error {
	return xhttp.OK(c, map[string]string{"status": "ok"})
}

// Ready reports 503 while the upstream is not connected. Subscribers may
// still attach during an outage; they just receive nothing until it recovers.
func (h *RelayHandler) Ready(c echo.Context) error {
	st := h.relay.Status()
	body := map[string]string{"upstream": st.State.String()}
	if st.State != models.StateConnected {
		return xhttp.Unavailable(c, body)
	}
	return xhttp.OK(c, body)
}

func (h *RelayHandler) Status(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.OK(c, toStatusResponse(h.relay.Status()))
}
