package repository

import (
	"context"

	"MarketRelay/internal/domain/models"
)

// Connector owns the outbound connection to the upstream feed.
// It never retries on its own; the supervisor owns retry policy.
type Connector interface {
	Connect(ctx context.Context, endpoint string) error
	Read(ctx context.Context) (<-chan []byte, <-chan error)
	Disconnect() error
	State() models.ConnectionState
}

// Decoder turns one raw frame into an event. Implementations must be pure.
type Decoder interface {
	Decode(raw []byte) (*models.MarketEvent, error)
}

// Sink is the push side of one downstream session.
type Sink interface {
	// Push must not block. It returns false when the sink is saturated or closed.
	Push(ev *models.MarketEvent) bool
	// Done is closed once the downstream consumer is gone.
	Done() <-chan struct{}
	Close()
}

// Broadcaster fans events out to registered sinks.
type Broadcaster interface {
	Subscribe(s Sink) (string, error)
	Unsubscribe(id string)
	Publish(ev *models.MarketEvent)
	Len() int
	Close()
}

// Publisher mirrors events to an external broker.
type Publisher interface {
	Publish(ctx context.Context, ev *models.MarketEvent) error
	PublishBatch(ctx context.Context, evs []*models.MarketEvent) error
	Close() error
}

type Metrics interface {
	RecordMessageSent(sink, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	SetSubscribers(n int)
	SetUpstreamState(state string)
	RecordReconnect()
}
