package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var upstreamStates = []string{"disconnected", "connecting", "connected", "failed"}

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent  *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	subscribers   prometheus.Gauge
	upstreamState *prometheus.GaugeVec
	reconnects    prometheus.Counter
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg (useful for testing).
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_messages_sent_total",
				Help: "Total number of events handed to a sink",
			},
			[]string{"sink", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_last_price",
				Help: "Last relayed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		subscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "relay_subscribers",
			Help: "Currently registered downstream subscriptions",
		}),
		upstreamState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_upstream_state",
				Help: "1 for the current upstream connection state, 0 otherwise",
			},
			[]string{"state"},
		),
		reconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "relay_upstream_reconnects_total",
			Help: "Reconnect attempts after an upstream failure",
		}),
	}
}

// RecordMessageSent records an event handed to a sink.
func (r *Recorder) RecordMessageSent(sink, symbol string) {
	r.messagesSent.WithLabelValues(sink, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) SetSubscribers(n int) { r.subscribers.Set(float64(n)) }

// SetUpstreamState flips the one-hot state gauge.
func (r *Recorder) SetUpstreamState(state string) {
	for _, s := range upstreamStates {
		v := 0.0
		if s == state {
			v = 1
		}
		r.upstreamState.WithLabelValues(s).Set(v)
	}
}

func (r *Recorder) RecordReconnect() { r.reconnects.Inc() }

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordMessageSent(string, string) {}
func (Nop) RecordError(string) {}
func (Nop) RecordLastPrice(string, float64) {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) SetSubscribers(int) {}
func (Nop) SetUpstreamState(string) {}
func (Nop) RecordReconnect() {}
