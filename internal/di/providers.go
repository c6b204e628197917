package di

import (
	"fmt"

	"MarketRelay/internal/domain/repository"
	"MarketRelay/internal/handler/api"
	"MarketRelay/internal/handler/ws"
	"MarketRelay/internal/hub"
	internalrepo "MarketRelay/internal/repository"
	"MarketRelay/internal/service/decoder"
	"MarketRelay/internal/service/mirror"
	"MarketRelay/internal/service/ratelimit"
	"MarketRelay/internal/service/upstream"
	"MarketRelay/internal/usecase"
	"MarketRelay/pkg/config"
	xhttp "MarketRelay/pkg/http"
	pkgkafka "MarketRelay/pkg/kafka"
	applogger "MarketRelay/pkg/logger"
	"MarketRelay/pkg/metrics"
	"MarketRelay/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With("env", cfg.Environment), nil
}

// ProvideRegistry creates the process registry with runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.NewWithRegisterer(reg)
}

// ProvideHub creates the process-wide broadcast hub.
func ProvideHub(l *applogger.Logger, m repository.Metrics) *hub.Hub {
	return hub.New(l.With("component", "hub"), m)
}

// ProvideUpstream creates the websocket connector.
func ProvideUpstream(cfg *config.Config, l *applogger.Logger, m repository.Metrics) repository.Connector {
	return upstream.New(l.With("component", "upstream"), m,
		upstream.WithSubscribeMessages(cfg.Upstream.Subscribe),
		upstream.WithHandshakeTimeout(cfg.Upstream.HandshakeTimeout),
		upstream.WithPingInterval(cfg.Upstream.PingInterval),
		upstream.WithReadLimit(cfg.Upstream.ReadLimit),
		upstream.WithFrameBuffer(cfg.Upstream.FrameBuffer),
	)
}

// ProvideDecoder creates the frame decoder.
func ProvideDecoder(cfg *config.Config) repository.Decoder {
	return decoder.New(
		decoder.WithKeys(cfg.Decoder.SymbolKey, cfg.Decoder.PriceKey, cfg.Decoder.TimeKey),
		decoder.WithFallbackTimeKey(cfg.Decoder.FallbackTime),
		decoder.WithMaxFrameBytes(cfg.Decoder.MaxFrameBytes),
	)
}

// ProvideBackoff creates the reconnect schedule.
func ProvideBackoff(cfg *config.Config) usecase.Backoff {
	return usecase.NewExponentialBackoff(cfg.Relay.BackoffInitial, cfg.Relay.BackoffMax, cfg.Relay.BackoffMultiplier)
}

// ProvideRelaySupervisor creates the relay use case.
func ProvideRelaySupervisor(
	cfg *config.Config,
	conn repository.Connector,
	dec repository.Decoder,
	h *hub.Hub,
	b usecase.Backoff,
	l *applogger.Logger,
	m repository.Metrics,
) *usecase.RelaySupervisor {
	return usecase.NewRelaySupervisor(conn, dec, h, b, cfg.Upstream.URL, cfg.Relay.Topic, l, m)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the mirror is off.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.Topic,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		Linger:       cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
	}, reg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("kafka mirror enabled",
		applogger.Strings("brokers", cfg.Kafka.Brokers),
		applogger.String("topic", cfg.Kafka.Topic),
		applogger.String("compression", cfg.Kafka.Compression),
		applogger.Bool("async", cfg.Kafka.Producer.Async))
	return producer, nil
}

// ProvideMirrors builds one forwarder per enabled broker.
func ProvideMirrors(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	h *hub.Hub,
	l *applogger.Logger,
	m repository.Metrics,
) []*mirror.Forwarder {
	var out []*mirror.Forwarder
	if producer != nil {
		pub := internalrepo.NewKafkaPublisher(producer)
		out = append(out, mirror.New("kafka", h, pub, l, m,
			mirror.WithBatchSize(cfg.Kafka.Producer.BatchSize),
			mirror.WithPublishTimeout(cfg.Kafka.Producer.WriteTimeout),
		))
	}
	if cfg.Redis.Enabled {
		pub := internalrepo.NewRedisPublisher(internalrepo.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Channel:  cfg.Redis.Channel,
		})
		out = append(out, mirror.New("redis", h, pub, l, m))
		l.Info("redis mirror enabled",
			applogger.String("addr", cfg.Redis.Addr),
			applogger.String("channel", cfg.Redis.Channel))
	}
	return out
}

// ProvideRateLimiter creates the per-IP connect limiter.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Downstream.ConnectBurst, cfg.Downstream.ConnectPerSec)
}

// ProvideWSHandler creates the downstream websocket handler.
func ProvideWSHandler(
	cfg *config.Config,
	h *hub.Hub,
	limiter *ratelimit.Limiter,
	l *applogger.Logger,
	m repository.Metrics,
) *ws.Handler {
	return ws.NewHandler(h, cfg.Relay.Topic, limiter, ws.Options{
		Buffer:         cfg.Relay.SubscriberBuffer,
		WriteTimeout:   cfg.Downstream.WriteTimeout,
		PongWait:       cfg.Downstream.PongWait,
		PingPeriod:     cfg.Downstream.PingPeriod,
		AllowedOrigins: cfg.Downstream.AllowedOrigins,
	}, l.With("component", "ws"), m)
}

// ProvideRelayHandler creates the status/health handler.
func ProvideRelayHandler(l *applogger.Logger, relay *usecase.RelaySupervisor) *api.RelayHandler {
	return api.NewRelayHandler(l, relay)
}

// ProvideHTTPServer creates the echo server with every route.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	reg *prometheus.Registry,
	wsh *ws.Handler,
	apih *api.RelayHandler,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l.With("component", "http"), []xhttp.Handler{wsh, apih},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithAllowOrigins(cfg.Downstream.AllowedOrigins),
		xhttp.WithMetrics(metricsPath, reg, reg),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	l *applogger.Logger,
	relay *usecase.RelaySupervisor,
	mirrors []*mirror.Forwarder,
	srv *xhttp.Server,
	limiter *ratelimit.Limiter,
) *server.App {
	return server.New(l, relay, mirrors, srv, limiter)
}
