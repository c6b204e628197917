// Package kafka writes keyed messages to one topic with kafka-go.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// Message is one record. Key picks the partition.
type Message struct {
	Key   []byte
	Value []byte
}

// Producer wraps a kafka-go writer bound to a single topic.
type Producer struct {
	writer      *kafka.Writer
	compression string
	metrics     *producerMetrics
}

// NewProducer validates cfg and builds the writer. Metrics go to reg; a nil
// reg keeps them unregistered.
func NewProducer(cfg ProducerConfig, reg prometheus.Registerer) (*Producer, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}
	comp, err := parseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	// hashing the symbol key keeps each symbol on one partition, in order
	var bal kafka.Balancer = &kafka.Hash{}
	if cfg.SpreadKeys {
		bal = &kafka.LeastBytes{}
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     bal,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  comp,
		MaxAttempts:  cfg.MaxAttempts,
		WriteTimeout: cfg.WriteTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		BatchSize:    cfg.BatchSize,
		BatchBytes:   int64(cfg.BatchBytes),
		BatchTimeout: cfg.Linger,
		Async:        cfg.Async,
	}
	return &Producer{writer: w, compression: cfg.Compression, metrics: newProducerMetrics(reg)}, nil
}

// Topic returns the destination topic.
func (p *Producer) Topic() string { return p.writer.Topic }

// Write sends msgs in one call. With Async set, broker errors are not reported here.
func (p *Producer) Write(ctx context.Context, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}
	start := time.Now()
	out := make([]kafka.Message, len(msgs))
	var size int
	for i, m := range msgs {
		out[i] = kafka.Message{Key: m.Key, Value: m.Value, Time: start}
		size += len(m.Value)
	}

	err := p.writer.WriteMessages(ctx, out...)
	p.metrics.observe(p.writer.Topic, p.compression, len(msgs), size, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes pending writes.
func (p *Producer) Close() error {
	return p.writer.Close()
}

func parseCompression(s string) (kafka.Compression, error) {
	switch s {
	case "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("kafka: unknown compression %q", s)
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newProducerMetrics(reg prometheus.Registerer) *producerMetrics {
	f := promauto.With(reg)
	return &producerMetrics{
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_kafka_producer_messages_total",
			Help: "Messages handed to Kafka by result",
		}, []string{"topic", "compression", "result"}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_kafka_producer_bytes_total",
			Help: "Payload bytes handed to Kafka",
		}, []string{"topic", "compression"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_kafka_producer_write_seconds",
			Help:    "WriteMessages latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}
}

func (m *producerMetrics) observe(topic, comp string, n, size int, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.messages.WithLabelValues(topic, comp, result).Add(float64(n))
	m.bytes.WithLabelValues(topic, comp).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
}
