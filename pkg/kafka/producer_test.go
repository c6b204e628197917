package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
)

func TestNewProducerRequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewProducer(ProducerConfig{Topic: "market.events"}, nil); err == nil {
		t.Fatalf("expected error without brokers")
	}
	if _, err := NewProducer(ProducerConfig{Brokers: []string{"127.0.0.1:9092"}}, nil); err == nil {
		t.Fatalf("expected error without topic")
	}
	if _, err := NewProducer(ProducerConfig{Brokers: []string{"127.0.0.1:9092"}, Topic: "t", Compression: "brotli"}, nil); err == nil {
		t.Fatalf("expected error for unknown compression")
	}
}

func TestNewProducerDefaults(t *testing.T) {
	p, err := NewProducer(ProducerConfig{Brokers: []string{"127.0.0.1:9092"}, Topic: "market.events"}, nil)
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p.Close()

	w := p.writer
	if p.Topic() != "market.events" || w.Compression != kafka.Snappy || w.MaxAttempts != 3 {
		t.Fatalf("unexpected writer %+v", w)
	}
	if w.BatchSize != 100 || w.BatchBytes != 1<<20 || w.BatchTimeout != 10*time.Millisecond {
		t.Fatalf("unexpected batching %d %d %v", w.BatchSize, w.BatchBytes, w.BatchTimeout)
	}
	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Fatalf("balancer = %T", w.Balancer)
	}
}

func TestNewProducerAppliesConfig(t *testing.T) {
	p, err := NewProducer(ProducerConfig{
		Brokers:      []string{"127.0.0.1:9092"},
		Topic:        "market.events",
		Compression:  "lz4",
		RequiredAcks: -1,
		SpreadKeys:   true,
	}, nil)
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p.Close()

	if p.writer.Compression != kafka.Lz4 {
		t.Fatalf("compression = %v", p.writer.Compression)
	}
	if p.writer.RequiredAcks != kafka.RequireAll {
		t.Fatalf("acks = %v", p.writer.RequiredAcks)
	}
	if _, ok := p.writer.Balancer.(*kafka.LeastBytes); !ok {
		t.Fatalf("balancer = %T", p.writer.Balancer)
	}
	if err := p.Write(context.Background()); err != nil {
		t.Fatalf("empty write: %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	cases := map[string]kafka.Compression{
		"gzip":   kafka.Gzip,
		"snappy": kafka.Snappy,
		"lz4":    kafka.Lz4,
		"zstd":   kafka.Zstd,
		"none":   0,
	}
	for in, want := range cases {
		got, err := parseCompression(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v %v want %v", in, got, err, want)
		}
	}
}

func TestWriteFailureIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewProducer(ProducerConfig{
		Brokers:      []string{"127.0.0.1:1"},
		Topic:        "market.events",
		MaxAttempts:  1,
		WriteTimeout: 100 * time.Millisecond,
	}, reg)
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Write(ctx, Message{Key: []byte("BTCUSDT"), Value: []byte(`{}`)}); err == nil {
		t.Fatalf("expected write error against a closed port")
	}
	if got := testutil.ToFloat64(p.metrics.messages.WithLabelValues("market.events", "snappy", "error")); got != 1 {
		t.Fatalf("error count = %v", got)
	}
	if got := testutil.ToFloat64(p.metrics.bytes.WithLabelValues("market.events", "snappy")); got != 2 {
		t.Fatalf("bytes = %v", got)
	}
}
