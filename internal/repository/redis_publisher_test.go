package repository

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"MarketRelay/internal/domain/models"

	"github.com/redis/go-redis/v9"
)

func TestRedisPublishUnreachable(t *testing.T) {
	cli := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	p := NewRedisPublisherWithClient(cli, "market")
	defer p.Close()

	ev := models.NewMarketEvent("BTCUSDT", "65000.50", 1700000000000, nil)
	err := p.Publish(context.Background(), ev)
	if err == nil || !strings.Contains(err.Error(), "redis publish market") {
		t.Fatalf("expected wrapped publish error, got %v", err)
	}
	if err := p.PublishBatch(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
}

// Runs against a real server when REDIS_ADDR is set.
func TestRedisPublishRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cli := redis.NewClient(&redis.Options{Addr: addr})
	sub := cli.Subscribe(ctx, "relay-test")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	p := NewRedisPublisherWithClient(redis.NewClient(&redis.Options{Addr: addr}), "relay-test")
	defer p.Close()
	evs := []*models.MarketEvent{
		models.NewMarketEvent("BTCUSDT", "1", 1, nil),
		models.NewMarketEvent("BTCUSDT", "2", 2, map[string]any{"q": "0.5"}),
	}
	if err := p.PublishBatch(ctx, evs); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for i, want := range evs {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		var got models.MarketEvent
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("payload %d: %v", i, err)
		}
		if got.Price() != want.Price() || got.Timestamp() != want.Timestamp() {
			t.Fatalf("message %d = %s", i, msg.Payload)
		}
	}
}
