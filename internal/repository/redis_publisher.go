package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/domain/repository"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher mirrors events onto a Redis pub/sub channel.
type RedisPublisher struct {
	cli     redis.UniversalClient
	channel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisPublisher creates a client for cfg. No connection is made until the first publish.
func NewRedisPublisher(cfg RedisConfig) repository.Publisher {
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	return NewRedisPublisherWithClient(rdb, cfg.Channel)
}

// NewRedisPublisherWithClient publishes through an existing client.
func NewRedisPublisherWithClient(cli redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{cli: cli, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev *models.MarketEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.cli.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

// PublishBatch pipelines one PUBLISH per event, preserving order.
func (p *RedisPublisher) PublishBatch(ctx context.Context, evs []*models.MarketEvent) error {
	if len(evs) == 0 {
		return nil
	}
	pipe := p.cli.Pipeline()
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, p.channel, b)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", p.channel, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error { return p.cli.Close() }
