package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"MarketRelay/internal/domain/models"
	"MarketRelay/internal/domain/repository"
	pkgkafka "MarketRelay/pkg/kafka"
)

// KafkaPublisher mirrors events to a Kafka topic, keyed by symbol, with the
// downstream JSON encoding as the value.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
}

func NewKafkaPublisher(producer *pkgkafka.Producer) repository.Publisher {
	return &KafkaPublisher{producer: producer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev *models.MarketEvent) error {
	return p.PublishBatch(ctx, []*models.MarketEvent{ev})
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, evs []*models.MarketEvent) error {
	msgs, err := toMessages(evs)
	if err != nil {
		return err
	}
	return p.producer.Write(ctx, msgs...)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func toMessages(evs []*models.MarketEvent) ([]pkgkafka.Message, error) {
	msgs := make([]pkgkafka.Message, 0, len(evs))
	for _, ev := range evs {
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode %s event: %w", ev.Symbol(), err)
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(ev.Symbol()), Value: b})
	}
	return msgs, nil
}
