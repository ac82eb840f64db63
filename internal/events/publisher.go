package events

import (
	"context"

	"pricewise/internal/adapters/kafka"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

const source = "pricing_orchestrator"

// Producer is the subset of kafka.Producer the publisher needs.
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher publishes run lifecycle events keyed by user id.
type Publisher struct {
	producer Producer
	log      *logger.Logger
}

func NewPublisher(producer Producer) *Publisher {
	return &Publisher{
		producer: producer,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, event RunCompleted) error {
	event.BaseEvent = NewBaseEvent(TypeRunCompleted, source, event.UserID)
	return p.publish(ctx, kafka.TopicRunCompleted, event.UserID, event)
}

func (p *Publisher) PublishRunFailed(ctx context.Context, event RunFailed) error {
	event.BaseEvent = NewBaseEvent(TypeRunFailed, source, event.UserID)
	event.Error = SanitizeUTF8(event.Error)
	return p.publish(ctx, kafka.TopicRunFailed, event.UserID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event interface{}) error {
	if err := p.producer.Publish(ctx, topic, key, event); err != nil {
		return errors.Wrapf(err, "publish %s", topic)
	}
	p.log.Debugw("Event published", "topic", topic, "key", key)
	return nil
}

// NoopPublisher drops events; used when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishRunCompleted(context.Context, RunCompleted) error { return nil }
func (NoopPublisher) PublishRunFailed(context.Context, RunFailed) error       { return nil }
