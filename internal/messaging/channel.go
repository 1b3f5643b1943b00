package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// PublishRecorder считает публикации. nil допустим.
type PublishRecorder interface {
	RecordPublish(topic string, err error)
}

// EventHandler обрабатывает декодированное событие.
type EventHandler func(ctx context.Context, event domain.Event) error

// Channel — типизированная обёртка над Broker: кодирует доменные события в конверт.
type Channel struct {
	broker   Broker
	logger   *log.Entry
	recorder PublishRecorder
	now      func() time.Time
}

// ChannelOption настраивает Channel.
type ChannelOption func(*Channel)

// WithChannelLogger задаёт logger.
func WithChannelLogger(logger *log.Entry) ChannelOption {
	return func(c *Channel) {
		c.logger = logger
	}
}

// WithPublishRecorder задаёт получателя метрик публикации.
func WithPublishRecorder(recorder PublishRecorder) ChannelOption {
	return func(c *Channel) {
		c.recorder = recorder
	}
}

// NewChannel создаёт канал поверх broker.
func NewChannel(broker Broker, options ...ChannelOption) *Channel {
	c := &Channel{broker: broker, now: time.Now}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "event-channel")
	}
	return c
}

// Publish кодирует событие и отправляет его в topic.
func (c *Channel) Publish(ctx context.Context, topic string, event domain.Event) error {
	payload, err := Encode(event, c.now())
	if err == nil {
		err = c.broker.Publish(ctx, topic, event.AggregateID(), payload)
	}
	if c.recorder != nil {
		c.recorder.RecordPublish(topic, err)
	}
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", event.Type(), topic, err)
	}

	c.logger.WithFields(log.Fields{
		"topic":    topic,
		"type":     event.Type(),
		"order_id": event.AggregateID(),
	}).Debug("event published")
	return nil
}

// Subscribe декодирует входящие сообщения и передаёт события handler.
// Сообщения неизвестного типа подтверждаются без вызова handler.
// Прочие ошибки декодирования возвращаются брокеру как ошибка обработки.
func (c *Channel) Subscribe(ctx context.Context, topic string, handler EventHandler) error {
	return c.broker.Subscribe(ctx, topic, func(ctx context.Context, payload []byte) error {
		event, err := Decode(payload)
		if errors.Is(err, domain.ErrUnknownEvent) {
			c.logger.WithError(err).WithField("topic", topic).Debug("unknown event type ignored")
			return nil
		}
		if err != nil {
			return err
		}
		return handler(ctx, event)
	})
}

var _ domain.EventPublisher = (*Channel)(nil)
