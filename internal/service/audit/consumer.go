// Package audit потребляет топик payments: логирует запросы на оплату и подтверждает их.
package audit

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

// DefaultDelay — имитация обработки перед подтверждением.
const DefaultDelay = 50 * time.Millisecond

// Recorder собирает метрики аудита. nil допустим.
type Recorder interface {
	RecordAuditEvent()
}

// Subscriber доставляет события топика.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler messaging.EventHandler) error
}

// Consumer — потребитель аудита платежей.
type Consumer struct {
	delay    time.Duration
	recorder Recorder
	logger   *log.Entry
}

// NewConsumer создаёт потребителя. delay < 0 заменяется на DefaultDelay.
func NewConsumer(delay time.Duration, recorder Recorder, logger *log.Entry) *Consumer {
	if delay < 0 {
		delay = DefaultDelay
	}
	if logger == nil {
		logger = log.WithField("component", "payments-audit")
	}
	return &Consumer{delay: delay, recorder: recorder, logger: logger}
}

// Start подписывает потребителя на топик payments.
func (c *Consumer) Start(ctx context.Context, subscriber Subscriber) error {
	if err := subscriber.Subscribe(ctx, messaging.TopicPayments, c.Handle); err != nil {
		return fmt.Errorf("subscribe payments audit: %w", err)
	}
	c.logger.Info("payments audit consumer started")
	return nil
}

// Handle логирует событие и подтверждает его после задержки.
func (c *Consumer) Handle(ctx context.Context, event domain.Event) error {
	fields := log.Fields{
		"type":     event.Type(),
		"order_id": event.AggregateID(),
	}
	if requested, ok := event.(domain.PaymentRequested); ok {
		fields["amount"] = requested.Amount.String()
	}
	c.logger.WithFields(fields).Info("payment event received")

	if c.delay > 0 {
		timer := time.NewTimer(c.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	if c.recorder != nil {
		c.recorder.RecordAuditEvent()
	}
	return nil
}
