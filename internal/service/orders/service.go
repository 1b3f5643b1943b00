// Package orders содержит сервис записи: создание и оплата заказов.
package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

// Service описывает операции стороны записи.
type Service interface {
	CreateOrder(ctx context.Context) (domain.Order, error)
	PayOrder(ctx context.Context, id string, amount decimal.Decimal) (domain.Order, error)
}

// Recorder собирает метрики сервиса. nil допустим.
type Recorder interface {
	RecordOrderCreated()
	RecordPayment(result string)
}

// UUIDGenerator выдаёт упорядоченные по времени UUID v7.
type UUIDGenerator struct{}

// NewID возвращает новый идентификатор.
func (UUIDGenerator) NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

type service struct {
	orders    domain.OrderWriteRepository
	payments  domain.PaymentCharger
	publisher domain.EventPublisher
	ids       domain.IDGenerator
	recorder  Recorder
	logger    *log.Entry
}

// Option настраивает сервис.
type Option func(*service)

// WithIDGenerator подменяет генератор идентификаторов.
func WithIDGenerator(ids domain.IDGenerator) Option {
	return func(s *service) {
		s.ids = ids
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) Option {
	return func(s *service) {
		s.recorder = recorder
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// NewService создаёт сервис записи.
func NewService(
	orders domain.OrderWriteRepository,
	payments domain.PaymentCharger,
	publisher domain.EventPublisher,
	options ...Option,
) Service {
	s := &service{
		orders:    orders,
		payments:  payments,
		publisher: publisher,
		ids:       UUIDGenerator{},
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "order-service")
	}
	return s
}

// CreateOrder сохраняет заказ CREATED с нулевой суммой и публикует OrderCreated.
func (s *service) CreateOrder(ctx context.Context) (domain.Order, error) {
	order := domain.NewOrder(s.ids.NewID())
	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	if s.recorder != nil {
		s.recorder.RecordOrderCreated()
	}

	s.publish(ctx, messaging.TopicProjector, domain.OrderCreated{ID: order.ID})
	s.logger.WithField("order_id", order.ID).Info("order created")
	return order, nil
}

// PayOrder списывает amount и переводит заказ в PAID.
// При отказе платежа запись не меняется, ошибка оборачивает payment.ChargeError.
func (s *service) PayOrder(ctx context.Context, id string, amount decimal.Decimal) (domain.Order, error) {
	logger := s.logger.WithField("order_id", id)

	if amount.IsNegative() {
		return domain.Order{}, domain.ErrAmountNegative
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order %s: %w", id, err)
	}
	if order.Status == domain.OrderStatusPaid {
		s.recordPayment("rejected")
		return domain.Order{}, domain.ErrOrderAlreadyPaid
	}

	if err := s.payments.Charge(ctx, id, amount); err != nil {
		s.recordPayment("failed")
		logger.WithError(err).Warn("payment failed")
		return domain.Order{}, fmt.Errorf("charge order %s: %w", id, err)
	}

	if err := order.MarkPaid(amount); err != nil {
		return domain.Order{}, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		// деньги списаны, но запись не обновлена
		logger.WithError(err).Error("failed to persist paid order after successful charge")
		return domain.Order{}, fmt.Errorf("save order %s: %w", id, err)
	}
	order.Version++
	s.recordPayment("paid")

	s.publish(ctx, messaging.TopicPayments, domain.PaymentRequested{ID: id, Amount: amount})
	s.publish(ctx, messaging.TopicProjector, domain.PaymentCompleted{ID: id, Amount: amount})

	logger.WithField("amount", amount.String()).Info("order paid")
	return order, nil
}

// publish отправляет событие; ошибка публикации не откатывает операцию.
func (s *service) publish(ctx context.Context, topic string, event domain.Event) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": event.AggregateID(),
			"topic":    topic,
			"type":     event.Type(),
		}).Error("failed to publish event")
	}
}

func (s *service) recordPayment(result string) {
	if s.recorder != nil {
		s.recorder.RecordPayment(result)
	}
}
