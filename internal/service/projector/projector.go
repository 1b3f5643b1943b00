// Package projector строит read-модель orders_read из событий топика projector.
package projector

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

// Recorder собирает метрики проектора. nil допустим.
type Recorder interface {
	RecordProjectorEvent(eventType, result string)
}

// Subscriber доставляет события топика.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler messaging.EventHandler) error
}

// Projector применяет события к OrderReadRepository. Все операции идемпотентны.
type Projector struct {
	views    domain.OrderReadRepository
	recorder Recorder
	logger   *log.Entry
}

// New создаёт проектор.
func New(views domain.OrderReadRepository, recorder Recorder, logger *log.Entry) *Projector {
	if logger == nil {
		logger = log.WithField("component", "projector")
	}
	return &Projector{views: views, recorder: recorder, logger: logger}
}

// Start подписывает проектор на топик projector.
func (p *Projector) Start(ctx context.Context, subscriber Subscriber) error {
	if err := subscriber.Subscribe(ctx, messaging.TopicProjector, p.Handle); err != nil {
		return fmt.Errorf("subscribe projector: %w", err)
	}
	p.logger.Info("projector started")
	return nil
}

// Handle применяет событие и логирует ошибку. Ошибка возвращается брокеру,
// решение о подтверждении принимает его политика.
func (p *Projector) Handle(ctx context.Context, event domain.Event) error {
	err := p.Apply(ctx, event)
	result := "applied"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUnknownEvent):
		result = "ignored"
		err = nil
	default:
		result = "failed"
		p.logger.WithError(err).WithFields(log.Fields{
			"type":     event.Type(),
			"order_id": event.AggregateID(),
		}).Error("failed to project event")
	}
	if p.recorder != nil {
		p.recorder.RecordProjectorEvent(string(event.Type()), result)
	}
	return err
}

// Apply обновляет проекцию:
// OrderCreated вставляет CREATED/0 только если строки нет (не откатывает PAID);
// PaymentCompleted вставляет или перезаписывает PAID с суммой.
func (p *Projector) Apply(ctx context.Context, event domain.Event) error {
	switch e := event.(type) {
	case domain.OrderCreated:
		inserted, err := p.views.InsertIfAbsent(ctx, domain.OrderView{
			ID:     e.ID,
			Status: domain.OrderStatusCreated,
			Amount: decimal.Zero,
		})
		if err != nil {
			return fmt.Errorf("project OrderCreated %s: %w", e.ID, err)
		}
		if !inserted {
			p.logger.WithField("order_id", e.ID).Debug("order view already exists, OrderCreated skipped")
		}
		return nil
	case domain.PaymentCompleted:
		if err := p.views.Upsert(ctx, domain.OrderView{
			ID:     e.ID,
			Status: domain.OrderStatusPaid,
			Amount: e.Amount,
		}); err != nil {
			return fmt.Errorf("project PaymentCompleted %s: %w", e.ID, err)
		}
		return nil
	default:
		p.logger.WithField("type", event.Type()).Debug("event ignored by projector")
		return fmt.Errorf("project %s: %w", event.Type(), domain.ErrUnknownEvent)
	}
}
