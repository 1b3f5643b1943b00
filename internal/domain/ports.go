package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// OrderWriteRepository хранит авторитетные записи заказов (orders_write).
type OrderWriteRepository interface {
	// Create сохраняет новый заказ или возвращает ErrOrderAlreadyExists.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ по ID или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// Save применяет изменения с проверкой версии (optimistic locking).
	Save(ctx context.Context, order Order) error
}

// OrderReadRepository хранит проекцию заказов (orders_read).
type OrderReadRepository interface {
	// InsertIfAbsent добавляет строку, только если её ещё нет. Возвращает true, если вставка произошла.
	InsertIfAbsent(ctx context.Context, view OrderView) (bool, error)
	// Upsert вставляет строку или перезаписывает статус и сумму.
	Upsert(ctx context.Context, view OrderView) error
	// Get возвращает строку проекции или ErrOrderNotFound.
	Get(ctx context.Context, id string) (OrderView, error)
}

// PaymentCharger списывает деньги за заказ.
type PaymentCharger interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal) error
}

// EventPublisher публикует доменные события в логический топик (fire-and-forget).
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// IDGenerator выдаёт уникальные идентификаторы заказов.
type IDGenerator interface {
	NewID() string
}
