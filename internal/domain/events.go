package domain

import "github.com/shopspring/decimal"

// EventType определяет тип доменного события.
type EventType string

const (
	EventTypeOrderCreated     EventType = "OrderCreated"
	EventTypePaymentCompleted EventType = "PaymentCompleted"
	EventTypePaymentRequested EventType = "PaymentRequested"
)

// Event — неизменяемый факт о заказе. Реализации: OrderCreated,
// PaymentCompleted, PaymentRequested.
type Event interface {
	Type() EventType
	AggregateID() string
}

// OrderCreated публикуется после создания заказа.
type OrderCreated struct {
	ID string
}

// PaymentCompleted публикуется после успешной оплаты и переводит проекцию в PAID.
type PaymentCompleted struct {
	ID     string
	Amount decimal.Decimal
}

// PaymentRequested уходит в топик payments для аудита.
type PaymentRequested struct {
	ID     string
	Amount decimal.Decimal
}

func (e OrderCreated) Type() EventType     { return EventTypeOrderCreated }
func (e OrderCreated) AggregateID() string { return e.ID }

func (e PaymentCompleted) Type() EventType     { return EventTypePaymentCompleted }
func (e PaymentCompleted) AggregateID() string { return e.ID }

func (e PaymentRequested) Type() EventType     { return EventTypePaymentRequested }
func (e PaymentRequested) AggregateID() string { return e.ID }
