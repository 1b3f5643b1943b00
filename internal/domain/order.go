package domain

import "github.com/shopspring/decimal"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusCreated — заказ создан, оплата ещё не выполнена.
	OrderStatusCreated OrderStatus = "CREATED"
	// OrderStatusPaid — платёж подтверждён, сумма зафиксирована.
	OrderStatusPaid OrderStatus = "PAID"
)

// DefaultPayAmount используется, если клиент не передал сумму оплаты.
var DefaultPayAmount = decimal.NewFromInt(10)

// Order — авторитетная запись заказа на стороне записи (orders_write).
// Изменяется только сервисом записи.
type Order struct {
	ID      string
	Status  OrderStatus
	Amount  decimal.Decimal
	Version int64
}

// NewOrder возвращает заказ в статусе CREATED с нулевой суммой.
func NewOrder(id string) Order {
	return Order{
		ID:     id,
		Status: OrderStatusCreated,
		Amount: decimal.Zero,
	}
}

// MarkPaid переводит заказ CREATED -> PAID и фиксирует сумму.
func (o *Order) MarkPaid(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrAmountNegative
	}
	if o.Status == OrderStatusPaid {
		return ErrOrderAlreadyPaid
	}
	o.Status = OrderStatusPaid
	o.Amount = amount
	return nil
}

// View возвращает снимок заказа в форме read-модели.
func (o Order) View() OrderView {
	return OrderView{ID: o.ID, Status: o.Status, Amount: o.Amount}
}

// OrderView — строка read-модели (orders_read), которую строит проектор.
// Это eventually-consistent копия Order; сериализуется в кэш как есть.
type OrderView struct {
	ID     string          `json:"id"`
	Status OrderStatus     `json:"status"`
	Amount decimal.Decimal `json:"amount"`
}
