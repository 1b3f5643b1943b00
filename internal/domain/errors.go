package domain

import (
	"context"
	"errors"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderAlreadyExists — запись с таким ID уже есть.
	ErrOrderAlreadyExists = errors.New("order already exists")
	// ErrOrderAlreadyPaid — повторная оплата заказа в статусе PAID.
	ErrOrderAlreadyPaid = errors.New("order already paid")
	// ErrAmountNegative — отрицательная сумма платежа.
	ErrAmountNegative = errors.New("amount must be non-negative")
	// ErrMalformedRequest — во входящем запросе нет обязательного поля.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrPaymentFailed — временная ошибка платёжного провайдера, можно повторить попытку.
	ErrPaymentFailed = errors.New("random_fail")
	// ErrPaymentTimeout — провайдер не ответил за отведённое время; считается отказом.
	ErrPaymentTimeout = errors.New("payment call timed out")
	// ErrCircuitOpen — circuit breaker разомкнут, вызов не выполнялся. Не повторяется.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrUnknownEvent — тип события не распознан.
	ErrUnknownEvent = errors.New("unknown event type")
	// ErrFailureRateOutOfRange — failure rate вне диапазона [0,1].
	ErrFailureRateOutOfRange = errors.New("failure rate must be within [0,1]")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsRetryablePayment сообщает, имеет ли смысл повторять платёж после ошибки.
// Разомкнутый breaker и отмена запроса не ретраятся, остальное считается временным сбоем.
func IsRetryablePayment(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
