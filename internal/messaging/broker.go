// Package messaging описывает канал событий между сервисами: контракт брокера,
// политику подтверждений и кодек конверта события.
package messaging

import (
	"context"
	"errors"
)

// Логические топики.
const (
	TopicProjector = "projector"
	TopicPayments  = "payments"
)

// ErrBrokerClosed возвращается при работе с закрытым брокером.
var ErrBrokerClosed = errors.New("broker closed")

// Handler обрабатывает одно доставленное сообщение.
type Handler func(ctx context.Context, payload []byte) error

// Policy определяет, что делать с сообщением после ошибки обработчика.
type Policy struct {
	// AckOnFailure подтверждает сообщение даже при ошибке, чтобы «ядовитое» сообщение
	// не крутилось бесконечно. false возвращает сообщение в очередь.
	AckOnFailure bool
}

// DefaultPolicy подтверждает все сообщения.
func DefaultPolicy() Policy {
	return Policy{AckOnFailure: true}
}

// Settle сообщает, подтверждать ли сообщение после обработки с ошибкой err.
func (p Policy) Settle(err error) (ack bool) {
	return err == nil || p.AckOnFailure
}

// Broker — транспорт с доставкой at-least-once.
type Broker interface {
	// Publish отправляет payload в topic. Ключ используется для партиционирования, если драйвер его поддерживает.
	Publish(ctx context.Context, topic, key string, payload []byte) error
	// Subscribe регистрирует обработчик; доставка идёт в фоне до отмены ctx или Close.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	// Ping проверяет доступность брокера.
	Ping(ctx context.Context) error
	Close() error
}
