// Package memory реализует брокер сообщений в памяти процесса с доставкой at-least-once.
package memory

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

const defaultBuffer = 1024

type message struct {
	key     string
	payload []byte
}

// Broker хранит по очереди на топик. Подписчики одного топика конкурируют за сообщения.
type Broker struct {
	policy messaging.Policy
	buffer int
	logger *log.Entry

	mu     sync.Mutex
	queues map[string]chan message
	done   chan struct{}
	closed bool
	wg     sync.WaitGroup
}

// Option настраивает Broker.
type Option func(*Broker)

// WithBuffer задаёт ёмкость очереди топика.
func WithBuffer(size int) Option {
	return func(b *Broker) {
		if size > 0 {
			b.buffer = size
		}
	}
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker создаёт брокер с политикой подтверждений policy.
func NewBroker(policy messaging.Policy, options ...Option) *Broker {
	b := &Broker{
		policy: policy,
		buffer: defaultBuffer,
		queues: make(map[string]chan message),
		done:   make(chan struct{}),
	}
	for _, option := range options {
		option(b)
	}
	if b.logger == nil {
		b.logger = log.WithField("component", "memory-broker")
	}
	return b
}

func (b *Broker) queue(topic string) (chan message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, messaging.ErrBrokerClosed
	}
	q, ok := b.queues[topic]
	if !ok {
		q = make(chan message, b.buffer)
		b.queues[topic] = q
	}
	return q, nil
}

// Publish кладёт сообщение в очередь топика. Блокируется, если очередь заполнена.
func (b *Broker) Publish(ctx context.Context, topic, key string, payload []byte) error {
	q, err := b.queue(topic)
	if err != nil {
		return err
	}
	msg := message{key: key, payload: append([]byte(nil), payload...)}
	select {
	case q <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-b.done:
		return messaging.ErrBrokerClosed
	}
}

// Subscribe запускает фоновую доставку сообщений топика в handler.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler messaging.Handler) error {
	q, err := b.queue(topic)
	if err != nil {
		return err
	}

	logger := b.logger.WithField("topic", topic)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		// Неподтверждённые сообщения повторяются, когда очередь топика пуста.
		var pending []message
		for {
			var msg message
			if len(pending) > 0 {
				select {
				case <-ctx.Done():
					return
				case <-b.done:
					return
				case msg = <-q:
				default:
					msg, pending = pending[0], pending[1:]
				}
			} else {
				select {
				case <-ctx.Done():
					return
				case <-b.done:
					return
				case msg = <-q:
				}
			}

			err := handler(ctx, msg.payload)
			if b.policy.Settle(err) {
				if err != nil {
					logger.WithError(err).WithField("key", msg.key).Warn("handler failed, message acknowledged")
				}
				continue
			}
			logger.WithError(err).WithField("key", msg.key).Warn("handler failed, message requeued")
			pending = append(pending, msg)
		}
	}()
	return nil
}

// Ping сообщает, открыт ли брокер.
func (b *Broker) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return messaging.ErrBrokerClosed
	}
	return nil
}

// Close останавливает доставку и ждёт завершения подписчиков. Недоставленные сообщения теряются.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}

var _ messaging.Broker = (*Broker)(nil)
