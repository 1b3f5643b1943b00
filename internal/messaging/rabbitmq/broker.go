// Package rabbitmq реализует драйвер брокера поверх AMQP 0-9-1.
// Топик соответствует одноимённой недолговечной очереди в default exchange.
package rabbitmq

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

// amqpChannel — используемое подмножество *amqp.Channel.
type amqpChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// connection — используемое подмножество *amqp.Connection.
type connection interface {
	Channel() (amqpChannel, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	conn *amqp.Connection
}

func (c amqpConnection) Channel() (amqpChannel, error) {
	return c.conn.Channel()
}

func (c amqpConnection) IsClosed() bool { return c.conn.IsClosed() }
func (c amqpConnection) Close() error   { return c.conn.Close() }

const defaultDialBackoff = time.Second

// Config параметры подключения.
type Config struct {
	URL          string
	DialAttempts int
	DialBackoff  time.Duration
}

// Broker публикует и потребляет сообщения RabbitMQ.
type Broker struct {
	conn   connection
	policy messaging.Policy
	logger *log.Entry

	mu       sync.Mutex
	pub      amqpChannel
	declared map[string]bool
	channels []amqpChannel
	wg       sync.WaitGroup
}

// Dial подключается к RabbitMQ, повторяя попытки: брокер в docker поднимается не сразу.
func Dial(ctx context.Context, cfg Config, policy messaging.Policy, logger *log.Entry) (*Broker, error) {
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-broker")
	}

	var conn *amqp.Connection
	attempt := 0
	err := retry.Do(ctx, dialBackoff(cfg), func(context.Context) error {
		attempt++
		c, err := amqp.Dial(cfg.URL)
		if err != nil {
			logger.WithError(err).WithField("attempt", attempt).Warn("failed to connect to rabbitmq")
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	broker, err := newBroker(amqpConnection{conn: conn}, policy, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return broker, nil
}

// dialBackoff: постоянная пауза, всего DialAttempts попыток.
func dialBackoff(cfg Config) retry.Backoff {
	attempts := cfg.DialAttempts
	if attempts <= 0 {
		attempts = 1
	}
	backoff := cfg.DialBackoff
	if backoff <= 0 {
		backoff = defaultDialBackoff
	}
	return retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(backoff))
}

func newBroker(conn connection, policy messaging.Policy, logger *log.Entry) (*Broker, error) {
	pub, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	return &Broker{
		conn:     conn,
		policy:   policy,
		logger:   logger,
		pub:      pub,
		declared: make(map[string]bool),
	}, nil
}

func declare(ch amqpChannel, topic string) error {
	if _, err := ch.QueueDeclare(topic, false, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return nil
}

// Publish отправляет сообщение в очередь topic.
func (b *Broker) Publish(ctx context.Context, topic, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.declared[topic] {
		if err := declare(b.pub, topic); err != nil {
			return err
		}
		b.declared[topic] = true
	}

	err := b.pub.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
		MessageId:   key,
		ContentType: "application/json",
		Timestamp:   time.Now(),
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe открывает отдельный канал и потребляет очередь topic с ручным подтверждением.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler messaging.Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open consume channel: %w", err)
	}
	if err := declare(ch, topic); err != nil {
		_ = ch.Close()
		return err
	}
	deliveries, err := ch.Consume(topic, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume %s: %w", topic, err)
	}

	b.mu.Lock()
	b.channels = append(b.channels, ch)
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(ctx, topic, deliveries, handler)
	}()

	b.logger.WithField("topic", topic).Info("rabbitmq consumer started")
	return nil
}

func (b *Broker) consume(ctx context.Context, topic string, deliveries <-chan amqp.Delivery, handler messaging.Handler) {
	logger := b.logger.WithField("topic", topic)
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.settle(logger, d, handler(ctx, d.Body))
		}
	}
}

func (b *Broker) settle(logger *log.Entry, d amqp.Delivery, err error) {
	entry := logger.WithField("message_id", d.MessageId)
	if b.policy.Settle(err) {
		if err != nil {
			entry.WithError(err).Warn("handler failed, message acknowledged")
		}
		if ackErr := d.Ack(false); ackErr != nil {
			entry.WithError(ackErr).Error("failed to ack message")
		}
		return
	}

	entry.WithError(err).Warn("handler failed, message requeued")
	if nackErr := d.Nack(false, true); nackErr != nil {
		entry.WithError(nackErr).Error("failed to nack message")
	}
}

// Ping проверяет, что соединение открыто.
func (b *Broker) Ping(context.Context) error {
	if b.conn.IsClosed() {
		return messaging.ErrBrokerClosed
	}
	return nil
}

// Close закрывает каналы и соединение.
func (b *Broker) Close() error {
	b.mu.Lock()
	channels := append([]amqpChannel{b.pub}, b.channels...)
	b.channels = nil
	b.mu.Unlock()

	for _, ch := range channels {
		if err := ch.Close(); err != nil {
			b.logger.WithError(err).Debug("failed to close channel")
		}
	}
	b.wg.Wait()

	if b.conn.IsClosed() {
		return nil
	}
	if err := b.conn.Close(); err != nil {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}
	return nil
}

var _ messaging.Broker = (*Broker)(nil)
