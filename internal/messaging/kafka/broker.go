// Package kafka реализует драйвер брокера поверх Kafka (IBM/sarama).
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

// Config параметры подключения.
type Config struct {
	Brokers []string
	// GroupPrefix — префикс consumer group; итоговая группа <prefix>.<topic>.
	GroupPrefix string
}

type groupFactory func(groupID string) (sarama.ConsumerGroup, error)

// Broker реализует messaging.Broker: публикация через Producer, подписка через consumer groups.
type Broker struct {
	producer *Producer
	client   sarama.Client
	newGroup groupFactory
	prefix   string
	policy   messaging.Policy
	logger   *log.Entry

	mu        sync.Mutex
	consumers []*Consumer
}

// NewBroker подключается к кластеру.
func NewBroker(cfg Config, policy messaging.Policy) (*Broker, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	producer, err := NewProducer(cfg.Brokers)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(cfg.Brokers, sarama.NewConfig())
	if err != nil {
		_ = producer.Close()
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	brokers := cfg.Brokers
	return &Broker{
		producer: producer,
		client:   client,
		newGroup: func(groupID string) (sarama.ConsumerGroup, error) {
			return sarama.NewConsumerGroup(brokers, groupID, newConsumerConfig())
		},
		prefix: groupPrefix(cfg.GroupPrefix),
		policy: policy,
		logger: log.WithField("component", "kafka-broker"),
	}, nil
}

func groupPrefix(prefix string) string {
	if prefix == "" {
		return "orderflow"
	}
	return prefix
}

// Publish отправляет сообщение в topic.
func (b *Broker) Publish(_ context.Context, topic, key string, payload []byte) error {
	return b.producer.Send(topic, key, payload)
}

// Subscribe создаёт отдельную consumer group для topic и запускает её.
func (b *Broker) Subscribe(ctx context.Context, topic string, handler messaging.Handler) error {
	group, err := b.newGroup(b.prefix + "." + topic)
	if err != nil {
		return fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	consumer := newConsumer(group, []string{topic}, handler, b.policy)
	if err := consumer.Start(ctx); err != nil {
		_ = group.Close()
		return err
	}

	b.mu.Lock()
	b.consumers = append(b.consumers, consumer)
	b.mu.Unlock()
	return nil
}

// Ping проверяет, что клиенту известен хотя бы один брокер.
func (b *Broker) Ping(context.Context) error {
	if b.client == nil {
		return nil
	}
	if b.client.Closed() {
		return messaging.ErrBrokerClosed
	}
	if len(b.client.Brokers()) == 0 {
		return errors.New("no kafka brokers available")
	}
	return nil
}

// Close останавливает consumers, producer и клиент.
func (b *Broker) Close() error {
	b.mu.Lock()
	consumers := b.consumers
	b.consumers = nil
	b.mu.Unlock()

	var errs []error
	for _, consumer := range consumers {
		if err := consumer.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.producer.Close(); err != nil {
		errs = append(errs, err)
	}
	if b.client != nil && !b.client.Closed() {
		if err := b.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close kafka client: %w", err))
		}
	}
	return errors.Join(errs...)
}

var _ messaging.Broker = (*Broker)(nil)
