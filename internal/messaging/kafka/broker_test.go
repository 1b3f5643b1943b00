package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
)

func newTestBroker(t *testing.T, factory groupFactory) (*Broker, *mocks.SyncProducer) {
	t.Helper()
	mockProducer := mocks.NewSyncProducer(t, nil)
	return &Broker{
		producer: &Producer{producer: mockProducer, logger: log.WithField("test", t.Name())},
		newGroup: factory,
		prefix:   groupPrefix(""),
		policy:   messaging.DefaultPolicy(),
		logger:   log.WithField("test", t.Name()),
	}, mockProducer
}

func TestBrokerPublish(t *testing.T) {
	b, mockProducer := newTestBroker(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	if err := b.Publish(context.Background(), "projector", "o-1", []byte("{}")); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBrokerSubscribeUsesGroupPerTopic(t *testing.T) {
	var groups []string
	errorsCh := make(chan error)
	b, _ := newTestBroker(t, func(groupID string) (sarama.ConsumerGroup, error) {
		groups = append(groups, groupID)
		return &mockConsumerGroup{errorsCh: errorsCh}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := b.Subscribe(ctx, "payments", func(context.Context, []byte) error { return nil }); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if len(groups) != 1 || groups[0] != "orderflow.payments" {
		t.Fatalf("unexpected groups: %v", groups)
	}

	cancel()
	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestBrokerSubscribeError(t *testing.T) {
	b, _ := newTestBroker(t, func(string) (sarama.ConsumerGroup, error) {
		return nil, errors.New("no brokers")
	})
	if err := b.Subscribe(context.Background(), "projector", nil); err == nil {
		t.Fatal("expected subscribe error")
	}
	if err := b.Ping(context.Background()); err != nil {
		t.Fatalf("ping without client should pass: %v", err)
	}
}

func TestNewBrokerRequiresBrokers(t *testing.T) {
	if _, err := NewBroker(Config{}, messaging.DefaultPolicy()); err == nil {
		t.Fatal("expected error for empty broker list")
	}
}
