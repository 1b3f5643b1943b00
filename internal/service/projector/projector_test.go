package projector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/memory"
	storage "github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
)

type resultRecorder struct {
	results []string
}

func (r *resultRecorder) RecordProjectorEvent(eventType, result string) {
	r.results = append(r.results, eventType+":"+result)
}

type brokenViews struct {
	domain.OrderReadRepository
}

func (brokenViews) InsertIfAbsent(context.Context, domain.OrderView) (bool, error) {
	return false, errors.New("db down")
}

func TestApplyOrdering(t *testing.T) {
	tests := []struct {
		name       string
		events     []domain.Event
		wantStatus domain.OrderStatus
		wantAmount decimal.Decimal
	}{
		{
			name:       "created only",
			events:     []domain.Event{domain.OrderCreated{ID: "o-1"}},
			wantStatus: domain.OrderStatusCreated,
			wantAmount: decimal.Zero,
		},
		{
			name: "created then paid",
			events: []domain.Event{
				domain.OrderCreated{ID: "o-1"},
				domain.PaymentCompleted{ID: "o-1", Amount: decimal.NewFromInt(10)},
			},
			wantStatus: domain.OrderStatusPaid,
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name: "paid before created",
			events: []domain.Event{
				domain.PaymentCompleted{ID: "o-1", Amount: decimal.NewFromInt(10)},
				domain.OrderCreated{ID: "o-1"},
			},
			wantStatus: domain.OrderStatusPaid,
			wantAmount: decimal.NewFromInt(10),
		},
		{
			name: "duplicate deliveries",
			events: []domain.Event{
				domain.OrderCreated{ID: "o-1"},
				domain.PaymentCompleted{ID: "o-1", Amount: decimal.NewFromInt(7)},
				domain.PaymentCompleted{ID: "o-1", Amount: decimal.NewFromInt(7)},
				domain.OrderCreated{ID: "o-1"},
			},
			wantStatus: domain.OrderStatusPaid,
			wantAmount: decimal.NewFromInt(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := storage.NewReadRepository()
			p := New(views, nil, nil)
			ctx := context.Background()

			for _, e := range tt.events {
				require.NoError(t, p.Apply(ctx, e))
			}

			view, err := views.Get(ctx, "o-1")
			require.NoError(t, err)
			require.Equal(t, tt.wantStatus, view.Status)
			require.True(t, tt.wantAmount.Equal(view.Amount), "amount %s", view.Amount)
		})
	}
}

func TestHandleIgnoresUnknownEvents(t *testing.T) {
	recorder := &resultRecorder{}
	views := storage.NewReadRepository()
	p := New(views, recorder, nil)

	require.NoError(t, p.Handle(context.Background(), domain.PaymentRequested{ID: "o-1"}))
	_, err := views.Get(context.Background(), "o-1")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.Equal(t, []string{"PaymentRequested:ignored"}, recorder.results)
}

func TestHandleReportsStorageFailure(t *testing.T) {
	recorder := &resultRecorder{}
	p := New(brokenViews{}, recorder, nil)

	err := p.Handle(context.Background(), domain.OrderCreated{ID: "o-1"})
	require.Error(t, err)
	require.Equal(t, []string{"OrderCreated:failed"}, recorder.results)
}

func TestStartConsumesProjectorTopic(t *testing.T) {
	broker := memory.NewBroker(messaging.DefaultPolicy())
	defer broker.Close()
	channel := messaging.NewChannel(broker)

	views := storage.NewReadRepository()
	p := New(views, nil, nil)
	ctx := context.Background()
	require.NoError(t, p.Start(ctx, channel))

	require.NoError(t, channel.Publish(ctx, messaging.TopicProjector, domain.OrderCreated{ID: "o-1"}))
	require.NoError(t, channel.Publish(ctx, messaging.TopicProjector, domain.PaymentCompleted{ID: "o-1", Amount: decimal.NewFromInt(10)}))

	require.Eventually(t, func() bool {
		view, err := views.Get(ctx, "o-1")
		return err == nil && view.Status == domain.OrderStatusPaid
	}, time.Second, 5*time.Millisecond)
}
