package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Envelope — JSON-представление доменного события на проводе.
type Envelope struct {
	Type       domain.EventType `json:"type"`
	ID         string           `json:"id"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// Encode сериализует событие.
func Encode(event domain.Event, now time.Time) ([]byte, error) {
	env := Envelope{
		Type:       event.Type(),
		ID:         event.AggregateID(),
		OccurredAt: now.UTC(),
	}

	switch e := event.(type) {
	case domain.OrderCreated:
	case domain.PaymentCompleted:
		amount := e.Amount
		env.Amount = &amount
	case domain.PaymentRequested:
		amount := e.Amount
		env.Amount = &amount
	default:
		return nil, fmt.Errorf("encode %s: %w", event.Type(), domain.ErrUnknownEvent)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// Decode восстанавливает событие. Неизвестный тип даёт domain.ErrUnknownEvent.
func Decode(payload []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("unmarshal event: %w", err)
	}
	if env.ID == "" {
		return nil, fmt.Errorf("event without id: %w", domain.ErrMalformedRequest)
	}

	amount := decimal.Zero
	if env.Amount != nil {
		amount = *env.Amount
	}

	switch env.Type {
	case domain.EventTypeOrderCreated:
		return domain.OrderCreated{ID: env.ID}, nil
	case domain.EventTypePaymentCompleted:
		return domain.PaymentCompleted{ID: env.ID, Amount: amount}, nil
	case domain.EventTypePaymentRequested:
		return domain.PaymentRequested{ID: env.ID, Amount: amount}, nil
	default:
		return nil, fmt.Errorf("decode %q: %w", env.Type, domain.ErrUnknownEvent)
	}
}
