package payment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Gateway — «сырой» вызов платёжного провайдера без защиты. Внешняя зависимость,
// подменяемая в тестах и при интеграции с реальным провайдером.
type Gateway interface {
	Charge(ctx context.Context, orderID string, amount decimal.Decimal) error
}

// GatewayFunc адаптирует функцию к Gateway.
type GatewayFunc func(ctx context.Context, orderID string, amount decimal.Decimal) error

// Charge вызывает f.
func (f GatewayFunc) Charge(ctx context.Context, orderID string, amount decimal.Decimal) error {
	return f(ctx, orderID, amount)
}

// FailureRateSource отдаёт текущую вероятность отказа.
type FailureRateSource interface {
	FailureRate() float64
}

// Simulator имитирует ненадёжного провайдера: отказывает с вероятностью FailureRate.
type Simulator struct {
	rates   FailureRateSource
	latency time.Duration

	mu   sync.Mutex
	rand func() float64
}

// SimulatorOption настраивает Simulator.
type SimulatorOption func(*Simulator)

// WithLatency добавляет искусственную задержку перед ответом.
func WithLatency(latency time.Duration) SimulatorOption {
	return func(s *Simulator) {
		s.latency = latency
	}
}

// WithRandom подменяет источник случайных чисел в [0,1).
func WithRandom(fn func() float64) SimulatorOption {
	return func(s *Simulator) {
		s.rand = fn
	}
}

// NewSimulator создаёт симулятор, читающий failure rate из rates.
func NewSimulator(rates FailureRateSource, options ...SimulatorOption) *Simulator {
	s := &Simulator{rates: rates, rand: rand.Float64}
	for _, option := range options {
		option(s)
	}
	return s
}

// Charge возвращает domain.ErrPaymentFailed с вероятностью FailureRate.
func (s *Simulator) Charge(ctx context.Context, _ string, _ decimal.Decimal) error {
	if s.latency > 0 {
		timer := time.NewTimer(s.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	roll := s.rand()
	s.mu.Unlock()

	if roll < s.rates.FailureRate() {
		return domain.ErrPaymentFailed
	}
	return nil
}

var _ Gateway = (*Simulator)(nil)
