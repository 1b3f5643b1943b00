package payment

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// State — состояние circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker защищает вызовы нестабильной зависимости.
type Breaker interface {
	// Call выполняет fn или сразу возвращает domain.ErrCircuitOpen.
	Call(ctx context.Context, fn func(ctx context.Context) error) error
	// State возвращает текущее состояние.
	State() State
}

// BreakerConfig конфигурация circuit breaker.
type BreakerConfig struct {
	// VolumeThreshold — минимум вызовов в окне, после которого breaker может разомкнуться.
	VolumeThreshold int
	// ErrorThresholdPercentage — доля отказов в окне (в процентах), размыкающая breaker.
	ErrorThresholdPercentage float64
	// ResetTimeout — сколько breaker остаётся открытым до пробного вызова.
	ResetTimeout time.Duration
	// CallTimeout — таймаут одного вызова; превышение считается отказом. 0 отключает.
	CallTimeout time.Duration
	// RollingWindow — окно, в котором копится статистика в состоянии Closed.
	RollingWindow time.Duration
}

// DefaultBreakerConfig возвращает конфигурацию по умолчанию.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		VolumeThreshold:          5,
		ErrorThresholdPercentage: 50,
		ResetTimeout:             10 * time.Second,
		CallTimeout:              5 * time.Second,
		RollingWindow:            10 * time.Second,
	}
}

// StateChangeFunc вызывается при входе в новое состояние.
type StateChangeFunc func(from, to State)

// BreakerOption настраивает CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.now = now
	}
}

// WithStateChange регистрирует обработчик смены состояния.
func WithStateChange(fn StateChangeFunc) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = append(cb.onStateChange, fn)
	}
}

// WithBreakerLogger задаёт logger.
func WithBreakerLogger(logger *log.Entry) BreakerOption {
	return func(cb *CircuitBreaker) {
		cb.logger = logger
	}
}

// CircuitBreaker — реализация Breaker с тремя состояниями.
// Один экземпляр разделяется всеми платежами процесса.
type CircuitBreaker struct {
	cfg           BreakerConfig
	logger        *log.Entry
	now           func() time.Time
	onStateChange []StateChangeFunc

	mu          sync.Mutex
	state       State
	openedAt    time.Time
	windowStart time.Time
	calls       int
	failures    int
	trialActive bool
}

// NewCircuitBreaker создаёт breaker в состоянии Closed.
func NewCircuitBreaker(cfg BreakerConfig, options ...BreakerOption) *CircuitBreaker {
	defaults := DefaultBreakerConfig()
	if cfg.VolumeThreshold <= 0 {
		cfg.VolumeThreshold = defaults.VolumeThreshold
	}
	if cfg.ErrorThresholdPercentage <= 0 {
		cfg.ErrorThresholdPercentage = defaults.ErrorThresholdPercentage
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = defaults.RollingWindow
	}

	cb := &CircuitBreaker{
		cfg:   cfg,
		now:   time.Now,
		state: StateClosed,
	}
	for _, option := range options {
		option(cb)
	}
	if cb.logger == nil {
		cb.logger = log.WithField("component", "circuit-breaker")
	}
	cb.windowStart = cb.now()
	return cb
}

// State возвращает текущее состояние с учётом истёкшего ResetTimeout.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Call выполняет fn через breaker.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	trial, err := cb.acquire()
	if err != nil {
		return err
	}

	err = cb.invoke(ctx, fn)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		// вызывающий ушёл сам: это не отказ провайдера
		cb.release(trial)
		return err
	}
	cb.record(trial, err)
	return err
}

// release освобождает пробный слот, не меняя статистику и состояние.
func (cb *CircuitBreaker) release(trial bool) {
	if !trial {
		return
	}
	cb.mu.Lock()
	cb.trialActive = false
	cb.mu.Unlock()
}

// acquire решает, можно ли выполнить вызов. trial=true означает пробный вызов в Half-Open.
func (cb *CircuitBreaker) acquire() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
			return false, domain.ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.trialActive = true
		return true, nil
	case StateHalfOpen:
		if cb.trialActive {
			return false, domain.ErrCircuitOpen
		}
		cb.trialActive = true
		return true, nil
	default:
		return false, nil
	}
}

// invoke вызывает fn с таймаутом. По таймауту вызов бросается, но может завершиться в фоне.
func (cb *CircuitBreaker) invoke(ctx context.Context, fn func(ctx context.Context) error) error {
	if cb.cfg.CallTimeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, cb.cfg.CallTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.ErrPaymentTimeout
	}
}

func (cb *CircuitBreaker) record(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trialActive = false
		if err != nil {
			cb.open()
			return
		}
		cb.resetWindow()
		cb.transition(StateClosed)
		return
	}

	if cb.state != StateClosed {
		// вызов стартовал до размыкания; статистика нового состояния не трогается
		return
	}

	now := cb.now()
	if now.Sub(cb.windowStart) >= cb.cfg.RollingWindow {
		cb.resetWindow()
	}
	cb.calls++
	if err == nil {
		return
	}
	cb.failures++

	if cb.calls < cb.cfg.VolumeThreshold {
		return
	}
	percentage := float64(cb.failures) * 100 / float64(cb.calls)
	if percentage >= cb.cfg.ErrorThresholdPercentage {
		cb.open()
	}
}

func (cb *CircuitBreaker) open() {
	cb.openedAt = cb.now()
	cb.resetWindow()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) resetWindow() {
	cb.windowStart = cb.now()
	cb.calls = 0
	cb.failures = 0
}

// transition меняет состояние и уведомляет подписчиков. Вызывается под mu.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to

	entry := cb.logger.WithFields(log.Fields{"from": from.String(), "to": to.String()})
	switch to {
	case StateOpen:
		entry.Warn("circuit breaker opened")
	case StateHalfOpen:
		entry.Warn("circuit breaker half-open")
	default:
		entry.Warn("circuit breaker closed")
	}

	for _, fn := range cb.onStateChange {
		fn(from, to)
	}
}

var _ Breaker = (*CircuitBreaker)(nil)
