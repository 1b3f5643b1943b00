package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// Причины окончательного отказа платежа.
const (
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonCircuitOpen      = "circuit_open"
)

// ChargeError — окончательный отказ устойчивого клиента.
type ChargeError struct {
	Reason   string
	Attempts int
	Err      error
}

func (e *ChargeError) Error() string {
	return fmt.Sprintf("payment %s after %d attempt(s): %v", e.Reason, e.Attempts, e.Err)
}

func (e *ChargeError) Unwrap() error {
	return e.Err
}

// Recorder собирает метрики устойчивого клиента. nil допустим.
type Recorder interface {
	RecordChargeAttempt(outcome string)
	RecordPaymentDuration(d time.Duration)
}

// RetryConfig конфигурация повторов.
type RetryConfig struct {
	// MaxRetries — число повторов после первой попытки.
	MaxRetries int
	// Backoff — базовая задержка; перед повтором n ждём Backoff*n.
	Backoff time.Duration
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 3, Backoff: 200 * time.Millisecond}
}

// ClientOption настраивает Client.
type ClientOption func(*Client)

// WithClientLogger задаёт logger.
func WithClientLogger(logger *log.Entry) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRecorder задаёт получателя метрик.
func WithRecorder(recorder Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// WithSleep подменяет ожидание между попытками.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client — устойчивый платёжный клиент: каждый вызов шлюза идёт через breaker,
// временные ошибки повторяются с линейной задержкой.
type Client struct {
	gateway  Gateway
	breaker  Breaker
	cfg      RetryConfig
	logger   *log.Entry
	recorder Recorder
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewClient создаёт клиент поверх gateway и breaker.
func NewClient(gateway Gateway, breaker Breaker, cfg RetryConfig, options ...ClientOption) *Client {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	c := &Client{
		gateway: gateway,
		breaker: breaker,
		cfg:     cfg,
		sleep:   sleepContext,
	}
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = log.WithField("component", "payment-client")
	}
	return c
}

// Charge списывает amount за заказ orderID.
// Возвращает nil или *ChargeError, оборачивающий последнюю ошибку.
func (c *Client) Charge(ctx context.Context, orderID string, amount decimal.Decimal) error {
	started := time.Now()
	defer func() {
		if c.recorder != nil {
			c.recorder.RecordPaymentDuration(time.Since(started))
		}
	}()

	logger := c.logger.WithField("order_id", orderID)
	maxAttempts := c.cfg.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := c.breaker.Call(ctx, func(callCtx context.Context) error {
			return c.gateway.Charge(callCtx, orderID, amount)
		})
		if err == nil {
			c.record("success")
			if attempt > 1 {
				logger.WithField("attempt", attempt).Info("payment succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, domain.ErrCircuitOpen) {
			c.record("rejected")
			logger.WithField("attempt", attempt).Warn("payment rejected: circuit open")
			return &ChargeError{Reason: ReasonCircuitOpen, Attempts: attempt, Err: err}
		}
		c.record("failure")

		if !domain.IsRetryablePayment(err) {
			return &ChargeError{Reason: ReasonRetriesExhausted, Attempts: attempt, Err: err}
		}
		if c.breaker.State() == StateOpen {
			logger.WithError(err).WithField("attempt", attempt).Warn("payment failed: circuit opened")
			return &ChargeError{Reason: ReasonCircuitOpen, Attempts: attempt, Err: err}
		}
		if attempt == maxAttempts {
			break
		}

		delay := c.cfg.Backoff * time.Duration(attempt)
		logger.WithError(err).WithFields(log.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Warn("payment failed, retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return &ChargeError{Reason: ReasonRetriesExhausted, Attempts: attempt, Err: err}
		}
	}

	logger.WithError(lastErr).WithField("attempts", maxAttempts).Error("payment failed after all retries")
	return &ChargeError{Reason: ReasonRetriesExhausted, Attempts: maxAttempts, Err: lastErr}
}

func (c *Client) record(outcome string) {
	if c.recorder != nil {
		c.recorder.RecordChargeAttempt(outcome)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ domain.PaymentCharger = (*Client)(nil)
