package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("boom")

func failing(context.Context) error { return errBoom }
func passing(context.Context) error { return nil }

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		VolumeThreshold:          5,
		ErrorThresholdPercentage: 50,
		ResetTimeout:             10 * time.Second,
		RollingWindow:            10 * time.Second,
	}
}

func TestCircuitBreakerOpensAfterVolumeThreshold(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, cb.Call(context.Background(), failing), errBoom)
		require.Equal(t, StateClosed, cb.State(), "call %d", i+1)
	}

	require.ErrorIs(t, cb.Call(context.Background(), failing), errBoom)
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.False(t, called, "open breaker must not invoke the dependency")
}

func TestCircuitBreakerStaysClosedBelowPercentage(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(newFakeClock().Now))

	for i := 0; i < 6; i++ {
		_ = cb.Call(context.Background(), passing)
	}
	for i := 0; i < 4; i++ {
		_ = cb.Call(context.Background(), failing)
	}

	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerRollingWindowResetsStats(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		_ = cb.Call(context.Background(), failing)
	}
	clock.Advance(11 * time.Second)
	_ = cb.Call(context.Background(), failing)

	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	cb := NewCircuitBreaker(testBreakerConfig(),
		WithClock(clock.Now),
		WithStateChange(func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		}),
	)

	for i := 0; i < 5; i++ {
		_ = cb.Call(context.Background(), failing)
	}
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(10 * time.Second)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Call(context.Background(), passing))
	require.Equal(t, StateClosed, cb.State())
	require.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		_ = cb.Call(context.Background(), failing)
	}
	clock.Advance(10 * time.Second)

	require.ErrorIs(t, cb.Call(context.Background(), failing), errBoom)
	require.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Call(context.Background(), passing), domain.ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenAllowsSingleTrial(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		_ = cb.Call(context.Background(), failing)
	}
	clock.Advance(10 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	require.ErrorIs(t, cb.Call(context.Background(), passing), domain.ErrCircuitOpen)
	close(release)
	require.NoError(t, <-done)
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(newFakeClock().Now))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 10; i++ {
		err := cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() })
		require.ErrorIs(t, err, context.Canceled)
	}
	require.Equal(t, StateClosed, cb.State())

	// статистика не тронута: размыкают только пять настоящих отказов
	for i := 0; i < 4; i++ {
		_ = cb.Call(context.Background(), failing)
	}
	require.Equal(t, StateClosed, cb.State())
	_ = cb.Call(context.Background(), failing)
	require.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerCancelledTrialFreesSlot(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(testBreakerConfig(), WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		_ = cb.Call(context.Background(), failing)
	}
	clock.Advance(10 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, cb.Call(ctx, func(ctx context.Context) error { return ctx.Err() }), context.Canceled)
	require.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Call(context.Background(), passing))
	require.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerCallTimeout(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.CallTimeout = 20 * time.Millisecond
	cb := NewCircuitBreaker(cfg)

	err := cb.Call(context.Background(), func(ctx context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	})
	require.ErrorIs(t, err, domain.ErrPaymentTimeout)
	require.True(t, domain.IsRetryablePayment(err))
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{})
	require.Equal(t, DefaultBreakerConfig().VolumeThreshold, cb.cfg.VolumeThreshold)
	require.Equal(t, DefaultBreakerConfig().ResetTimeout, cb.cfg.ResetTimeout)
	require.Equal(t, StateClosed, cb.State())
	require.Equal(t, "unknown", State(42).String())
}
