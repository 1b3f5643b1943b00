package dynconfig

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func TestNewRuntime_Defaults(t *testing.T) {
	r := NewRuntime(-5, 0)
	if r.FailureRate() != DefaultFailureRate {
		t.Fatalf("expected default failure rate, got %f", r.FailureRate())
	}
	if r.CacheTTL() != DefaultCacheTTL {
		t.Fatalf("expected default ttl, got %s", r.CacheTTL())
	}
}

func TestRuntime_SetFailureRate(t *testing.T) {
	r := NewRuntime(0.3, time.Second)

	for _, rate := range []float64{0, 0.5, 1} {
		if err := r.SetFailureRate(rate); err != nil {
			t.Fatalf("rate %f rejected: %v", rate, err)
		}
		if r.FailureRate() != rate {
			t.Fatalf("expected %f, got %f", rate, r.FailureRate())
		}
	}

	for _, rate := range []float64{-0.1, 1.01, math.NaN()} {
		if err := r.SetFailureRate(rate); !errors.Is(err, domain.ErrFailureRateOutOfRange) {
			t.Fatalf("expected out of range error for %f, got %v", rate, err)
		}
	}
	if r.FailureRate() != 1 {
		t.Fatalf("invalid values must not change the rate, got %f", r.FailureRate())
	}
}

func TestRuntime_SetCacheTTLIgnoresNonPositive(t *testing.T) {
	r := NewRuntime(0.3, 5*time.Second)
	r.SetCacheTTL(0)
	r.SetCacheTTL(-time.Second)
	if r.CacheTTL() != 5*time.Second {
		t.Fatalf("unexpected ttl: %s", r.CacheTTL())
	}
}

func TestRuntime_ConcurrentAccess(t *testing.T) {
	r := NewRuntime(0.3, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.SetFailureRate(float64(i%10) / 10)
			r.SetCacheTTL(time.Duration(i+1) * time.Millisecond)
		}(i)
		go func() {
			defer wg.Done()
			_ = r.FailureRate()
			_ = r.CacheTTL()
		}()
	}
	wg.Wait()
}
