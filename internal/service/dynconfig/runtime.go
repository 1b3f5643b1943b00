package dynconfig

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

const (
	// DefaultFailureRate — вероятность отказа симулированного платёжного провайдера.
	DefaultFailureRate = 0.3
	// DefaultCacheTTL — время жизни записи кэша read-модели.
	DefaultCacheTTL = 10 * time.Second
)

// Provider отдаёт текущие значения конфигурации, меняющейся во время работы процесса.
type Provider interface {
	FailureRate() float64
	CacheTTL() time.Duration
}

// Runtime хранит изменяемую конфигурацию процесса. Безопасен для конкурентного использования.
type Runtime struct {
	failureRate atomic.Uint64
	cacheTTL    atomic.Int64
}

// NewRuntime создаёт Runtime с начальными значениями. Невалидные значения заменяются дефолтами.
func NewRuntime(failureRate float64, cacheTTL time.Duration) *Runtime {
	r := &Runtime{}
	if err := r.SetFailureRate(failureRate); err != nil {
		_ = r.SetFailureRate(DefaultFailureRate)
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	r.SetCacheTTL(cacheTTL)
	return r
}

// FailureRate возвращает текущую вероятность отказа.
func (r *Runtime) FailureRate() float64 {
	return math.Float64frombits(r.failureRate.Load())
}

// SetFailureRate меняет вероятность отказа; значения вне [0,1] отклоняются.
func (r *Runtime) SetFailureRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return domain.ErrFailureRateOutOfRange
	}
	r.failureRate.Store(math.Float64bits(rate))
	return nil
}

// CacheTTL возвращает текущий TTL кэша.
func (r *Runtime) CacheTTL() time.Duration {
	return time.Duration(r.cacheTTL.Load())
}

// SetCacheTTL меняет TTL кэша. Неположительные значения игнорируются.
func (r *Runtime) SetCacheTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	r.cacheTTL.Store(int64(ttl))
}

var _ Provider = (*Runtime)(nil)
