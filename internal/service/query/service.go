// Package query содержит сервис чтения заказов с cache-aside поверх read-модели.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/cache"
	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// TTLSource отдаёт текущий TTL записей кэша.
type TTLSource interface {
	CacheTTL() time.Duration
}

// Recorder собирает метрики кэша. nil допустим.
type Recorder interface {
	RecordCacheLookup(result string)
}

// Service читает заказы: сначала кэш, затем orders_read с заполнением кэша.
// Запись в кэше не инвалидируется при оплате и может отставать не дольше TTL.
type Service struct {
	views    domain.OrderReadRepository
	cache    cache.Cache
	ttl      TTLSource
	recorder Recorder
	logger   *log.Entry
}

// NewService создаёт сервис чтения.
func NewService(views domain.OrderReadRepository, c cache.Cache, ttl TTLSource, recorder Recorder, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "order-query")
	}
	return &Service{views: views, cache: c, ttl: ttl, recorder: recorder, logger: logger}
}

// GetOrder возвращает заказ по id или domain.ErrOrderNotFound.
// Ошибки кэша не фатальны: чтение уходит в хранилище.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.OrderView, error) {
	key := cache.OrderKey(id)
	logger := s.logger.WithField("order_id", id)

	cached, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.record("error")
		logger.WithError(err).Warn("cache lookup failed, falling back to storage")
	case ok:
		var view domain.OrderView
		if err := json.Unmarshal([]byte(cached), &view); err == nil {
			s.record("hit")
			return view, nil
		}
		s.record("corrupt")
		logger.Warn("cached order is corrupt, reloading")
	default:
		s.record("miss")
	}

	view, err := s.views.Get(ctx, id)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("get order %s: %w", id, err)
	}

	payload, err := json.Marshal(view)
	if err != nil {
		return domain.OrderView{}, fmt.Errorf("marshal order %s: %w", id, err)
	}
	if err := s.cache.Set(ctx, key, string(payload), s.ttl.CacheTTL()); err != nil {
		logger.WithError(err).Warn("failed to populate cache")
	}
	return view, nil
}

func (s *Service) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(result)
	}
}
