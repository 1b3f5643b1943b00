// Package httpsvc собирает HTTP-поверхность сервиса: REST, SOAP и служебные эндпоинты.
package httpsvc

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
)

// OrderReader отдаёт заказы со стороны чтения.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (domain.OrderView, error)
}

// RuntimeConfig — переключаемая на лету конфигурация.
type RuntimeConfig interface {
	FailureRate() float64
	SetFailureRate(rate float64) error
}

// Recorder собирает метрики HTTP. nil допустим.
type Recorder interface {
	ObserveHTTPRequest(route string, code int, duration time.Duration)
}

// Deps — зависимости обработчиков.
type Deps struct {
	Orders   orders.Service
	Reader   OrderReader
	Gateway  payment.Gateway
	Runtime  RuntimeConfig
	Recorder Recorder
	Logger   *log.Entry
}

// Handler обслуживает HTTP API.
type Handler struct {
	orders   orders.Service
	reader   OrderReader
	gateway  payment.Gateway
	runtime  RuntimeConfig
	recorder Recorder
	logger   *log.Entry
	now      func() time.Time
}

// NewHandler создаёт обработчик.
func NewHandler(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	return &Handler{
		orders:   deps.Orders,
		reader:   deps.Reader,
		gateway:  deps.Gateway,
		runtime:  deps.Runtime,
		recorder: deps.Recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Routes собирает chi-роутер.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.observe)

	r.Group(func(r chi.Router) {
		r.Use(h.recoverJSON)
		r.Get("/health", h.health)
		r.Post("/toggle", h.toggle)
		r.Post("/charge", h.charge)
		r.Post("/orders", h.createOrder)
		r.Post("/orders/{id}/pay", h.payOrder)
		r.Get("/orders/{id}", h.getOrder)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.recoverSOAP)
		r.Post("/soap/order", h.soapGetOrder)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	})
	return r
}
