package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics содержит коллекторы сервиса заказов.
// Все методы безопасны для nil-получателя: компоненты могут работать без метрик.
type Metrics struct {
	ordersCreated   prometheus.Counter
	payments        *prometheus.CounterVec
	chargeAttempts  *prometheus.CounterVec
	breakerState    prometheus.Gauge
	breakerChanges  *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	projectorEvents *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	paymentDuration prometheus.Histogram
	auditEvents     prometheus.Counter
}

// New регистрирует метрики в prometheus.DefaultRegisterer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация переиспользует уже существующие коллекторы.
func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_orders_created_total",
			Help: "Total number of orders created",
		}),
		payments: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_payments_total",
			Help: "Total number of pay requests grouped by result",
		}, []string{"result"}),
		chargeAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_charge_attempts_total",
			Help: "Total number of charge attempts grouped by outcome",
		}, []string{"outcome"}),
		breakerState: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orderflow_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		breakerChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions grouped by entered state",
		}, []string{"state"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_events_published_total",
			Help: "Total number of published domain events grouped by topic and result",
		}, []string{"topic", "result"}),
		projectorEvents: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_projector_events_total",
			Help: "Total number of events handled by the projector grouped by type and result",
		}, []string{"type", "result"}),
		cacheLookups: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_cache_lookups_total",
			Help: "Total number of read-model cache lookups grouped by result",
		}, []string{"result"}),
		httpRequests: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderflow_http_requests_total",
			Help: "Total number of HTTP requests grouped by route and status code",
		}, []string{"route", "code"}),
		httpDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		paymentDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orderflow_payment_duration_seconds",
			Help:    "Duration of resilient charge calls including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		auditEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orderflow_audit_events_total",
			Help: "Total number of payment events received by the audit consumer",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		return reuse[prometheus.Counter](err, opts.Name)
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		return reuse[prometheus.Gauge](err, opts.Name)
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		return reuse[prometheus.Histogram](err, opts.Name)
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		return reuse[*prometheus.CounterVec](err, opts.Name)
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		return reuse[*prometheus.HistogramVec](err, opts.Name)
	}
	return collector
}

func reuse[T any](err error, name string) T {
	alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	existing, ok := alreadyRegistered.ExistingCollector.(T)
	if !ok {
		panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
	}
	return existing
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *Metrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

// RecordPayment учитывает итог запроса оплаты (paid, retries_exhausted, circuit_open, ...).
func (m *Metrics) RecordPayment(result string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result).Inc()
}

// RecordChargeAttempt учитывает отдельную попытку списания.
func (m *Metrics) RecordChargeAttempt(outcome string) {
	if m == nil {
		return
	}
	m.chargeAttempts.WithLabelValues(outcome).Inc()
}

// RecordPaymentDuration записывает полное время списания с учётом ретраев.
func (m *Metrics) RecordPaymentDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.paymentDuration.Observe(duration.Seconds())
}

// RecordBreakerState выставляет gauge состояния и считает переход.
func (m *Metrics) RecordBreakerState(code int, name string) {
	if m == nil {
		return
	}
	m.breakerState.Set(float64(code))
	m.breakerChanges.WithLabelValues(name).Inc()
}

// RecordPublish учитывает публикацию события в топик.
func (m *Metrics) RecordPublish(topic string, err error) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(topic, resultLabel(err)).Inc()
}

// RecordProjectorEvent учитывает обработку события проектором.
func (m *Metrics) RecordProjectorEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.projectorEvents.WithLabelValues(eventType, result).Inc()
}

// RecordCacheLookup учитывает обращение к кэшу (hit, miss, error).
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordAuditEvent увеличивает счётчик событий аудита.
func (m *Metrics) RecordAuditEvent() {
	if m == nil {
		return
	}
	m.auditEvents.Inc()
}

// ObserveHTTPRequest учитывает HTTP-запрос.
func (m *Metrics) ObserveHTTPRequest(route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, fmt.Sprintf("%d", code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
