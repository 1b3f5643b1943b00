package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/service/audit"
	"github.com/vladislavdragonenkov/orderflow/internal/service/dynconfig"
	httpsvc "github.com/vladislavdragonenkov/orderflow/internal/service/http"
	"github.com/vladislavdragonenkov/orderflow/internal/service/orders"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
	"github.com/vladislavdragonenkov/orderflow/internal/service/projector"
	"github.com/vladislavdragonenkov/orderflow/internal/service/query"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// application хранит собранный граф сервисов поверх runtimeDependencies.
type application struct {
	runtime   *dynconfig.Runtime
	channel   *messaging.Channel
	projector *projector.Projector
	audit     *audit.Consumer
	poller    *dynconfig.Poller
	health    *health.Handler
	handler   http.Handler
}

func newApplication(cfg Config, deps *runtimeDependencies, m *metrics.Metrics, logger *log.Entry) *application {
	runtime := dynconfig.NewRuntime(cfg.FailureRate, cfg.CacheTTL)

	gateway := payment.NewSimulator(runtime, payment.WithLatency(cfg.ChargeLatency))
	breaker := payment.NewCircuitBreaker(cfg.Breaker,
		payment.WithBreakerLogger(logger.WithField("layer", "breaker")),
		payment.WithStateChange(func(_, to payment.State) {
			m.RecordBreakerState(int(to), to.String())
		}),
	)
	charger := payment.NewClient(gateway, breaker, cfg.Retry,
		payment.WithClientLogger(logger.WithField("layer", "payment")),
		payment.WithRecorder(m),
	)

	channel := messaging.NewChannel(deps.broker,
		messaging.WithChannelLogger(logger.WithField("layer", "channel")),
		messaging.WithPublishRecorder(m),
	)

	orderService := orders.NewService(deps.orders, charger, channel,
		orders.WithRecorder(m),
		orders.WithLogger(logger.WithField("layer", "orders")),
	)
	reader := query.NewService(deps.views, deps.cache, runtime, m, logger.WithField("layer", "query"))

	healthHandler := health.NewHandler(version.GetVersion())
	for name, checker := range deps.checkers {
		healthHandler.RegisterChecker(name, checker)
	}

	handler := httpsvc.NewHandler(httpsvc.Deps{
		Orders:   orderService,
		Reader:   reader,
		Gateway:  gateway,
		Runtime:  runtime,
		Recorder: m,
		Logger:   logger.WithField("layer", "http"),
	})

	return &application{
		runtime:   runtime,
		channel:   channel,
		projector: projector.New(deps.views, m, logger.WithField("layer", "projector")),
		audit:     audit.NewConsumer(cfg.AuditDelay, m, logger.WithField("layer", "audit")),
		poller: dynconfig.NewPoller(cfg.ConfigURL, runtime,
			dynconfig.WithInterval(cfg.ConfigPollInterval),
			dynconfig.WithLogger(logger.WithField("layer", "config")),
		),
		health:  healthHandler,
		handler: handler.Routes(),
	}
}

// start подписывает фоновых потребителей и запускает опрос конфигурации.
func (a *application) start(ctx context.Context) error {
	if err := a.projector.Start(ctx, a.channel); err != nil {
		return err
	}
	if err := a.audit.Start(ctx, a.channel); err != nil {
		return err
	}
	go a.poller.Run(ctx)
	return nil
}

// Run поднимает зависимости, HTTP API и сервер метрик и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.closeFn()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a := newApplication(cfg, deps, metrics.New(), logger)
	if err := a.start(ctx); err != nil {
		return err
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, a.health)

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	apiSrv := &http.Server{Handler: a.handler, ReadHeaderTimeout: readHeaderTimeout}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *health.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", health.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
