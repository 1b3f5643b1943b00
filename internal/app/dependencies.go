package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/cache"
	"github.com/vladislavdragonenkov/orderflow/internal/domain"
	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/kafka"
	memorybroker "github.com/vladislavdragonenkov/orderflow/internal/messaging/memory"
	"github.com/vladislavdragonenkov/orderflow/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/memory"
	"github.com/vladislavdragonenkov/orderflow/internal/storage/postgres"
)

const (
	rabbitDialAttempts = 10
	rabbitDialBackoff  = 2 * time.Second
)

// runtimeDependencies держит инфраструктуру, выбранную драйверами конфигурации.
type runtimeDependencies struct {
	orders   domain.OrderWriteRepository
	views    domain.OrderReadRepository
	cache    cache.Cache
	broker   messaging.Broker
	checkers map[string]health.Checker
	closeFn  func()
}

// initRuntimeDependencies поднимает хранилище, кэш и брокер. При ошибке уже открытые ресурсы закрываются.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &runtimeDependencies{checkers: make(map[string]health.Checker)}
	var closers []func() error
	deps.closeFn = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.WithError(err).Warn("failed to close dependency")
			}
		}
	}

	closeStorage, err := initStorage(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}
	closers = append(closers, closeStorage)

	if err := initCache(cfg, deps, logger); err != nil {
		deps.closeFn()
		return nil, err
	}
	closers = append(closers, deps.cache.Close)

	if err := initBroker(ctx, cfg, deps, logger); err != nil {
		deps.closeFn()
		return nil, err
	}
	closers = append(closers, deps.broker.Close)

	return deps, nil
}

func initStorage(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) (func() error, error) {
	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		deps.orders = memory.NewOrderRepository()
		deps.views = memory.NewReadRepository()
		deps.checkers["storage"] = health.NewSimpleChecker("storage", func(context.Context) error { return nil })
		logger.Info("using in-memory storage")
		return func() error { return nil }, nil
	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires DATABASE_URL")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		deps.orders = postgres.NewOrderRepository(store)
		deps.views = postgres.NewReadRepository(store)
		deps.checkers["storage"] = health.NewSimpleChecker("storage", store.Ping)
		logger.WithField("auto_migrate", cfg.PostgresAutoMigrate).Info("using postgres storage")
		return store.Close, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func initCache(cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	switch cfg.CacheDriver {
	case "", CacheDriverMemory:
		deps.cache = cache.NewMemory()
		logger.Info("using in-memory cache")
	case CacheDriverRedis:
		if cfg.RedisURL == "" {
			return errors.New("redis cache requires REDIS_URL")
		}
		c, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			return err
		}
		deps.cache = c
		logger.Info("using redis cache")
	default:
		return fmt.Errorf("unsupported cache driver %q", cfg.CacheDriver)
	}
	// Без кэша чтение идёт в read-модель напрямую.
	deps.checkers["cache"] = health.NewOptionalChecker("cache", deps.cache.Ping)
	return nil
}

func initBroker(ctx context.Context, cfg Config, deps *runtimeDependencies, logger *log.Entry) error {
	policy := messaging.Policy{AckOnFailure: cfg.AckOnFailure}

	switch cfg.BrokerDriver {
	case "", BrokerDriverMemory:
		deps.broker = memorybroker.NewBroker(policy, memorybroker.WithLogger(logger.WithField("broker", "memory")))
	case BrokerDriverRabbitMQ:
		if cfg.QueueURL == "" {
			return errors.New("rabbitmq broker requires QUEUE_URL")
		}
		b, err := rabbitmq.Dial(ctx, rabbitmq.Config{
			URL:          cfg.QueueURL,
			DialAttempts: rabbitDialAttempts,
			DialBackoff:  rabbitDialBackoff,
		}, policy, logger.WithField("broker", "rabbitmq"))
		if err != nil {
			return err
		}
		deps.broker = b
	case BrokerDriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return errors.New("kafka broker requires KAFKA_BROKERS")
		}
		b, err := kafka.NewBroker(kafka.Config{Brokers: cfg.KafkaBrokers, GroupPrefix: cfg.KafkaGroupID}, policy)
		if err != nil {
			return err
		}
		deps.broker = b
	default:
		return fmt.Errorf("unsupported broker driver %q", cfg.BrokerDriver)
	}

	logger.WithFields(log.Fields{
		"broker":         driverName(cfg.BrokerDriver, BrokerDriverMemory),
		"ack_on_failure": cfg.AckOnFailure,
	}).Info("message broker initialized")
	deps.checkers["broker"] = health.NewSimpleChecker("broker", deps.broker.Ping)
	return nil
}

func driverName(driver, fallback string) string {
	if driver == "" {
		return fallback
	}
	return driver
}
