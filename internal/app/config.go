package app

import (
	"time"

	"github.com/vladislavdragonenkov/orderflow/internal/service/audit"
	"github.com/vladislavdragonenkov/orderflow/internal/service/dynconfig"
	"github.com/vladislavdragonenkov/orderflow/internal/service/payment"
)

const (
	// StorageDriverMemory хранит write- и read-модели в памяти процесса.
	StorageDriverMemory = "memory"
	// StorageDriverPostgres хранит модели в PostgreSQL.
	StorageDriverPostgres = "postgres"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"

	BrokerDriverMemory   = "memory"
	BrokerDriverRabbitMQ = "rabbitmq"
	BrokerDriverKafka    = "kafka"
)

// Config описывает настройки запуска приложения.
type Config struct {
	HTTPAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	CacheDriver string
	RedisURL    string

	BrokerDriver string
	QueueURL     string
	KafkaBrokers []string
	KafkaGroupID string
	AckOnFailure bool

	FailureRate   float64
	ChargeLatency time.Duration
	Breaker       payment.BreakerConfig
	Retry         payment.RetryConfig

	CacheTTL           time.Duration
	ConfigURL          string
	ConfigPollInterval time.Duration
	AuditDelay         time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":3000",
		MetricsAddr:         ":9090",
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		CacheDriver:         CacheDriverMemory,
		BrokerDriver:        BrokerDriverMemory,
		KafkaGroupID:        "orderflow",
		AckOnFailure:        true,
		FailureRate:         dynconfig.DefaultFailureRate,
		Breaker:             payment.DefaultBreakerConfig(),
		Retry:               payment.DefaultRetryConfig(),
		CacheTTL:            dynconfig.DefaultCacheTTL,
		ConfigPollInterval:  30 * time.Second,
		AuditDelay:          audit.DefaultDelay,
	}
}
