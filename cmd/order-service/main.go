package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/app"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

const (
	envHTTPAddr            = "HTTP_ADDR"
	envMetricsAddr         = "METRICS_ADDR"
	envStorageDriver       = "STORAGE_DRIVER"
	envPostgresDSN         = "DATABASE_URL"
	envPostgresAutoMigrate = "POSTGRES_AUTO_MIGRATE"
	envCacheDriver         = "CACHE_DRIVER"
	envRedisURL            = "REDIS_URL"
	envBrokerDriver        = "BROKER_DRIVER"
	envQueueURL            = "QUEUE_URL"
	envKafkaBrokers        = "KAFKA_BROKERS"
	envKafkaGroupID        = "KAFKA_GROUP_ID"
	envAckOnFailure        = "BROKER_ACK_ON_FAILURE"
	envFailureRate         = "FAILURE_RATE"
	envCBErrorThreshold    = "CB_ERROR_THRESHOLD"
	envCBErrorPercentage   = "CB_ERROR_PERCENTAGE"
	envCBTimeoutMS         = "CB_TIMEOUT_MS"
	envCBCallTimeoutMS     = "CB_CALL_TIMEOUT_MS"
	envPaymentMaxRetries   = "PAYMENT_MAX_RETRIES"
	envPaymentBackoff      = "PAYMENT_RETRY_BACKOFF"
	envChargeLatency       = "CHARGE_LATENCY"
	envCacheTTLSec         = "CACHE_TTL_SEC"
	envConfigURL           = "CONFIG_URL"
	envConfigPollInterval  = "CONFIG_POLL_INTERVAL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Невалидные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("ignoring %s=%q: %v", key, value, err))
	}

	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	if v, ok := get(envHTTPAddr); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := get(envMetricsAddr); ok {
		cfg.MetricsAddr = v
	}

	// Storage
	if v, ok := get(envPostgresDSN); ok {
		cfg.PostgresDSN = v
		cfg.StorageDriver = app.StorageDriverPostgres
	}
	if v, ok := get(envStorageDriver); ok {
		if driver, err := parseDriver(v, app.StorageDriverMemory, app.StorageDriverPostgres); err != nil {
			warn(envStorageDriver, v, err)
		} else {
			cfg.StorageDriver = driver
		}
	}
	if v, ok := get(envPostgresAutoMigrate); ok {
		if b, err := parseBool(v); err != nil {
			warn(envPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}

	// Cache
	if v, ok := get(envRedisURL); ok {
		cfg.RedisURL = v
		cfg.CacheDriver = app.CacheDriverRedis
	}
	if v, ok := get(envCacheDriver); ok {
		if driver, err := parseDriver(v, app.CacheDriverMemory, app.CacheDriverRedis); err != nil {
			warn(envCacheDriver, v, err)
		} else {
			cfg.CacheDriver = driver
		}
	}

	// Broker
	if v, ok := get(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
		cfg.BrokerDriver = app.BrokerDriverKafka
	}
	if v, ok := get(envQueueURL); ok {
		cfg.QueueURL = v
		cfg.BrokerDriver = app.BrokerDriverRabbitMQ
	}
	if v, ok := get(envBrokerDriver); ok {
		if driver, err := parseDriver(v, app.BrokerDriverMemory, app.BrokerDriverRabbitMQ, app.BrokerDriverKafka); err != nil {
			warn(envBrokerDriver, v, err)
		} else {
			cfg.BrokerDriver = driver
		}
	}
	if v, ok := get(envKafkaGroupID); ok {
		cfg.KafkaGroupID = v
	}
	if v, ok := get(envAckOnFailure); ok {
		if b, err := parseBool(v); err != nil {
			warn(envAckOnFailure, v, err)
		} else {
			cfg.AckOnFailure = b
		}
	}

	// Payments
	if v, ok := get(envFailureRate); ok {
		if f, err := parseFloat(v, func(f float64) bool { return f >= 0 && f <= 1 }, "must be within [0,1]"); err != nil {
			warn(envFailureRate, v, err)
		} else {
			cfg.FailureRate = f
		}
	}
	positive := func(n int) bool { return n > 0 }
	if v, ok := get(envCBErrorThreshold); ok {
		if n, err := parseInt(v, positive, "must be > 0"); err != nil {
			warn(envCBErrorThreshold, v, err)
		} else {
			cfg.Breaker.VolumeThreshold = n
		}
	}
	if v, ok := get(envCBErrorPercentage); ok {
		if f, err := parseFloat(v, func(f float64) bool { return f > 0 && f <= 100 }, "must be within (0,100]"); err != nil {
			warn(envCBErrorPercentage, v, err)
		} else {
			cfg.Breaker.ErrorThresholdPercentage = f
		}
	}
	if v, ok := get(envCBTimeoutMS); ok {
		if n, err := parseInt(v, positive, "must be > 0"); err != nil {
			warn(envCBTimeoutMS, v, err)
		} else {
			cfg.Breaker.ResetTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := get(envCBCallTimeoutMS); ok {
		if n, err := parseInt(v, func(n int) bool { return n >= 0 }, "must be >= 0"); err != nil {
			warn(envCBCallTimeoutMS, v, err)
		} else {
			cfg.Breaker.CallTimeout = time.Duration(n) * time.Millisecond
		}
	}
	if v, ok := get(envPaymentMaxRetries); ok {
		if n, err := parseInt(v, func(n int) bool { return n >= 0 }, "must be >= 0"); err != nil {
			warn(envPaymentMaxRetries, v, err)
		} else {
			cfg.Retry.MaxRetries = n
		}
	}
	nonNegative := func(d time.Duration) bool { return d >= 0 }
	if v, ok := get(envPaymentBackoff); ok {
		if d, err := parseDuration(v, nonNegative, "must be >= 0"); err != nil {
			warn(envPaymentBackoff, v, err)
		} else {
			cfg.Retry.Backoff = d
		}
	}
	if v, ok := get(envChargeLatency); ok {
		if d, err := parseDuration(v, nonNegative, "must be >= 0"); err != nil {
			warn(envChargeLatency, v, err)
		} else {
			cfg.ChargeLatency = d
		}
	}

	// Read side
	if v, ok := get(envCacheTTLSec); ok {
		if n, err := parseInt(v, positive, "must be > 0"); err != nil {
			warn(envCacheTTLSec, v, err)
		} else {
			cfg.CacheTTL = time.Duration(n) * time.Second
		}
	}
	if v, ok := get(envConfigURL); ok {
		cfg.ConfigURL = v
	}
	if v, ok := get(envConfigPollInterval); ok {
		if d, err := parseDuration(v, func(d time.Duration) bool { return d > 0 }, "must be > 0"); err != nil {
			warn(envConfigPollInterval, v, err)
		} else {
			cfg.ConfigPollInterval = d
		}
	}

	return cfg, warnings
}

func parseDriver(value string, allowed ...string) (string, error) {
	driver := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range allowed {
		if driver == candidate {
			return driver, nil
		}
	}
	return "", fmt.Errorf("must be one of %s", strings.Join(allowed, ", "))
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, errors.New("must be a boolean")
	}
}

func parseInt(value string, valid func(int) bool, rule string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if !valid(n) {
		return 0, errors.New(rule)
	}
	return n, nil
}

func parseFloat(value string, valid func(float64) bool, rule string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if !valid(f) {
		return 0, errors.New(rule)
	}
	return f, nil
}

func parseDuration(value string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if !valid(d) {
		return 0, errors.New(rule)
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func main() {
	setupLogger()
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	buildVersion, buildCommit, buildDate := version.Info()
	log.WithFields(log.Fields{
		"http_addr":    cfg.HTTPAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"cache":        cfg.CacheDriver,
		"broker":       cfg.BrokerDriver,
		"version":      buildVersion,
		"commit":       buildCommit,
		"build_date":   buildDate,
	}).Info("запускаем orderflow")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("orderflow остановлен")
}
