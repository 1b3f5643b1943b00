package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), DefaultConfig(), log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	defer deps.closeFn()

	if deps.orders == nil {
		t.Fatal("orders should not be nil for memory storage")
	}
	if deps.views == nil {
		t.Fatal("views should not be nil for memory storage")
	}
	if deps.cache == nil {
		t.Fatal("cache should not be nil for memory driver")
	}
	if deps.broker == nil {
		t.Fatal("broker should not be nil for memory driver")
	}
	for _, name := range []string{"storage", "cache", "broker"} {
		if _, ok := deps.checkers[name]; !ok {
			t.Errorf("expected %s checker to be registered", name)
		}
	}
}

func TestInitRuntimeDependencies_EmptyDriversDefaultToMemory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{}, nil)
	if err != nil {
		t.Fatalf("initRuntimeDependencies with empty drivers failed: %v", err)
	}
	deps.closeFn()
}

func TestInitRuntimeDependencies_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"postgres without dsn", func(c *Config) { c.StorageDriver = StorageDriverPostgres }},
		{"unsupported storage", func(c *Config) { c.StorageDriver = "sqlite" }},
		{"redis without url", func(c *Config) { c.CacheDriver = CacheDriverRedis }},
		{"redis with bad url", func(c *Config) {
			c.CacheDriver = CacheDriverRedis
			c.RedisURL = "http://not-redis"
		}},
		{"unsupported cache", func(c *Config) { c.CacheDriver = "memcached" }},
		{"rabbitmq without url", func(c *Config) { c.BrokerDriver = BrokerDriverRabbitMQ }},
		{"kafka without brokers", func(c *Config) { c.BrokerDriver = BrokerDriverKafka }},
		{"unsupported broker", func(c *Config) { c.BrokerDriver = "nats" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", tt.name))
			if err == nil {
				t.Fatalf("expected error for %s", tt.name)
			}
		})
	}
}
