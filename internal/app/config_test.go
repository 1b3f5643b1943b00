package app

import (
	"testing"
	"time"
)

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.HTTPAddr != ":3000" {
		t.Errorf("expected HTTPAddr :3000, got %s", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("expected MetricsAddr :9090, got %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Errorf("expected StorageDriver %s, got %s", StorageDriverMemory, cfg.StorageDriver)
	}
	if cfg.CacheDriver != CacheDriverMemory {
		t.Errorf("expected CacheDriver %s, got %s", CacheDriverMemory, cfg.CacheDriver)
	}
	if cfg.BrokerDriver != BrokerDriverMemory {
		t.Errorf("expected BrokerDriver %s, got %s", BrokerDriverMemory, cfg.BrokerDriver)
	}
	if !cfg.PostgresAutoMigrate {
		t.Error("expected PostgresAutoMigrate to be true")
	}
	if !cfg.AckOnFailure {
		t.Error("expected AckOnFailure to be true")
	}
	if cfg.FailureRate != 0.3 {
		t.Errorf("expected FailureRate 0.3, got %v", cfg.FailureRate)
	}
	if cfg.CacheTTL != 10*time.Second {
		t.Errorf("expected CacheTTL 10s, got %v", cfg.CacheTTL)
	}
	if cfg.ConfigPollInterval != 30*time.Second {
		t.Errorf("expected ConfigPollInterval 30s, got %v", cfg.ConfigPollInterval)
	}
	if cfg.ConfigURL != "" {
		t.Errorf("expected polling to be disabled by default, got %q", cfg.ConfigURL)
	}
}

func TestDefaultConfig_ResilienceDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Breaker.VolumeThreshold != 5 {
		t.Errorf("expected VolumeThreshold 5, got %d", cfg.Breaker.VolumeThreshold)
	}
	if cfg.Breaker.ErrorThresholdPercentage != 50 {
		t.Errorf("expected ErrorThresholdPercentage 50, got %v", cfg.Breaker.ErrorThresholdPercentage)
	}
	if cfg.Breaker.ResetTimeout != 10*time.Second {
		t.Errorf("expected ResetTimeout 10s, got %v", cfg.Breaker.ResetTimeout)
	}
	if cfg.Breaker.CallTimeout != 5*time.Second {
		t.Errorf("expected CallTimeout 5s, got %v", cfg.Breaker.CallTimeout)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.Backoff != 200*time.Millisecond {
		t.Errorf("expected Backoff 200ms, got %v", cfg.Retry.Backoff)
	}
}
