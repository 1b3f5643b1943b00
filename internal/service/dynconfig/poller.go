package dynconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultFetchTimeout = 5 * time.Second
	maxConfigBodyBytes  = 64 << 10
)

// remoteConfig — документ, который отдаёт внешний config-сервис.
type remoteConfig struct {
	CacheTTLSec *float64 `json:"cacheTtlSec"`
}

// PollerOptions задаёт параметры Poller.
type PollerOptions struct {
	Logger   *log.Entry
	Interval time.Duration
	Client   *http.Client
}

// PollerOption настраивает Poller.
type PollerOption func(*PollerOptions)

// WithLogger задаёт logger для поллера.
func WithLogger(logger *log.Entry) PollerOption {
	return func(opts *PollerOptions) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал опроса.
func WithInterval(interval time.Duration) PollerOption {
	return func(opts *PollerOptions) {
		opts.Interval = interval
	}
}

// WithHTTPClient подменяет HTTP-клиент.
func WithHTTPClient(client *http.Client) PollerOption {
	return func(opts *PollerOptions) {
		opts.Client = client
	}
}

// Poller периодически подтягивает TTL кэша из удалённого источника.
// При ошибке загрузки остаётся последнее известное значение.
type Poller struct {
	url      string
	runtime  *Runtime
	client   *http.Client
	logger   *log.Entry
	interval time.Duration
}

// NewPoller создаёт поллер для url. Пустой url отключает опрос.
func NewPoller(url string, runtime *Runtime, options ...PollerOption) *Poller {
	opts := PollerOptions{Interval: defaultPollInterval}
	for _, option := range options {
		option(&opts)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultPollInterval
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: defaultFetchTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "config-poller")
	}

	return &Poller{
		url:      url,
		runtime:  runtime,
		client:   opts.Client,
		logger:   logger,
		interval: opts.Interval,
	}
}

// Run загружает конфигурацию сразу и затем по таймеру до отмены ctx.
func (p *Poller) Run(ctx context.Context) {
	if p.url == "" {
		p.logger.Info("remote config url is empty, polling disabled")
		return
	}

	p.refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	if err := p.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		p.logger.WithError(err).WithField("cache_ttl", p.runtime.CacheTTL()).
			Warn("config load failed, keeping previous value")
	}
}

// Refresh выполняет одну загрузку и применяет значения к Runtime.
func (p *Poller) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("build config request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch config: unexpected status %d", resp.StatusCode)
	}

	var cfg remoteConfig
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxConfigBodyBytes)).Decode(&cfg); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	if cfg.CacheTTLSec != nil && *cfg.CacheTTLSec > 0 {
		ttl := time.Duration(*cfg.CacheTTLSec * float64(time.Second))
		if ttl != p.runtime.CacheTTL() {
			p.logger.WithField("cache_ttl", ttl).Info("cache ttl updated from remote config")
		}
		p.runtime.SetCacheTTL(ttl)
	}
	return nil
}
