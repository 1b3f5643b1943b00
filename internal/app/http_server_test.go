package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orderflow/internal/health"
	"github.com/vladislavdragonenkov/orderflow/internal/metrics"
	"github.com/vladislavdragonenkov/orderflow/internal/version"
)

func findFreePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer lis.Close()
	return lis.Addr().(*net.TCPAddr).Port
}

func waitForServer(t *testing.T, url string) *http.Response {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("server at %s did not start: %v", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStartMetricsServer_Endpoints(t *testing.T) {
	logger := log.WithField("test", "http")
	port := findFreePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := health.NewHandler(version.GetVersion())
	srv := startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), logger, healthHandler)
	defer shutdownHTTP(srv, logger)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	resp := waitForServer(t, base+"/livez")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200 for /livez, got %d", resp.StatusCode)
	}

	for _, path := range []string{"/metrics", "/healthz", "/readyz"} {
		resp, err := http.Get(base + path)
		if err != nil {
			t.Fatalf("failed to get %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

func TestStartMetricsServer_StopsOnContextCancel(t *testing.T) {
	logger := log.WithField("test", "http-cancel")
	port := findFreePort(t)

	ctx, cancel := context.WithCancel(context.Background())
	startMetricsServer(ctx, fmt.Sprintf("127.0.0.1:%d", port), logger, health.NewHandler("test"))

	resp := waitForServer(t, fmt.Sprintf("http://127.0.0.1:%d/livez", port))
	resp.Body.Close()

	cancel()
	require.Eventually(t, func() bool {
		_, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/livez", port))
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestShutdownHTTP_NilServer(t *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "nil"))
}

func TestApplication_OrderFlowWithMemoryDrivers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FailureRate = 0
	cfg.AuditDelay = time.Millisecond

	logger := log.WithField("test", "application")
	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.closeFn()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newApplication(cfg, deps, metrics.NewWithRegisterer(prometheus.NewRegistry()), logger)
	require.NoError(t, a.start(ctx))

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/orders", "application/json", nil)
	require.NoError(t, err)
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, "CREATED", created.Status)

	resp, err = http.Post(srv.URL+"/orders/"+created.ID+"/pay", "application/json", strings.NewReader(`{"amount":25}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		view, err := deps.views.Get(ctx, created.ID)
		return err == nil && view.Status == "PAID"
	}, 2*time.Second, 10*time.Millisecond)

	report := a.health.Run(ctx)
	require.Equal(t, health.StatusHealthy, report.Status)
}
