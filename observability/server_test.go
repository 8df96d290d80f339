//go:build test

package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// startTestServer runs the metrics server on an ephemeral port with an
// isolated registry.
func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	registry := prometheus.NewRegistry()
	promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Name:      "test_marker_total",
		Help:      "Marker metric for server tests",
	}).Inc()

	srv := NewServer(zerolog.Nop(), ServerConfig{
		MetricsEnabled: true,
		MetricsAddr:    "127.0.0.1:0",
		Registry:       registry,
	})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = srv.Stop()
	})

	require.Eventually(t, func() bool { return srv.IsRunning() }, time.Second, 10*time.Millisecond)

	return srv, srv.MetricsAddr()
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestMetricsEndpoint(t *testing.T) {
	_, addr := startTestServer(t)

	status, body := get(t, fmt.Sprintf("http://%s/metrics", addr))
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "drops_test_marker_total 1")
}

func TestHealthEndpoint(t *testing.T) {
	_, addr := startTestServer(t)

	status, body := get(t, fmt.Sprintf("http://%s/health", addr))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "OK", body)
}

func TestReadyEndpoint(t *testing.T) {
	srv, addr := startTestServer(t)

	status, body := get(t, fmt.Sprintf("http://%s/ready", addr))
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Ready", body)

	srv.SetReadinessCheck(func(context.Context) error { return errors.New("session not started") })

	status, body = get(t, fmt.Sprintf("http://%s/ready", addr))
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Contains(t, body, "session not started")

	srv.SetReadinessCheck(nil)
	status, _ = get(t, fmt.Sprintf("http://%s/ready", addr))
	require.Equal(t, http.StatusOK, status)
}

func TestStartIsIdempotent(t *testing.T) {
	srv, _ := startTestServer(t)
	require.NoError(t, srv.Start(context.Background()))
	require.True(t, srv.IsRunning())
}

func TestStopWithoutStart(t *testing.T) {
	srv := NewServer(zerolog.Nop(), ServerConfig{})
	require.NoError(t, srv.Stop())
	require.False(t, srv.IsRunning())
}
