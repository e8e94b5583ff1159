package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/api/auth"
	v1 "github.com/evmtrack/evmtrack/internal/api/v1"
	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/custody/custodytest"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/observability"
)

func newTestServer(t *testing.T, health func(context.Context) error) *Server {
	t.Helper()
	env := custodytest.New(t)

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	env.Deps.Metrics = m.Custody

	tokens := auth.NewTokenIssuer("server-test-secret", "evmtrack-test", time.Minute, time.Hour)
	authService := auth.NewService(env.Store.Directory, tokens, auth.NewMemoryRevocationStore(), logger.NewDiscard())

	cfg := DefaultConfig()
	cfg.ReportDir = t.TempDir()
	s, err := New(cfg, v1.NewServices(env.Deps, &conf.CustodySettings{}), authService, logger.NewDiscard(),
		WithMetrics(m), WithHealthCheck(health))
	require.NoError(t, err)
	return s
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		check  error
		code   int
		status string
	}{
		{"healthy", nil, http.StatusOK, "healthy"},
		{"database down", errors.NewStd("connection refused"), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(context.Context) error { return tt.check })
			rec := httptest.NewRecorder()
			s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			require.Equal(t, tt.code, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
			assert.Equal(t, "dev", body["version"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Address())

	cfg.ReportDir = ""
	assert.Error(t, cfg.Validate())

	cfg = ConfigFromSettings(&conf.Settings{
		WebServer: conf.WebServerSettings{Host: "127.0.0.1", Port: 9000, ShutdownTimeout: 3 * time.Second},
		Custody:   conf.CustodySettings{ReportDir: "/var/lib/evmtrack/reports"},
	})
	assert.Equal(t, "127.0.0.1:9000", cfg.Address())
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/var/lib/evmtrack/reports", cfg.ReportDir)
}
