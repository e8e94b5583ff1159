package serve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/errors"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	dir := t.TempDir()
	return &conf.Settings{
		Main: conf.MainSettings{Name: "evmtrack-test"},
		Database: conf.DatabaseSettings{
			Type:   conf.DatabaseSQLite,
			SQLite: conf.SQLiteSettings{Path: filepath.Join(dir, "evmtrack.db")},
		},
		WebServer: conf.WebServerSettings{Port: 8080},
		Security: conf.SecuritySettings{
			JWTSecret:       "0123456789abcdef0123456789abcdef",
			Issuer:          "evmtrack-test",
			AccessTokenTTL:  time.Minute,
			RefreshTokenTTL: time.Hour,
		},
		Custody: conf.CustodySettings{
			ReportDir:         filepath.Join(dir, "reports"),
			DirectoryCacheTTL: time.Minute,
		},
	}
}

func TestBuildServesHealthAndLogin(t *testing.T) {
	settings := testSettings(t)

	server, cleanup, err := build(context.Background(), settings)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/components", http.NoBody))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBuildRejectsShortJWTSecret(t *testing.T) {
	settings := testSettings(t)
	settings.Security.JWTSecret = "too-short"

	server, cleanup, err := build(context.Background(), settings)
	require.Error(t, err)
	assert.Nil(t, server)
	assert.Nil(t, cleanup)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestBuildUnreachableRedis(t *testing.T) {
	settings := testSettings(t)
	settings.Security.Redis = conf.RedisSettings{Enabled: true, Addr: "127.0.0.1:1"}

	_, _, err := build(context.Background(), settings)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreachable")
}
