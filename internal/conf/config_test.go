package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEmbeddedExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	settings, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DatabaseSQLite, settings.Database.Type)
	assert.Equal(t, 8080, settings.WebServer.Port)
	assert.Equal(t, 15*time.Minute, settings.Security.AccessTokenTTL)
	assert.Equal(t, 168*time.Hour, settings.Security.RefreshTokenTTL)
	assert.False(t, settings.Custody.RevertOnReject)
	assert.Equal(t, "reports", settings.Custody.ReportDir)
	assert.True(t, settings.Logging.Console.Enabled)
	assert.Same(t, settings, GetSettings())
}

func TestLoadFromOverridesAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte("database:\n  type: postgres\n  postgres:\n    host: db\n    database: custody\ncustody:\n  revertonreject: true\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("EVMTRACK_WEBSERVER_PORT", "9090")

	settings, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, DatabasePostgres, settings.Database.Type)
	assert.Equal(t, "db", settings.Database.Postgres.Host)
	assert.Equal(t, 5432, settings.Database.Postgres.Port)
	assert.True(t, settings.Custody.RevertOnReject)
	assert.Equal(t, 9090, settings.WebServer.Port)
}

func TestLoadFromResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	secretFile := filepath.Join(dir, "jwt")
	require.NoError(t, os.WriteFile(secretFile, []byte("file-secret\n"), 0o600))

	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("security:\n  jwtsecretfile: " + secretFile + "\nmqtt:\n  password: ${EVMTRACK_TEST_MQTT_PASSWORD}\n")
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv("EVMTRACK_TEST_MQTT_PASSWORD", "broker-pass")

	settings, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "file-secret", settings.Security.JWTSecret)
	assert.Equal(t, "broker-pass", settings.MQTT.Password)
}

func TestLoadFromMissingSecretReference(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("security:\n  jwtsecret: ${EVMTRACK_TEST_UNSET_SECRET}\n"), 0o600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVMTRACK_TEST_UNSET_SECRET")
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	valid := func() *Settings {
		return &Settings{
			Database:  DatabaseSettings{Type: DatabaseSQLite, SQLite: SQLiteSettings{Path: "x.db"}},
			WebServer: WebServerSettings{Port: 8080},
			Security:  SecuritySettings{AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour},
			Custody:   CustodySettings{ReportDir: "reports"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"unknown db", func(s *Settings) { s.Database.Type = "oracle" }, "database.type"},
		{"bad port", func(s *Settings) { s.WebServer.Port = 0 }, "webserver.port"},
		{"ttl order", func(s *Settings) { s.Security.RefreshTokenTTL = time.Second }, "refreshtokenttl"},
		{"redis addr", func(s *Settings) { s.Security.Redis = RedisSettings{Enabled: true} }, "redis.addr"},
		{"mqtt broker", func(s *Settings) { s.MQTT = MQTTSettings{Enabled: true, Topic: "t"} }, "mqtt.broker"},
		{"report dir", func(s *Settings) { s.Custody.ReportDir = "" }, "reportdir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := valid()
			tt.mutate(s)
			err := ValidateSettings(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
