// config.go: settings struct for the EVM custody service and the functions that load it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// Database backends.
const (
	DatabaseSQLite   = "sqlite"
	DatabaseMySQL    = "mysql"
	DatabasePostgres = "postgres"
)

// MainSettings contains general service settings
type MainSettings struct {
	Name  string // service name, used as MQTT client id and report footer
	Debug bool   // true to enable debug logging of SQL and handlers
}

// SQLiteSettings configures the embedded SQLite store
type SQLiteSettings struct {
	Path string // database file path
}

// MySQLSettings configures a MySQL store
type MySQLSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

// PostgresSettings configures a PostgreSQL store
type PostgresSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
	SSLMode  string
}

// DatabaseSettings selects and configures the relational store
type DatabaseSettings struct {
	Type            string // sqlite, mysql or postgres
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SQLite          SQLiteSettings
	MySQL           MySQLSettings
	Postgres        PostgresSettings
}

// WebServerSettings configures the HTTP API
type WebServerSettings struct {
	Host            string
	Port            int
	Debug           bool
	ShutdownTimeout time.Duration
}

// RedisSettings configures the token revocation backend
type RedisSettings struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// SecuritySettings configures token issuing
type SecuritySettings struct {
	JWTSecret       string // may reference ${ENV_VARS}
	JWTSecretFile   string // mounted secret file, wins over JWTSecret
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	Redis           RedisSettings
}

// CustodySettings holds workflow switches
type CustodySettings struct {
	ManufacturerUserID uint          // custodian assigned to components returned to ECIL
	RevertOnReject     bool          // release in-transit components when an allotment is rejected
	ReportDir          string        // directory for ephemeral PDF files
	DirectoryCacheTTL  time.Duration // TTL for district / local body name lookups
}

// MQTTSettings configures the custody event notifier
type MQTTSettings struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
	Retain   bool
}

// Settings is the root configuration
type Settings struct {
	Main      MainSettings
	Database  DatabaseSettings
	WebServer WebServerSettings
	Security  SecuritySettings
	Custody   CustodySettings
	MQTT      MQTTSettings
	Logging   logger.LoggingConfig
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// LoadFrom reads configuration from an explicit file, falling back to the
// default search paths when configFile is empty.
func LoadFrom(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	v := viper.New()
	if err := initViper(v, configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment overrides and reads the config file.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix("EVMTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("fatal error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, path := range GetDefaultConfigPaths() {
		v.AddConfigPath(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// defaults only
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "evmtrack"))
	}
	return append(paths, "/etc/evmtrack")
}

// WriteDefaultConfig writes the embedded example configuration to path.
func WriteDefaultConfig(path string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}
	return nil
}

// GetSettings returns the most recently loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// resolveSecrets expands environment references in credential fields and
// reads the JWT secret file when one is configured.
func resolveSecrets(s *Settings) error {
	fields := []struct {
		name     string
		filePath string
		value    *string
	}{
		{"security.jwtsecret", s.Security.JWTSecretFile, &s.Security.JWTSecret},
		{"security.redis.password", "", &s.Security.Redis.Password},
		{"database.mysql.password", "", &s.Database.MySQL.Password},
		{"database.postgres.password", "", &s.Database.Postgres.Password},
		{"mqtt.password", "", &s.MQTT.Password},
	}
	log := logger.Global().Module("conf")
	for _, f := range fields {
		resolved, warning, err := secrets.Resolve(f.name, f.filePath, *f.value)
		if err != nil {
			return err
		}
		if warning != "" {
			log.Warn("insecure secret file", logger.String("field", f.name), logger.String("detail", warning))
		}
		*f.value = resolved
	}
	return nil
}
