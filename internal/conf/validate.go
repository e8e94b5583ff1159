package conf

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateDatabaseSettings(&settings.Database); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateWebServerSettings(&settings.WebServer); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateSecuritySettings(&settings.Security); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if err := validateMQTTSettings(&settings.MQTT); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}
	if settings.Custody.ReportDir == "" {
		ve.Errors = append(ve.Errors, "custody.reportdir must not be empty")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *DatabaseSettings) error {
	if !slices.Contains([]string{DatabaseSQLite, DatabaseMySQL, DatabasePostgres}, s.Type) {
		return fmt.Errorf("database.type %q is not one of sqlite, mysql, postgres", s.Type)
	}
	switch s.Type {
	case DatabaseSQLite:
		if s.SQLite.Path == "" {
			return fmt.Errorf("database.sqlite.path must be set")
		}
	case DatabaseMySQL:
		if s.MySQL.Host == "" || s.MySQL.Database == "" {
			return fmt.Errorf("database.mysql host and database must be set")
		}
	case DatabasePostgres:
		if s.Postgres.Host == "" || s.Postgres.Database == "" {
			return fmt.Errorf("database.postgres host and database must be set")
		}
	}
	return nil
}

func validateWebServerSettings(s *WebServerSettings) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("webserver.port %d out of range", s.Port)
	}
	return nil
}

func validateSecuritySettings(s *SecuritySettings) error {
	if s.AccessTokenTTL <= 0 || s.RefreshTokenTTL <= 0 {
		return fmt.Errorf("security token TTLs must be positive")
	}
	if s.RefreshTokenTTL < s.AccessTokenTTL {
		return fmt.Errorf("security.refreshtokenttl must not be shorter than accesstokenttl")
	}
	if s.Redis.Enabled && s.Redis.Addr == "" {
		return fmt.Errorf("security.redis.addr must be set when redis is enabled")
	}
	return nil
}

func validateMQTTSettings(s *MQTTSettings) error {
	if !s.Enabled {
		return nil
	}
	if s.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set when mqtt is enabled")
	}
	if s.Topic == "" {
		return fmt.Errorf("mqtt.topic must be set when mqtt is enabled")
	}
	return nil
}
