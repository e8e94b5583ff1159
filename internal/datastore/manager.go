// Package datastore opens the relational store selected in configuration and
// migrates the custody schema.
package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// Manager owns the database connection.
type Manager struct {
	db      *gorm.DB
	dialect string
	log     logger.Logger
}

// Open connects to the configured database.
func Open(settings *conf.DatabaseSettings, debug bool, log logger.Logger) (*Manager, error) {
	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   NewGormLogger(log, debug),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("dialect", settings.Type).
			Context("operation", "open").
			Build()
	}

	if sqlDB, err := db.DB(); err == nil {
		if settings.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
		}
		if settings.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
		}
		if settings.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(settings.ConnMaxLifetime)
		}
	}

	log.Info("database opened", logger.String("dialect", settings.Type))
	return &Manager{db: db, dialect: settings.Type, log: log}, nil
}

// NewManager wraps an already opened connection. Used by tests.
func NewManager(db *gorm.DB, log logger.Logger) *Manager {
	return &Manager{db: db, dialect: db.Dialector.Name(), log: log}
}

func dialectorFor(s *conf.DatabaseSettings) (gorm.Dialector, error) {
	switch s.Type {
	case conf.DatabaseSQLite:
		if dir := filepath.Dir(s.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", s.SQLite.Path).
					Build()
			}
		}
		dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", s.SQLite.Path)
		return sqlite.Open(dsn), nil
	case conf.DatabaseMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			s.MySQL.Username, s.MySQL.Password, s.MySQL.Host, s.MySQL.Port, s.MySQL.Database)
		return mysql.Open(dsn), nil
	case conf.DatabasePostgres:
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.Postgres.Host, s.Postgres.Port, s.Postgres.Username, s.Postgres.Password,
			s.Postgres.Database, s.Postgres.SSLMode)
		return postgres.Open(dsn), nil
	default:
		return nil, errors.Newf("unsupported database type %q", s.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// Migrate creates or updates every table of the custody schema.
func (m *Manager) Migrate() error {
	if err := m.db.AutoMigrate(entities.All()...); err != nil {
		return errors.Database("datastore", "auto-migrate", err)
	}
	m.log.Info("schema migrated", logger.Int("tables", len(entities.All())))
	return nil
}

// DB returns the underlying GORM database.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Dialect returns sqlite, mysql or postgres.
func (m *Manager) Dialect() string {
	return m.dialect
}

// Close closes the database connection.
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve generic DB object: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (m *Manager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
