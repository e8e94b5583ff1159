// Package testutil provides shared test utilities: a migrated SQLite database
// per test and a small directory of districts, users and polling stations.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/evmtrack/evmtrack/internal/datastore"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// NewTestDB opens a migrated SQLite database in a per-test temp directory.
// A file database is used rather than :memory: so every pooled connection
// sees the same schema.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=ON&_busy_timeout=5000"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	mgr := datastore.NewManager(db, logger.NewDiscard())
	require.NoError(t, mgr.Migrate(), "failed to migrate test database")

	t.Cleanup(func() {
		_ = mgr.Close()
	})
	return db
}
