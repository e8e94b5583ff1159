//go:build integration

package datastore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/datastore"
	"github.com/evmtrack/evmtrack/internal/datastore/entities"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/logger"
)

const (
	dbName     = "evmtrack"
	dbUser     = "evmtrack"
	dbPassword = "evmtrack-secret"
)

func hostPort(t *testing.T, c testcontainers.Container, port string) (string, int) {
	t.Helper()
	ctx := context.Background()
	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host, mapped.Int()
}

func TestMySQLMigrateAndTransition(t *testing.T) {
	ctx := context.Background()
	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase(dbName),
		tcmysql.WithUsername(dbUser),
		tcmysql.WithPassword(dbPassword),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, port := hostPort(t, container, "3306/tcp")
	settings := &conf.DatabaseSettings{
		Type: conf.DatabaseMySQL,
		MySQL: conf.MySQLSettings{
			Host: host, Port: port, Username: dbUser, Password: dbPassword, Database: dbName,
		},
	}
	exerciseBackend(t, settings)
}

func TestPostgresMigrateAndTransition(t *testing.T) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase(dbName),
		tcpostgres.WithUsername(dbUser),
		tcpostgres.WithPassword(dbPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, port := hostPort(t, container, "5432/tcp")
	settings := &conf.DatabaseSettings{
		Type: conf.DatabasePostgres,
		Postgres: conf.PostgresSettings{
			Host: host, Port: port, Username: dbUser, Password: dbPassword, Database: dbName, SSLMode: "disable",
		},
	}
	exerciseBackend(t, settings)
}

// exerciseBackend migrates the schema and checks the conditional status
// update that every workflow relies on.
func exerciseBackend(t *testing.T, settings *conf.DatabaseSettings) {
	t.Helper()
	ctx := context.Background()

	mgr, err := datastore.Open(settings, false, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	require.NoError(t, mgr.Migrate())
	require.NoError(t, mgr.Ping(ctx))

	store := repository.NewStore(mgr.DB())
	c := &entities.Component{Serial: "CU900", Type: entities.TypeCU, Status: entities.StatusFLCPassed}
	require.NoError(t, store.Components.CreateBatch(ctx, []*entities.Component{c}))

	require.NoError(t, store.Components.TransitionStatus(ctx, []uint{c.ID},
		[]entities.ComponentStatus{entities.StatusFLCPassed}, entities.StatusReserve, nil))
	err = store.Components.TransitionStatus(ctx, []uint{c.ID},
		[]entities.ComponentStatus{entities.StatusFLCPassed}, entities.StatusPolling, nil)
	assert.ErrorIs(t, err, repository.ErrStaleState)

	got, err := store.Components.GetBySerial(ctx, "CU900")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusReserve, got.Status)
}
