// Package serve runs the custody HTTP API.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/evmtrack/evmtrack/internal/api"
	"github.com/evmtrack/evmtrack/internal/api/auth"
	v1 "github.com/evmtrack/evmtrack/internal/api/v1"
	"github.com/evmtrack/evmtrack/internal/auditlog"
	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/custody"
	"github.com/evmtrack/evmtrack/internal/datastore"
	"github.com/evmtrack/evmtrack/internal/datastore/repository"
	"github.com/evmtrack/evmtrack/internal/errors"
	"github.com/evmtrack/evmtrack/internal/logger"
	"github.com/evmtrack/evmtrack/internal/mqtt"
	"github.com/evmtrack/evmtrack/internal/observability"
	"github.com/evmtrack/evmtrack/internal/privacy"
	"github.com/evmtrack/evmtrack/internal/report"
)

const minJWTSecretLength = 32

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the custody API server",
		Long:  "Open the database, migrate the schema and serve the custody API until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// flags win over the loaded configuration
			if cmd.Flags().Changed("host") {
				settings.WebServer.Host = host
			}
			if cmd.Flags().Changed("port") {
				settings.WebServer.Port = port
			}
			return Run(cmd.Context(), settings)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides webserver.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on (overrides webserver.port)")

	return cmd
}

// Run wires every component and blocks until the server stops.
func Run(ctx context.Context, settings *conf.Settings) error {
	server, cleanup, err := build(ctx, settings)
	if err != nil {
		return err
	}
	defer cleanup()
	return server.StartWithGracefulShutdown()
}

// build opens the backends and assembles the HTTP server. cleanup releases
// the backends in reverse order and is non-nil whenever err is nil.
func build(ctx context.Context, settings *conf.Settings) (server *api.Server, cleanup func(), err error) {
	log := logger.Global().Module("main")

	if len(settings.Security.JWTSecret) < minJWTSecretLength {
		return nil, nil, errors.Newf("security.jwtsecret must be at least %d characters to serve", minJWTSecretLength).
			Component("serve").
			Category(errors.CategoryConfiguration).
			Build()
	}

	var closers []func()
	release := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	defer func() {
		if err != nil {
			release()
		}
	}()

	db, err := datastore.Open(&settings.Database, settings.Main.Debug, logger.Global().Module("datastore"))
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() {
		if err := db.Close(); err != nil {
			log.Warn("database close failed", logger.Error(err))
		}
	})
	if err := db.Migrate(); err != nil {
		return nil, nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store := repository.NewStore(db.DB())

	var sinks []auditlog.Sink
	if settings.MQTT.Enabled {
		client := mqtt.NewClient(mqtt.ConfigFromSettings(&settings.MQTT), m.MQTT, logger.Global().Module("mqtt"))
		if err := client.Connect(ctx); err != nil {
			// the client keeps retrying in the background
			log.Warn("MQTT broker unreachable at startup", logger.String("broker", privacy.RedactURL(settings.MQTT.Broker)), logger.Error(err))
		}
		closers = append(closers, client.Disconnect)
		sinks = append(sinks, mqtt.NewAuditSink(client, settings.MQTT.Topic, m.MQTT, logger.Global().Module("mqtt")))
	}

	deps := &custody.Deps{
		Store:    store,
		Audit:    auditlog.NewRecorder(store.Audit, logger.Global().Module("audit"), m.Custody, sinks...),
		Renderer: report.NewPDFRenderer(settings.Main.Name),
		Metrics:  m.Custody,
		Names:    custody.NewNames(store.Directory, settings.Custody.DirectoryCacheTTL),
		Log:      logger.Global().Module("custody"),
	}

	revoked, closeRevoked, err := revocationStore(ctx, &settings.Security.Redis)
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, closeRevoked)

	tokens := auth.NewTokenIssuer(settings.Security.JWTSecret, settings.Security.Issuer,
		settings.Security.AccessTokenTTL, settings.Security.RefreshTokenTTL)
	authService := auth.NewService(store.Directory, tokens, revoked, logger.Global().Module("api"))

	server, err = api.New(api.ConfigFromSettings(settings), v1.NewServices(deps, &settings.Custody), authService,
		logger.Global().Module("api"), api.WithMetrics(m), api.WithHealthCheck(db.Ping))
	if err != nil {
		return nil, nil, err
	}
	return server, release, nil
}

// revocationStore returns the Redis store when configured, the in-process
// store otherwise.
func revocationStore(ctx context.Context, s *conf.RedisSettings) (auth.RevocationStore, func(), error) {
	if !s.Enabled {
		return auth.NewMemoryRevocationStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     s.Addr,
		Password: s.Password,
		DB:       s.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s unreachable: %w", s.Addr, err)
	}
	return auth.NewRedisRevocationStore(client), func() { _ = client.Close() }, nil
}
