// Command warden serves the admin API: users, roles, files, activity and
// dashboard statistics behind role-based access control.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/sso"
	"github.com/platinummonkey/warden/pkg/storage"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

var migrateOnly = flag.Bool("migrate-only", false, "Run migrations and seed roles, then exit")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warden: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", "warden").
		WithField("version", version)

	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("warden exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	table, err := loadRoleTable(cfg.RolesFile)
	if err != nil {
		_ = shutdown.Shutdown(ctx)
		return err
	}
	if err := prepareDatabase(ctx, db, table, logger); err != nil {
		_ = shutdown.Shutdown(ctx)
		return err
	}
	if *migrateOnly {
		logger.Info("Migrations and role seed complete")
		return shutdown.Shutdown(ctx)
	}

	providers, err := observability.InitOTel(ctx, otelConfig(cfg), logger)
	if err != nil {
		_ = shutdown.Shutdown(ctx)
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", providers.Shutdown)

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewDBStatsCollector(db, cfg.Database.Driver),
		)
		metrics = observability.NewMetrics(registry)
	}

	resolver, err := sso.NewResolver(ctx, cfg.Identity)
	if err != nil {
		_ = shutdown.Shutdown(ctx)
		return fmt.Errorf("failed to initialize identity resolver: %w", err)
	}
	if cfg.Identity.Mode == sso.ModeHeader {
		logger.Warn("Trusting identity headers; clients must not reach the service directly")
	}

	blobs, err := storage.NewBlobStore(ctx, cfg.Storage, metrics)
	if err != nil {
		_ = shutdown.Shutdown(ctx)
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled() {
		redisClient, err = storage.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			// the limiter fails open, so a missing Redis only disables it
			logger.WithError(err).Warn("Redis unavailable, upload rate limiting disabled")
			redisClient = nil
		} else {
			shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		}
	} else {
		logger.Info("No Redis configured, upload rate limiting disabled")
	}

	router := newRouter(deps{
		db:          db,
		table:       table,
		resolver:    resolver,
		blobs:       blobs,
		storageType: cfg.Storage.Type,
		redis:       redisClient,
		rateLimit:   cfg.RateLimit,
		logger:      logger,
		metrics:     metrics,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      withMiddleware(router, cfg.Server, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(db, redisClient, version).
		AddCheck("storage", blobs.HealthCheck, true)
	healthServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:      newHealthMux(checker, registry),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdown.Register("health server", healthServer.Shutdown)
	shutdown.Register("api server", apiServer.Shutdown)

	serveErr := make(chan error, 2)
	serve := func(name string, server *http.Server) {
		logger.WithField("addr", server.Addr).Infof("Starting %s", name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("%s: %w", name, err)
		}
	}
	go serve("api server", apiServer)
	go serve("health server", healthServer)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var runErr error
	go func() {
		if err := <-serveErr; err != nil {
			runErr = err
			cancel()
		}
	}()

	if err := shutdown.WaitForSignal(ctx); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// prepareDatabase applies migrations and seeds the built-in roles
func prepareDatabase(ctx context.Context, db *sql.DB, table *rbac.Table, logger *observability.Logger) error {
	if err := database.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := rbac.NewStore(db).SeedRoles(ctx, table); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}
	return nil
}

func loadRoleTable(path string) (*rbac.Table, error) {
	if path == "" {
		return rbac.DefaultTable(), nil
	}
	table, err := rbac.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles file: %w", err)
	}
	return table, nil
}

func otelConfig(cfg *config.Config) observability.OTelConfig {
	otelCfg := cfg.Observability.OTel()
	if otelCfg.ServiceVersion == "" {
		otelCfg.ServiceVersion = version
	}
	return otelCfg
}
