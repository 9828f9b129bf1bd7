package main

import (
	"database/sql"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/warden/pkg/activity"
	"github.com/platinummonkey/warden/pkg/config"
	"github.com/platinummonkey/warden/pkg/dashboard"
	"github.com/platinummonkey/warden/pkg/files"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/storage"
	"github.com/platinummonkey/warden/pkg/users"
)

// deps is everything the HTTP layer is built from
type deps struct {
	db          *sql.DB
	table       *rbac.Table
	resolver    middleware.IdentityResolver
	blobs       storage.BlobStore
	storageType string
	redis       *redis.Client // nil disables upload rate limiting
	rateLimit   config.RateLimitConfig
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// newRouter wires stores, services and handlers. Every /api route and the
// local /uploads route pass through the request guard.
func newRouter(d deps) *mux.Router {
	userStore := users.NewStore(d.db)
	roleStore := rbac.NewStore(d.db)
	activityStore := activity.NewStore(d.db)
	fileStore := files.NewStore(d.db)

	recorder := activity.NewDBRecorder(activityStore, d.logger, d.metrics)
	perms := rbac.NewPermissionMiddleware(d.table, d.metrics)
	provisioner := users.NewProvisioner(userStore, roleStore, recorder, d.metrics)
	guard := middleware.NewGuard(d.resolver, provisioner, d.logger, d.metrics)
	fileService := files.NewService(fileStore, d.blobs, d.logger, d.metrics)

	fileHandlers := files.NewHandlers(fileService, fileStore, perms, recorder)
	if d.redis != nil {
		limiter := middleware.NewRateLimiter(d.redis, &middleware.RateLimitConfig{
			RequestsPerWindow: d.rateLimit.UploadLimit,
			WindowDuration:    d.rateLimit.UploadWindow,
		}, "warden:upload")
		fileHandlers.WithUploadLimiter(middleware.NewRateLimitMiddleware(limiter, "upload", d.logger, d.metrics))
	}

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(d.metrics))
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFoundError(w, "Not found")
	})

	api := router.PathPrefix("/api").Subrouter()
	api.Use(guard.Handler)
	users.NewHandlers(userStore, roleStore, perms, recorder, fileService).RegisterRoutes(api)
	rbac.NewHandlers(roleStore, perms, recorder).RegisterRoutes(api)
	activity.NewHandlers(activityStore, perms).RegisterRoutes(api)
	fileHandlers.RegisterRoutes(api)
	dashboard.NewHandlers(userStore, fileStore, roleStore, activityStore, perms).RegisterRoutes(api)

	// S3 objects are fetched from their public URL instead
	if d.storageType == storage.TypeLocal {
		uploads := router.PathPrefix("/uploads").Subrouter()
		uploads.Use(guard.Handler)
		fileHandlers.RegisterServeRoutes(uploads)
	}

	return router
}

// withMiddleware wraps the router in the process-wide middleware chain
func withMiddleware(router http.Handler, cfg config.ServerConfig, logger *observability.Logger) http.Handler {
	chain := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.CORSMiddleware(cfg.AllowedOrigins),
	}
	if cfg.MaxRequestBytes > 0 {
		chain = append(chain, httputil.MaxBytesMiddleware(cfg.MaxRequestBytes))
	}
	handler := httputil.Chain(chain...)(router)

	return otelhttp.NewHandler(handler, "warden")
}

// newHealthMux serves probes and metrics on the health port
func newHealthMux(checker *observability.HealthChecker, registry *prometheus.Registry) *http.ServeMux {
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	return healthMux
}
