// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown.
//
// # Structured Logging
//
// Loggers are logrus-backed and emit one JSON object per line:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("port", 8080).Info("Server started")
//
// Request handlers pull a logger carrying request_id, user_id and the
// active trace IDs from the context:
//
//	observability.FromContext(r.Context()).WithError(err).Error("Failed to list files")
//
// # Prometheus Metrics
//
// Every Observe* helper accepts a nil *Metrics:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.ObserveUpload("stored")
//	metrics.ObserveGuardDecision("denied", "users.delete")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version).
//		AddCheck("storage", blobs.HealthCheck, true)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
//	ctx, span := observability.StartSpan(ctx, "files.Upload")
//	defer observability.EndSpan(span, err)
//
// # Shutdown
//
//	shutdown := observability.NewShutdownManager(logger, 30*time.Second)
//	shutdown.Register("database", func(context.Context) error { return db.Close() })
//	shutdown.Register("http", server.Shutdown)
//	err := shutdown.WaitForSignal(ctx)
package observability
