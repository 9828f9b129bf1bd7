// Package middleware provides the request guard and the upload rate limiter.
//
// # Guard
//
// Guard runs in front of every /api route. It resolves the caller's identity,
// provisions the local user on first sight and stores the resulting
// auth.AuthContext on the request:
//
//	guard := middleware.NewGuard(resolver, provisioner, logger, metrics)
//	api := router.PathPrefix("/api").Subrouter()
//	api.Use(guard.Handler)
//
// Requests without an identity get 401 {"error":"Unauthorized"}. Provisioning
// failures are classified through httputil.WriteAppError, so a missing default
// role surfaces as a 500 configuration error. Per-route permission checks are
// done by rbac.PermissionMiddleware.
//
// # Rate limiting
//
// RateLimiter is a fixed-window counter in Redis, shared by every instance:
//
//	limiter := middleware.NewRateLimiter(redisClient, &middleware.RateLimitConfig{
//		RequestsPerWindow: 30,
//		WindowDuration:    time.Minute,
//	}, "ratelimit:uploads")
//	uploads := middleware.NewRateLimitMiddleware(limiter, "uploads", logger, metrics)
//
// Callers are keyed by user id, or client address when unauthenticated.
// Redis errors fail open. A nil *RateLimitMiddleware passes requests through.
package middleware
