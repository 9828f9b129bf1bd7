// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Every endpoint reports failures through a classified *Error. The kind
// decides the status code and the message is the only thing the caller
// sees:
//
//	Unauthenticated -> 401
//	Forbidden       -> 403
//	NotFound        -> 404
//	InvalidInput    -> 400
//	Configuration   -> 500
//	Internal        -> 500 "Internal server error"
//
// Handlers return errors and write them once at the boundary:
//
//	if err := h.store.DeleteRole(ctx, id); err != nil {
//		httputil.WriteAppError(w, err)
//		return
//	}
//
// # Request Parsing
//
//	var req createRoleRequest
//	if err := httputil.ParseJSON(r, &req); err != nil { ... }
//	id, err := httputil.ParsePathString(r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 20)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//	)
//
// # Related Packages
//
//   - pkg/middleware: identity resolution and permission checks
package httputil
