package rbac

import (
	"net/http"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
)

// Guard outcomes recorded in metrics
const (
	outcomeAllowed         = "allowed"
	outcomeDenied          = "denied"
	outcomeUnauthenticated = "unauthenticated"
)

// PermissionMiddleware provides middleware for permission checking
type PermissionMiddleware struct {
	checker Checker
	metrics *observability.Metrics
}

// NewPermissionMiddleware creates a new permission middleware. A nil checker
// falls back to the built-in table.
func NewPermissionMiddleware(checker Checker, metrics *observability.Metrics) *PermissionMiddleware {
	if checker == nil {
		checker = defaultTable
	}
	return &PermissionMiddleware{
		checker: checker,
		metrics: metrics,
	}
}

// Authorize checks the caller against p. It returns an Unauthenticated
// error when no local user is attached and Forbidden when the role lacks p.
func (pm *PermissionMiddleware) Authorize(caller *auth.AuthContext, p Permission) error {
	if caller == nil || caller.User == nil {
		pm.metrics.ObserveGuardDecision(outcomeUnauthenticated, string(p))
		return httputil.Unauthenticated("Unauthorized")
	}
	if !pm.checker.HasPermission(caller.RoleName(), p) {
		pm.metrics.ObserveGuardDecision(outcomeDenied, string(p))
		return httputil.Forbidden("Insufficient permissions")
	}
	pm.metrics.ObserveGuardDecision(outcomeAllowed, string(p))
	return nil
}

// Permissions lists what the named role is granted
func (pm *PermissionMiddleware) Permissions(roleName string) []Permission {
	return pm.checker.Permissions(roleName)
}

// RequirePermission creates middleware that requires a specific permission
func (pm *PermissionMiddleware) RequirePermission(p Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := pm.Authorize(auth.GetAuthContext(r), p); err != nil {
				observability.FromContext(r.Context()).
					WithField("permission", string(p)).
					WithField("path", r.URL.Path).
					Debug("Permission check rejected request")
				httputil.WriteAppError(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Require wraps a single handler func with a permission check
func (pm *PermissionMiddleware) Require(p Permission, fn http.HandlerFunc) http.Handler {
	return pm.RequirePermission(p)(fn)
}
