package middleware

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/sso"
)

// IdentityResolver turns an incoming request into the caller's identity
type IdentityResolver interface {
	ResolveIdentity(r *http.Request) (*auth.Identity, error)
}

// Provisioner returns the local user bound to an identity, creating it on
// first sight
type Provisioner interface {
	Provision(r *http.Request, identity *auth.Identity) (*auth.User, error)
}

// Guard authenticates every request it wraps: it resolves the identity,
// provisions the local user and stores both on the request context.
// Permission checks happen per route in rbac.PermissionMiddleware.
type Guard struct {
	resolver    IdentityResolver
	provisioner Provisioner
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewGuard creates a new request guard
func NewGuard(resolver IdentityResolver, provisioner Provisioner, logger *observability.Logger, metrics *observability.Metrics) *Guard {
	return &Guard{
		resolver:    resolver,
		provisioner: provisioner,
		logger:      logger,
		metrics:     metrics,
	}
}

// Handler wraps an HTTP handler with authentication
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := g.resolver.ResolveIdentity(r)
		if err != nil && !errors.Is(err, sso.ErrNoIdentity) {
			// the provider could not be asked, which says nothing about the caller
			appErr := httputil.WriteAppError(w, err)
			g.log(r).WithError(err).
				WithField("kind", appErr.Kind.String()).
				Error("Identity resolution failed")
			return
		}
		if err != nil || identity == nil {
			g.metrics.ObserveGuardDecision("unauthenticated", "")
			if err != nil {
				g.log(r).WithError(err).Debug("Identity rejected")
			}
			httputil.WriteUnauthorized(w, "Unauthorized")
			return
		}

		user, err := g.provisioner.Provision(r, identity)
		if err != nil {
			appErr := httputil.WriteAppError(w, err)
			g.log(r).WithError(err).
				WithField("external_id", identity.ExternalID).
				WithField("kind", appErr.Kind.String()).
				Error("Failed to provision user")
			return
		}

		ctx := auth.WithAuthContext(r.Context(), &auth.AuthContext{
			Identity: identity,
			User:     user,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) log(r *http.Request) *observability.Logger {
	if g.logger != nil {
		return g.logger
	}
	return observability.FromContext(r.Context())
}
