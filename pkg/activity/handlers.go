package activity

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// Handlers provides HTTP handlers for the activity log
type Handlers struct {
	store *Store
	perms *rbac.PermissionMiddleware
	now   func() time.Time
}

// NewHandlers creates new activity handlers
func NewHandlers(store *Store, perms *rbac.PermissionMiddleware) *Handlers {
	return &Handlers{
		store: store,
		perms: perms,
		now:   time.Now,
	}
}

// RegisterRoutes registers activity routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/activity", h.perms.Require(rbac.PermActivityRead, h.listActivity)).Methods("GET")
}

// listActivity handles GET /activity
func (h *Handlers) listActivity(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	filter, requestedOwner, err := ParseFilter(r.URL.Query())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	filter.OwnerID = rbac.OwnerScope(caller)
	if filter.OwnerID == "" {
		filter.OwnerID = requestedOwner
	}

	entries, total, err := h.store.List(r.Context(), filter, h.now())
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to list activity")
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"activities": entries,
		"pagination": httputil.NewPagination(total, filter.Limit, filter.Offset),
	})
}
