package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// RecentWindow is how far back recentActivity counts
const RecentWindow = 24 * time.Hour

// UserCounter counts local users
type UserCounter interface {
	Count(ctx context.Context) (int, error)
}

// FileCounter counts file records, optionally for one owner
type FileCounter interface {
	Count(ctx context.Context, ownerID string) (int, error)
}

// RoleCounter counts roles
type RoleCounter interface {
	CountRoles(ctx context.Context) (int, error)
}

// ActivityCounter counts activity entries since a point in time
type ActivityCounter interface {
	CountSince(ctx context.Context, since time.Time, ownerID string) (int, error)
}

// Stats is the dashboard summary
type Stats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalFiles     int `json:"totalFiles"`
	ActiveRoles    int `json:"activeRoles"`
	RecentActivity int `json:"recentActivity"`
}

// Handlers serves dashboard statistics
type Handlers struct {
	users    UserCounter
	files    FileCounter
	roles    RoleCounter
	activity ActivityCounter
	perms    *rbac.PermissionMiddleware
	now      func() time.Time
}

// NewHandlers creates dashboard handlers
func NewHandlers(users UserCounter, files FileCounter, roles RoleCounter, activity ActivityCounter, perms *rbac.PermissionMiddleware) *Handlers {
	return &Handlers{
		users:    users,
		files:    files,
		roles:    roles,
		activity: activity,
		perms:    perms,
		now:      time.Now,
	}
}

// RegisterRoutes registers dashboard routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/dashboard/stats", h.perms.Require(rbac.PermDashboardRead, h.stats)).Methods("GET")
}

// Collect gathers the statistics visible to caller. Non-admins see
// themselves as the only user and only their own files and activity.
func (h *Handlers) Collect(ctx context.Context, caller *auth.AuthContext) (*Stats, error) {
	ownerID := rbac.OwnerScope(caller)
	since := h.now().Add(-RecentWindow)

	ctx, span := observability.StartSpan(ctx, "dashboard.Collect")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	logger := observability.FromContext(ctx)
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	count := func(where string, dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			return observability.SafeCall(logger, where, func() error {
				n, err := fn(gctx)
				*dst = n
				return err
			})
		})
	}

	if ownerID == "" {
		count("dashboard.users", &stats.TotalUsers, h.users.Count)
	} else {
		stats.TotalUsers = 1
	}
	count("dashboard.files", &stats.TotalFiles, func(ctx context.Context) (int, error) {
		return h.files.Count(ctx, ownerID)
	})
	count("dashboard.roles", &stats.ActiveRoles, h.roles.CountRoles)
	count("dashboard.activity", &stats.RecentActivity, func(ctx context.Context) (int, error) {
		return h.activity.CountSince(ctx, since, ownerID)
	})

	if err = g.Wait(); err != nil {
		return nil, err
	}
	return &stats, nil
}

// stats handles GET /dashboard/stats
func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Collect(r.Context(), auth.GetAuthContext(r))
	if err != nil {
		observability.FromContext(r.Context()).WithError(err).Error("Failed to collect dashboard stats")
		httputil.WriteAppError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"stats": stats})
}
