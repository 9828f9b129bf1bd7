package rbac

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
)

// ActivityRecorder records a best-effort activity entry for a request
type ActivityRecorder interface {
	RecordRequest(r *http.Request, userID, action string, details map[string]interface{})
}

// Activity labels written by role handlers
const (
	ActionRoleCreated = "created a role"
	ActionRoleUpdated = "updated a role"
	ActionRoleDeleted = "deleted a role"
)

// Handlers provides HTTP handlers for role administration
type Handlers struct {
	store    *Store
	perms    *PermissionMiddleware
	recorder ActivityRecorder
}

// NewHandlers creates new role handlers
func NewHandlers(store *Store, perms *PermissionMiddleware, recorder ActivityRecorder) *Handlers {
	return &Handlers{
		store:    store,
		perms:    perms,
		recorder: recorder,
	}
}

// RegisterRoutes registers role routes on a router that already runs the
// request guard.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/roles", h.perms.Require(PermRolesRead, h.ListRoles)).Methods("GET")
	router.Handle("/roles", h.perms.Require(PermRolesCreate, h.CreateRole)).Methods("POST")
	router.Handle("/roles/{id}", h.perms.Require(PermRolesUpdate, h.UpdateRole)).Methods("PATCH")
	router.Handle("/roles/{id}", h.perms.Require(PermRolesDelete, h.DeleteRole)).Methods("DELETE")
}

// ListRoles lists every role with its user count
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if roles == nil {
		roles = []RoleSummary{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{"roles": roles})
}

type createRoleRequest struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
}

// CreateRole creates a new custom role
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	var req createRoleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if strings.TrimSpace(req.Name) == "" || req.Permissions == nil {
		httputil.WriteBadRequest(w, "Missing required fields: name, permissions")
		return
	}
	if err := ValidatePermissions(req.Permissions); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	role, err := h.store.CreateRole(r.Context(), req.Name, req.Description, req.Permissions)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), ActionRoleCreated, map[string]interface{}{
		"roleId":      role.ID,
		"roleName":    role.Name,
		"permissions": role.Permissions,
	})

	httputil.WriteCreated(w, map[string]interface{}{
		"success": true,
		"role":    role,
	})
}

type updateRoleRequest struct {
	Description *string       `json:"description"`
	Permissions *[]Permission `json:"permissions"`
}

// UpdateRole edits a role's description or permission set. The permissions
// of built-in roles come from the role table and cannot be edited here.
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)
	id := mux.Vars(r)["id"]

	var req updateRoleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if req.Description == nil && req.Permissions == nil {
		httputil.WriteBadRequest(w, "Nothing to update")
		return
	}
	if req.Permissions != nil {
		if err := ValidatePermissions(*req.Permissions); err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}

		existing, err := h.store.GetRole(r.Context(), id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if existing.IsBuiltIn {
			httputil.WriteForbidden(w, "Cannot modify built-in role permissions")
			return
		}
	}

	role, err := h.store.UpdateRole(r.Context(), id, RoleUpdate{
		Description: req.Description,
		Permissions: req.Permissions,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), ActionRoleUpdated, map[string]interface{}{
		"roleId":      role.ID,
		"roleName":    role.Name,
		"permissions": role.Permissions,
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"success": true,
		"role":    role,
	})
}

// DeleteRole deletes an unreferenced role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)
	id := mux.Vars(r)["id"]

	role, err := h.store.DeleteRole(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), ActionRoleDeleted, map[string]interface{}{
		"roleId":   role.ID,
		"roleName": role.Name,
	})

	httputil.WriteSuccess(w, map[string]string{"message": "Role deleted successfully"})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrRoleNotFound):
		err = httputil.NotFound("Role not found")
	case errors.Is(err, ErrRoleNameTaken):
		err = httputil.InvalidInput("Role name already exists")
	case errors.Is(err, ErrRoleInUse):
		err = httputil.InvalidInput("Cannot delete role that is in use")
	case errors.Is(err, ErrRoleProtected):
		err = httputil.Forbidden("Cannot delete the SuperAdmin role")
	}

	if appErr := httputil.WriteAppError(w, err); appErr.Kind == httputil.KindInternal {
		observability.FromContext(r.Context()).WithError(err).Error("Role request failed")
	}
}
