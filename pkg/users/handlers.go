package users

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/activity"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

// FileJanitor deletes a user through deleteOwner and then removes the
// stored blobs of the files the user owned.
type FileJanitor interface {
	PurgeOwner(ctx context.Context, ownerID string, deleteOwner func(context.Context) error) error
}

// Handlers provides HTTP handlers for user administration
type Handlers struct {
	users    *Store
	roles    *rbac.Store
	perms    *rbac.PermissionMiddleware
	recorder activity.Recorder
	janitor  FileJanitor
}

// NewHandlers creates new user handlers. janitor may be nil.
func NewHandlers(users *Store, roles *rbac.Store, perms *rbac.PermissionMiddleware, recorder activity.Recorder, janitor FileJanitor) *Handlers {
	return &Handlers{
		users:    users,
		roles:    roles,
		perms:    perms,
		recorder: recorder,
		janitor:  janitor,
	}
}

// RegisterRoutes registers user routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", h.me).Methods("GET")
	router.Handle("/users", h.perms.Require(rbac.PermUsersRead, h.listUsers)).Methods("GET")
	router.Handle("/users", h.perms.Require(rbac.PermUsersCreate, h.createUser)).Methods("POST")
	router.Handle("/users/{id}", h.perms.Require(rbac.PermUsersUpdate, h.updateUser)).Methods("PATCH")
	router.Handle("/users/{id}", h.perms.Require(rbac.PermUsersDelete, h.deleteUser)).Methods("DELETE")
}

// me handles GET /users/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)
	if caller == nil || caller.User == nil {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}

	permissions := h.perms.Permissions(caller.RoleName())
	if permissions == nil {
		permissions = []rbac.Permission{}
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user":        caller.User,
		"permissions": permissions,
	})
}

// listUsers handles GET /users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.users.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{"users": summaries})
}

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	RoleID    string `json:"roleId"`
}

// createUser handles POST /users. The account stays pending until its
// owner signs in with the same email.
func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	var req createUserRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := httputil.RequireNonEmpty(map[string]string{
		"email":     req.Email,
		"firstName": req.FirstName,
		"lastName":  req.LastName,
		"roleId":    req.RoleID,
	}, "email", "firstName", "lastName", "roleId"); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	role, err := h.roles.GetRole(r.Context(), req.RoleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	user := &auth.User{
		ExternalID: PendingPrefix + uuid.NewString(),
		Email:      strings.TrimSpace(req.Email),
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		RoleID:     role.ID,
		Role:       auth.UserRole{ID: role.ID, Name: role.Name, Description: role.Description},
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), activity.ActionUserCreate, map[string]interface{}{
		"newUserId":    user.ID,
		"newUserEmail": user.Email,
		"role":         role.Name,
	})

	httputil.WriteCreated(w, map[string]interface{}{
		"success": true,
		"user":    user,
	})
}

type updateUserRequest struct {
	RoleID string `json:"roleId"`
}

// updateUser handles PATCH /users/{id}. Only SuperAdmin and Admin may
// reassign roles.
func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)
	if !rbac.IsAdmin(caller.RoleName()) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}
	id := mux.Vars(r)["id"]

	var req updateUserRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := httputil.RequireNonEmpty(map[string]string{"roleId": req.RoleID}, "roleId"); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	target, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	role, err := h.roles.GetRole(r.Context(), req.RoleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.users.UpdateRole(r.Context(), id, role.ID); err != nil {
		h.writeError(w, r, err)
		return
	}

	summary, err := h.users.GetSummary(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), activity.ActionUserUpdate, map[string]interface{}{
		"targetUserId": id,
		"email":        target.Email,
		"previousRole": target.Role.Name,
		"newRole":      role.Name,
	})

	httputil.WriteSuccess(w, map[string]interface{}{"user": summary})
}

// deleteUser handles DELETE /users/{id}. Only SuperAdmin may delete users
// and nobody may delete themselves.
func (h *Handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)
	if !rbac.IsSuperAdmin(caller.RoleName()) {
		httputil.WriteForbidden(w, "Insufficient permissions")
		return
	}
	id := mux.Vars(r)["id"]

	if id == caller.UserID() {
		httputil.WriteBadRequest(w, "Cannot delete yourself")
		return
	}

	target, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	deleteUser := func(ctx context.Context) error { return h.users.Delete(ctx, id) }
	if h.janitor != nil {
		err = h.janitor.PurgeOwner(r.Context(), id, deleteUser)
	} else {
		err = deleteUser(r.Context())
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), activity.ActionUserDelete, map[string]interface{}{
		"deletedUserId": id,
		"email":         target.Email,
	})

	httputil.WriteSuccess(w, map[string]string{"message": "User deleted successfully"})
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		err = httputil.NotFound("User not found")
	case errors.Is(err, rbac.ErrRoleNotFound):
		err = httputil.NotFound("Role not found")
	case errors.Is(err, ErrUserExists):
		err = httputil.InvalidInput("User already exists")
	}

	if appErr := httputil.WriteAppError(w, err); appErr.Kind == httputil.KindInternal {
		observability.FromContext(r.Context()).WithError(err).Error("User request failed")
	}
}
