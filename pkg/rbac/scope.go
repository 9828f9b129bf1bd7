package rbac

import (
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
)

// OwnerScope returns the owner id a list query must be restricted to, or ""
// when the caller may see every user's records.
func OwnerScope(caller *auth.AuthContext) string {
	if caller == nil || caller.User == nil {
		return ""
	}
	if IsAdmin(caller.RoleName()) {
		return ""
	}
	return caller.User.ID
}

// CanModify reports whether the caller may mutate a record owned by ownerID
func CanModify(caller *auth.AuthContext, ownerID string) bool {
	if caller == nil || caller.User == nil {
		return false
	}
	return caller.User.ID == ownerID || IsAdmin(caller.RoleName())
}

// RequireOwnerOrAdmin returns a Forbidden error unless CanModify holds
func RequireOwnerOrAdmin(caller *auth.AuthContext, ownerID string) error {
	if !CanModify(caller, ownerID) {
		return httputil.Forbidden("Insufficient permissions")
	}
	return nil
}
