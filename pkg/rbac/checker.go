package rbac

import (
	"fmt"
	"strings"
)

// Checker answers authorization questions for a role name
type Checker interface {
	HasPermission(roleName string, p Permission) bool
	CanAccess(roleName string, resource Resource, action Action) bool
	Permissions(roleName string) []Permission
}

var _ Checker = (*Table)(nil)

// HasPermission checks p against the built-in table
func HasPermission(roleName string, p Permission) bool {
	return defaultTable.HasPermission(roleName, p)
}

// CanAccess checks resource.action against the built-in table. A token
// outside the catalog is never granted.
func CanAccess(roleName string, resource Resource, action Action) bool {
	return defaultTable.CanAccess(roleName, resource, action)
}

// IsAdmin reports whether the role sees every user's records
func IsAdmin(roleName string) bool {
	return roleName == string(RoleSuperAdmin) || roleName == string(RoleAdmin)
}

// IsSuperAdmin reports whether the role is SuperAdmin
func IsSuperAdmin(roleName string) bool {
	return roleName == string(RoleSuperAdmin)
}

// ValidatePermissions rejects any token outside the catalog
func ValidatePermissions(perms []Permission) error {
	var unknown []string
	for _, p := range perms {
		if !IsCatalogued(p) {
			unknown = append(unknown, string(p))
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown permissions: %s", strings.Join(unknown, ", "))
	}
	return nil
}
