package rbac

import (
	"strings"
	"time"
)

// Resource represents a resource type in the system
type Resource string

const (
	ResourceUsers     Resource = "users"
	ResourceRoles     Resource = "roles"
	ResourceFiles     Resource = "files"
	ResourceDashboard Resource = "dashboard"
	ResourceActivity  Resource = "activity"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionUpload Action = "upload"
)

// Permission is a "<resource>.<action>" token from the closed catalog
type Permission string

// NewPermission composes a permission token from a resource and an action
func NewPermission(resource Resource, action Action) Permission {
	return Permission(string(resource) + "." + string(action))
}

// Resource returns the resource half of the token
func (p Permission) Resource() Resource {
	res, _, _ := strings.Cut(string(p), ".")
	return Resource(res)
}

// Action returns the action half of the token
func (p Permission) Action() Action {
	_, act, _ := strings.Cut(string(p), ".")
	return Action(act)
}

// The permission catalog.
const (
	PermUsersRead     Permission = "users.read"
	PermUsersCreate   Permission = "users.create"
	PermUsersUpdate   Permission = "users.update"
	PermUsersDelete   Permission = "users.delete"
	PermRolesRead     Permission = "roles.read"
	PermRolesCreate   Permission = "roles.create"
	PermRolesUpdate   Permission = "roles.update"
	PermRolesDelete   Permission = "roles.delete"
	PermFilesUpload   Permission = "files.upload"
	PermFilesRead     Permission = "files.read"
	PermFilesDelete   Permission = "files.delete"
	PermDashboardRead Permission = "dashboard.read"
	PermActivityRead  Permission = "activity.read"
)

var catalog = []Permission{
	PermUsersRead,
	PermUsersCreate,
	PermUsersUpdate,
	PermUsersDelete,
	PermRolesRead,
	PermRolesCreate,
	PermRolesUpdate,
	PermRolesDelete,
	PermFilesUpload,
	PermFilesRead,
	PermFilesDelete,
	PermDashboardRead,
	PermActivityRead,
}

var catalogSet = func() map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(catalog))
	for _, p := range catalog {
		set[p] = struct{}{}
	}
	return set
}()

// Catalog returns every defined permission in declaration order
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

// IsCatalogued reports whether p is a defined permission
func IsCatalogued(p Permission) bool {
	_, ok := catalogSet[p]
	return ok
}

// RoleName identifies one of the built-in roles
type RoleName string

const (
	RoleSuperAdmin RoleName = "SuperAdmin"
	RoleAdmin      RoleName = "Admin"
	RoleManager    RoleName = "Manager"
	RoleUser       RoleName = "User"
	RoleGuest      RoleName = "Guest"
)

// DefaultRoleName is the role bound to users provisioned on first sign-in
const DefaultRoleName = RoleUser

// RoleDefinition is one row of the role table
type RoleDefinition struct {
	ID          string       `json:"id" yaml:"id"`
	Name        RoleName     `json:"name" yaml:"name"`
	Description string       `json:"description" yaml:"description"`
	Permissions []Permission `json:"permissions" yaml:"permissions"`
}

// builtInRoles is the authoritative seed data.
func builtInRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			ID:          "super-admin",
			Name:        RoleSuperAdmin,
			Description: "Full system access with all permissions",
			Permissions: Catalog(),
		},
		{
			ID:          "admin",
			Name:        RoleAdmin,
			Description: "Administrative access with user and file management",
			Permissions: []Permission{
				PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
				PermRolesRead, PermRolesUpdate,
				PermFilesUpload, PermFilesRead, PermFilesDelete,
				PermDashboardRead, PermActivityRead,
			},
		},
		{
			ID:          "manager",
			Name:        RoleManager,
			Description: "Management access with limited administrative functions",
			Permissions: []Permission{
				PermUsersRead, PermUsersUpdate,
				PermFilesUpload, PermFilesRead,
				PermDashboardRead, PermActivityRead,
			},
		},
		{
			ID:          "user",
			Name:        RoleUser,
			Description: "Standard user with basic file operations",
			Permissions: []Permission{PermFilesUpload, PermFilesRead, PermDashboardRead},
		},
		{
			ID:          "guest",
			Name:        RoleGuest,
			Description: "Limited access for viewing only",
			Permissions: []Permission{PermDashboardRead},
		},
	}
}

// Role is a persisted role row
type Role struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	IsBuiltIn   bool         `json:"isBuiltIn"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// RoleSummary is a role plus the number of users bound to it
type RoleSummary struct {
	Role
	UserCount int `json:"userCount"`
}
