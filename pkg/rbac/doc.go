// Package rbac provides role-based access control for Warden.
//
// # Overview
//
// Authorization is a static table that maps five role names to subsets of a
// closed catalog of thirteen permissions. Every permission is a
// "<resource>.<action>" token:
//
//	users.read    users.create  users.update  users.delete
//	roles.read    roles.create  roles.update  roles.delete
//	files.upload  files.read    files.delete
//	dashboard.read              activity.read
//
// The built-in roles are SuperAdmin (every permission), Admin, Manager, User
// and Guest. SuperAdmin's set always contains every other role's set;
// NewTable refuses a table that breaks this.
//
// # Checking permissions
//
//	if rbac.HasPermission(caller.RoleName(), rbac.PermFilesUpload) { ... }
//	if rbac.CanAccess(caller.RoleName(), rbac.ResourceFiles, rbac.ActionDelete) { ... }
//
// An unknown role name has no permissions. Lookups never fail.
//
// # HTTP integration
//
// PermissionMiddleware runs after the request guard has attached an
// auth.AuthContext and answers 401 when none is present, 403 when the role
// lacks the permission:
//
//	perms := rbac.NewPermissionMiddleware(rbac.DefaultTable(), metrics)
//	router.Handle("/files", perms.Require(rbac.PermFilesRead, h.ListFiles))
//
// Record-level rules sit on top of the permission bits. OwnerScope
// restricts list queries of non-admin callers to their own records and
// CanModify allows mutations by the owner or an admin.
//
// # Persistence
//
// Roles are persisted so users can reference them. Store.SeedRoles upserts
// the table by role id on every start. Custom roles can be created through
// the API; authorization still consults the table only, so a user bound to
// a custom role holds no permissions.
//
// # Role table overlay
//
// LoadTable reads a YAML file that may change descriptions and permission
// sets of existing roles:
//
//	roles:
//	  - name: Manager
//	    permissions: [users.read, files.read, dashboard.read, activity.read]
package rbac
