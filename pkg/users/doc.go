// Package users manages local user accounts.
//
// A user is created the first time an identity reaches the request guard
// (Provisioner.GetOrCreate) and is bound to the "User" role. When an admin
// pre-created an account for the same email and the identity provider
// verified that email, the pending row is claimed instead. Concurrent first requests race on the unique external id; the
// loser re-reads the winner's row, so one identity always maps to one user.
//
// Admin endpoints:
//
//	GET    /api/users/me    the caller and their permissions
//	GET    /api/users       users.read
//	POST   /api/users       users.create
//	PATCH  /api/users/{id}  users.update, caller must be SuperAdmin or Admin
//	DELETE /api/users/{id}  users.delete, caller must be SuperAdmin
package users
