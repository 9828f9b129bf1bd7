package rbac

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/database"
)

var (
	// ErrRoleNotFound is returned when no role matches the lookup
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleNameTaken is returned when a role name is already used
	ErrRoleNameTaken = errors.New("role name already exists")
	// ErrRoleInUse is returned when deleting a role that users still reference
	ErrRoleInUse = errors.New("role is in use")
	// ErrRoleProtected is returned when deleting the SuperAdmin role
	ErrRoleProtected = errors.New("role cannot be deleted")
)

const roleColumns = `r.id, r.name, r.description, r.permissions, r.is_built_in, r.created_at, r.updated_at`

// Store handles role persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SeedRoles upserts every role of the table by id, so edits to the table
// reach persisted rows without creating duplicates.
func (s *Store) SeedRoles(ctx context.Context, table *Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := database.Now()
	for _, def := range table.Roles() {
		permissionsJSON, err := json.Marshal(def.Permissions)
		if err != nil {
			return fmt.Errorf("failed to marshal permissions: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO roles (id, name, description, permissions, is_built_in, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $5)
			ON CONFLICT (id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				permissions = excluded.permissions,
				is_built_in = TRUE,
				updated_at = excluded.updated_at
		`, def.ID, string(def.Name), def.Description, string(permissionsJSON), now)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", def.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role seed: %w", err)
	}
	return nil
}

// CreateRole creates a custom role
func (s *Store) CreateRole(ctx context.Context, name, description string, permissions []Permission) (*Role, error) {
	if err := ValidatePermissions(permissions); err != nil {
		return nil, err
	}

	role := &Role{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: description,
		Permissions: NormalizePermissions(permissions),
		CreatedAt:   database.Now(),
	}
	role.UpdatedAt = role.CreatedAt

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (id, name, description, permissions, is_built_in, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6)
	`, role.ID, role.Name, role.Description, string(permissionsJSON), role.CreatedAt, role.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrRoleNameTaken
		}
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	return role, nil
}

// GetRole retrieves a role by ID
func (s *Store) GetRole(ctx context.Context, id string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.id = $1`, id)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleByName retrieves a role by name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.name = $1`, name)
	role, err := scanRole(row)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return role, nil
}

// ListRoles returns every role with the number of users bound to it
func (s *Store) ListRoles(ctx context.Context) ([]RoleSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roleColumns+`, COUNT(u.id)
		FROM roles r
		LEFT JOIN users u ON u.role_id = r.id
		GROUP BY r.id, r.name, r.description, r.permissions, r.is_built_in, r.created_at, r.updated_at
		ORDER BY r.created_at DESC, r.name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []RoleSummary
	for rows.Next() {
		var summary RoleSummary
		var permissionsJSON string
		if err := rows.Scan(
			&summary.ID,
			&summary.Name,
			&summary.Description,
			&permissionsJSON,
			&summary.IsBuiltIn,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.UserCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if err := json.Unmarshal([]byte(permissionsJSON), &summary.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
		roles = append(roles, summary)
	}

	return roles, rows.Err()
}

// CountRoles returns the number of persisted roles
func (s *Store) CountRoles(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM roles`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// RoleUpdate carries the mutable fields of a role; nil means unchanged
type RoleUpdate struct {
	Description *string
	Permissions *[]Permission
}

// UpdateRole edits a role's description and permission set
func (s *Store) UpdateRole(ctx context.Context, id string, update RoleUpdate) (*Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Description != nil {
		role.Description = *update.Description
	}
	if update.Permissions != nil {
		if err := ValidatePermissions(*update.Permissions); err != nil {
			return nil, err
		}
		role.Permissions = NormalizePermissions(*update.Permissions)
	}
	role.UpdatedAt = database.Now()

	permissionsJSON, err := json.Marshal(role.Permissions)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal permissions: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE roles SET description = $1, permissions = $2, updated_at = $3
		WHERE id = $4
	`, role.Description, string(permissionsJSON), role.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrRoleNotFound
	}

	return role, nil
}

// DeleteRole removes a role. SuperAdmin is never deletable and a role still
// referenced by a user is left untouched.
func (s *Store) DeleteRole(ctx context.Context, id string) (*Role, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	role, err := scanRole(tx.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles r WHERE r.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if IsSuperAdmin(role.Name) {
		return nil, ErrRoleProtected
	}

	var users int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, id).Scan(&users); err != nil {
		return nil, fmt.Errorf("failed to count role users: %w", err)
	}
	if users > 0 {
		return nil, ErrRoleInUse
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrRoleInUse
		}
		return nil, fmt.Errorf("failed to delete role: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrRoleInUse
		}
		return nil, fmt.Errorf("failed to commit role delete: %w", err)
	}

	return role, nil
}

func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var permissionsJSON string

	err := scanner.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&permissionsJSON,
		&role.IsBuiltIn,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(permissionsJSON), &role.Permissions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
	}

	return &role, nil
}
