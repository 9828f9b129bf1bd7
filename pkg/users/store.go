package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
)

var (
	// ErrUserNotFound is returned when no user matches the lookup
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the external id is already bound
	ErrUserExists = errors.New("user already exists")
)

// PendingPrefix marks the external id of a user created by an admin who
// has not signed in yet.
const PendingPrefix = "pending:"

const userColumns = `u.id, u.external_id, u.email, u.first_name, u.last_name, u.avatar_url,
	u.role_id, r.name, r.description, u.created_at, u.updated_at`

const userFrom = ` FROM users u JOIN roles r ON r.id = u.role_id`

// Summary is a user with counts of what they own
type Summary struct {
	auth.User
	FileCount     int `json:"fileCount"`
	ActivityCount int `json:"activityCount"`
}

// Store handles user persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetByID retrieves a user and its role
func (s *Store) GetByID(ctx context.Context, id string) (*auth.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = $1`, id)
}

// GetByExternalID retrieves the user bound to an identity
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*auth.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+userFrom+` WHERE u.external_id = $1`, externalID)
}

func (s *Store) getOne(ctx context.Context, query string, arg string) (*auth.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// Create inserts a user. ID and timestamps are assigned here; a clash on
// the external id yields ErrUserExists.
func (s *Store) Create(ctx context.Context, user *auth.User) error {
	user.ID = uuid.NewString()
	user.CreatedAt = database.Now()
	user.UpdatedAt = user.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, external_id, email, first_name, last_name, avatar_url, role_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.ExternalID, user.Email, user.FirstName, user.LastName, nullString(user.AvatarURL),
		user.RoleID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// ClaimPending binds the oldest pending user with the identity's email to
// the identity. It returns ErrUserNotFound when there is nothing to claim
// or another request claimed it first.
func (s *Store) ClaimPending(ctx context.Context, identity *auth.Identity) (*auth.User, error) {
	if strings.TrimSpace(identity.Email) == "" {
		return nil, ErrUserNotFound
	}

	var id, pendingID string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id FROM users
		WHERE external_id LIKE $1 AND LOWER(email) = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, PendingPrefix+"%", strings.ToLower(identity.Email)).Scan(&id, &pendingID)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending user: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET external_id = $1,
			first_name = CASE WHEN CAST($2 AS TEXT) = '' THEN first_name ELSE $2 END,
			last_name = CASE WHEN CAST($3 AS TEXT) = '' THEN last_name ELSE $3 END,
			avatar_url = COALESCE(CAST($4 AS TEXT), avatar_url),
			updated_at = $5
		WHERE id = $6 AND external_id = $7
	`, identity.ExternalID, identity.FirstName, identity.LastName, optionalString(identity.AvatarURL),
		database.Now(), id, pendingID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to claim pending user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetByID(ctx, id)
}

const summaryCounts = `,
	(SELECT COUNT(*) FROM files f WHERE f.owner_user_id = u.id),
	(SELECT COUNT(*) FROM activity_logs a WHERE a.user_id = u.id)`

// List returns every user with file and activity counts, newest first
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+summaryCounts+userFrom+` ORDER BY u.created_at DESC, u.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		summaries = append(summaries, *summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return summaries, nil
}

// GetSummary retrieves one user with counts
func (s *Store) GetSummary(ctx context.Context, id string) (*Summary, error) {
	summary, err := scanSummary(s.db.QueryRowContext(ctx, `SELECT `+userColumns+summaryCounts+userFrom+` WHERE u.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return summary, nil
}

// UpdateRole rebinds a user to another role
func (s *Store) UpdateRole(ctx context.Context, id, roleID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET role_id = $1, updated_at = $2 WHERE id = $3`,
		roleID, database.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user. File rows go with it; activity entries are kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the number of users
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func userFields(user *auth.User, avatar *sql.NullString) []interface{} {
	return []interface{}{
		&user.ID, &user.ExternalID, &user.Email, &user.FirstName, &user.LastName, avatar,
		&user.RoleID, &user.Role.Name, &user.Role.Description, &user.CreatedAt, &user.UpdatedAt,
	}
}

func scanUser(row scanner) (*auth.User, error) {
	var user auth.User
	var avatar sql.NullString
	if err := row.Scan(userFields(&user, &avatar)...); err != nil {
		return nil, err
	}
	finishUser(&user, avatar)
	return &user, nil
}

func scanSummary(row scanner) (*Summary, error) {
	var summary Summary
	var avatar sql.NullString
	dest := append(userFields(&summary.User, &avatar), &summary.FileCount, &summary.ActivityCount)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	finishUser(&summary.User, avatar)
	return &summary, nil
}

func finishUser(user *auth.User, avatar sql.NullString) {
	user.Role.ID = user.RoleID
	if avatar.Valid {
		user.AvatarURL = &avatar.String
	}
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func optionalString(s string) sql.NullString {
	return nullString(&s)
}
