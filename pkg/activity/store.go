package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/database"
)

// Store persists activity entries
type Store struct {
	db *sql.DB
}

// NewStore creates a new activity store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert appends an entry. ID and CreatedAt are assigned when empty.
func (s *Store) Insert(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = database.Now()
	}

	details := entry.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO activity_logs (id, user_id, action, details, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.UserID, entry.Action, string(detailsJSON), entry.IPAddress, entry.UserAgent, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}

	return nil
}

// whereClause builds the shared WHERE clause for List and its count
func whereClause(f Filter, now time.Time) (string, []interface{}) {
	conditions := []string{"1=1"}
	args := []interface{}{}
	argCount := 1

	// ownership first so no other filter can widen it
	if f.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", argCount))
		args = append(args, f.OwnerID)
		argCount++
	}

	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			`(LOWER(a.action) LIKE $%[1]d ESCAPE '\' OR LOWER(u.first_name) LIKE $%[1]d ESCAPE '\' OR LOWER(u.last_name) LIKE $%[1]d ESCAPE '\' OR LOWER(u.email) LIKE $%[1]d ESCAPE '\')`,
			argCount))
		args = append(args, database.ContainsPattern(f.Search))
		argCount++
	}

	if fragment, _ := f.ActionType.LabelFragment(); fragment != "" {
		conditions = append(conditions, fmt.Sprintf(`LOWER(a.action) LIKE $%d ESCAPE '\'`, argCount))
		args = append(args, database.ContainsPattern(fragment))
		argCount++
	}

	from, to := ResolveTimeRange(f, now)
	if from != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at >= $%d", argCount))
		args = append(args, from.UTC())
		argCount++
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("a.created_at < $%d", argCount))
		args = append(args, to.UTC())
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// List returns one page of entries, newest first, with the total number of
// matching entries. Time ranges are resolved against now.
func (s *Store) List(ctx context.Context, f Filter, now time.Time) ([]Entry, int, error) {
	where, args := whereClause(f, now)

	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM activity_logs a LEFT JOIN users u ON u.id = a.user_id`+where, args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count activity: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `
		SELECT a.id, a.user_id, a.action, a.details, a.ip_address, a.user_agent, a.created_at,
			u.first_name, u.last_name, u.email, u.avatar_url
		FROM activity_logs a
		LEFT JOIN users u ON u.id = a.user_id` + where + fmt.Sprintf(`
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var entry Entry
		var detailsJSON string
		var firstName, lastName, email, avatar sql.NullString

		if err := rows.Scan(
			&entry.ID, &entry.UserID, &entry.Action, &detailsJSON,
			&entry.IPAddress, &entry.UserAgent, &entry.CreatedAt,
			&firstName, &lastName, &email, &avatar,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}

		if err := json.Unmarshal([]byte(detailsJSON), &entry.Details); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal details: %w", err)
		}
		// no actor once the user has been deleted
		if email.Valid {
			entry.User = &Actor{
				FirstName: firstName.String,
				LastName:  lastName.String,
				Email:     email.String,
			}
			if avatar.Valid {
				entry.User.AvatarURL = &avatar.String
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating activity: %w", err)
	}

	return entries, total, nil
}

// CountSince counts entries created at or after since, optionally limited
// to one owner.
func (s *Store) CountSince(ctx context.Context, since time.Time, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM activity_logs WHERE created_at >= $1`
	args := []interface{}{since.UTC()}
	if ownerID != "" {
		query += ` AND user_id = $2`
		args = append(args, ownerID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activity: %w", err)
	}
	return count, nil
}
