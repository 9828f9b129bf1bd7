package files

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/activity"
	"github.com/platinummonkey/warden/pkg/database"
)

// ErrFileNotFound is returned when no file record matches the lookup
var ErrFileNotFound = errors.New("file not found")

// Record is the metadata row of an uploaded file
type Record struct {
	ID           string          `json:"id"`
	StoredName   string          `json:"storedName"`
	OriginalName string          `json:"originalName"`
	SizeBytes    int64           `json:"sizeBytes"`
	MimeType     string          `json:"mimeType"`
	StoragePath  string          `json:"storagePath"`
	IsRemote     bool            `json:"isRemote"`
	RemoteID     string          `json:"remoteId,omitempty"`
	RemoteURL    string          `json:"remoteUrl,omitempty"`
	IsScanned    bool            `json:"isScanned"`
	IsSafe       bool            `json:"isSafe"`
	ScanMetadata *ScanResult     `json:"scanMetadata"`
	OwnerUserID  string          `json:"ownerUserId"`
	CreatedAt    time.Time       `json:"createdAt"`
	Owner        *activity.Actor `json:"user,omitempty"`
}

const recordColumns = `f.id, f.stored_name, f.original_name, f.size_bytes, f.mime_type, f.storage_path,
	f.is_remote, f.remote_id, f.remote_url, f.is_scanned, f.is_safe, f.scan_metadata,
	f.owner_user_id, f.created_at`

// Store handles file record persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new file record store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert persists a record. ID and CreatedAt are assigned when empty.
func (s *Store) Insert(ctx context.Context, record *Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = database.Now()
	}

	scan := record.ScanMetadata
	if scan == nil {
		scan = &ScanResult{SuspiciousPatterns: []string{}, Warnings: []string{}}
	}
	scanJSON, err := json.Marshal(scan)
	if err != nil {
		return fmt.Errorf("failed to marshal scan metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO files (id, stored_name, original_name, size_bytes, mime_type, storage_path,
			is_remote, remote_id, remote_url, is_scanned, is_safe, scan_metadata, owner_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		record.ID, record.StoredName, record.OriginalName, record.SizeBytes, record.MimeType, record.StoragePath,
		record.IsRemote, optionalString(record.RemoteID), optionalString(record.RemoteURL),
		record.IsScanned, record.IsSafe, string(scanJSON), record.OwnerUserID, record.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert file record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM files f WHERE f.id = $1`, id)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return record, nil
}

// GetByStoredName retrieves a record by its generated file name
func (s *Store) GetByStoredName(ctx context.Context, name string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM files f WHERE f.stored_name = $1`, name)
	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get file record: %w", err)
	}
	return record, nil
}

// List returns one page of records, newest first, with the uploader's name
// and the total number of matching records. An empty ownerID lists every
// owner's files.
func (s *Store) List(ctx context.Context, ownerID string, limit, offset int) ([]Record, int, error) {
	where := ""
	args := []interface{}{}
	if ownerID != "" {
		where = ` WHERE f.owner_user_id = $1`
		args = append(args, ownerID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files f`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count files: %w", err)
	}

	query := `
		SELECT ` + recordColumns + `, u.first_name, u.last_name, u.email
		FROM files f
		JOIN users u ON u.id = f.owner_user_id` + where + fmt.Sprintf(`
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var owner activity.Actor
		record, err := scanRecord(rows, &owner.FirstName, &owner.LastName, &owner.Email)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan file record: %w", err)
		}
		record.Owner = &owner
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating files: %w", err)
	}

	return records, total, nil
}

// ListByOwner returns every record of one owner
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM files f WHERE f.owner_user_id = $1`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner files: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

// Delete removes a record
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrFileNotFound
	}
	return nil
}

// Count returns the number of records, optionally for one owner
func (s *Store) Count(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM files`
	var args []interface{}
	if ownerID != "" {
		query += ` WHERE owner_user_id = $1`
		args = append(args, ownerID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return count, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord reads recordColumns followed by any extra destinations
func scanRecord(row scanner, extra ...interface{}) (*Record, error) {
	var record Record
	var remoteID, remoteURL sql.NullString
	var scanJSON string

	dest := []interface{}{
		&record.ID, &record.StoredName, &record.OriginalName, &record.SizeBytes, &record.MimeType, &record.StoragePath,
		&record.IsRemote, &remoteID, &remoteURL, &record.IsScanned, &record.IsSafe, &scanJSON,
		&record.OwnerUserID, &record.CreatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	record.RemoteID = remoteID.String
	record.RemoteURL = remoteURL.String
	if scanJSON != "" {
		var scan ScanResult
		if err := json.Unmarshal([]byte(scanJSON), &scan); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scan metadata: %w", err)
		}
		record.ScanMetadata = &scan
	}
	return &record, nil
}

func optionalString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
