package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the ordered schema migrations. The DDL sticks to
// types and syntax shared by PostgreSQL and SQLite.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles and users tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id TEXT PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					permissions TEXT NOT NULL DEFAULT '[]',
					is_built_in BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE TABLE IF NOT EXISTS users (
					id TEXT PRIMARY KEY,
					external_id TEXT NOT NULL UNIQUE,
					email TEXT NOT NULL,
					first_name TEXT NOT NULL DEFAULT '',
					last_name TEXT NOT NULL DEFAULT '',
					avatar_url TEXT,
					role_id TEXT NOT NULL REFERENCES roles(id),
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
				CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
			`,
		},
		{
			Version:     2,
			Description: "Create files table",
			SQL: `
				CREATE TABLE IF NOT EXISTS files (
					id TEXT PRIMARY KEY,
					stored_name TEXT NOT NULL UNIQUE,
					original_name TEXT NOT NULL,
					size_bytes BIGINT NOT NULL,
					mime_type TEXT NOT NULL,
					storage_path TEXT NOT NULL,
					is_remote BOOLEAN NOT NULL DEFAULT FALSE,
					remote_id TEXT,
					remote_url TEXT,
					is_scanned BOOLEAN NOT NULL DEFAULT FALSE,
					is_safe BOOLEAN NOT NULL DEFAULT FALSE,
					scan_metadata TEXT NOT NULL DEFAULT '{}',
					owner_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_files_owner ON files(owner_user_id);
				CREATE INDEX IF NOT EXISTS idx_files_created_at ON files(created_at);
			`,
		},
		{
			Version:     3,
			Description: "Create activity log table",
			SQL: `
				-- user_id has no foreign key: entries outlive the user who made them
				CREATE TABLE IF NOT EXISTS activity_logs (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					action TEXT NOT NULL,
					details TEXT NOT NULL DEFAULT '{}',
					ip_address TEXT NOT NULL,
					user_agent TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_activity_logs_user ON activity_logs(user_id);
				CREATE INDEX IF NOT EXISTS idx_activity_logs_created_at ON activity_logs(created_at);
			`,
		},
	}
}

// RunMigrations applies every pending migration, each in its own transaction
func RunMigrations(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		log := logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
		log.Info("Running migration")

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		log.Info("Migration completed")
	}

	return nil
}
