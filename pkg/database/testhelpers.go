package database

import (
	"context"
	"database/sql"
	"io"
	"os"
	"testing"

	"github.com/platinummonkey/warden/pkg/observability"
)

// NewTestDB returns a migrated in-memory SQLite database that is closed
// when the test ends.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	cfg := DefaultConfig()
	cfg.URL = "file::memory:"

	db, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(context.Background(), db, observability.NewLogger(observability.ErrorLevel, io.Discard)); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	return db
}

// SkipIfNoPostgres skips the test if TEST_POSTGRES_URL is not set and
// returns its value otherwise.
func SkipIfNoPostgres(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_URL")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_URL environment variable not set (database not available)")
	}

	return dbURL
}
