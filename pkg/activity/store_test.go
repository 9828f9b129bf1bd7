package activity

import (
	"bytes"
	"context"
	"database/sql"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db := database.NewTestDB(t)
	require.NoError(t, rbac.NewStore(db).SeedRoles(context.Background(), rbac.DefaultTable()))

	users := []struct{ id, first, last, email, role string }{
		{"alice", "Alice", "Anders", "alice@example.com", "user"},
		{"bob", "Bob", "Brown", "bob@example.com", "user"},
		{"root", "Ruth", "Admin", "root@example.com", "super-admin"},
	}
	now := database.Now()
	for _, u := range users {
		_, err := db.Exec(`
			INSERT INTO users (id, external_id, email, first_name, last_name, role_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		`, u.id, "ext-"+u.id, u.email, u.first, u.last, u.role, now)
		require.NoError(t, err)
	}
	return db
}

func insertEntry(t *testing.T, store *Store, userID, action string, at time.Time) {
	t.Helper()
	require.NoError(t, store.Insert(context.Background(), &Entry{
		UserID:    userID,
		Action:    action,
		Details:   map[string]interface{}{"n": 1},
		IPAddress: "10.0.0.1",
		UserAgent: "test",
		CreatedAt: at,
	}))
}

func TestStore_ListScopedAndFiltered(t *testing.T) {
	store := NewStore(setupDB(t))
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	insertEntry(t, store, "alice", ActionFileUpload, now.Add(-1*time.Hour))
	insertEntry(t, store, "alice", ActionFileDelete, now.Add(-20*time.Hour))
	insertEntry(t, store, "bob", ActionFileUpload, now.Add(-2*time.Hour))
	insertEntry(t, store, "root", ActionRoleCreate, now.Add(-30*time.Hour))

	entries, total, err := store.List(context.Background(), Filter{Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, entries, 4)
	assert.Equal(t, "alice", entries[0].UserID, "newest first")
	assert.Equal(t, "Alice", entries[0].User.FirstName)
	assert.Equal(t, float64(1), entries[0].Details["n"])

	// ownership scope
	entries, total, err = store.List(context.Background(), Filter{OwnerID: "alice", Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, e := range entries {
		assert.Equal(t, "alice", e.UserID)
	}

	// search across actor name, case-insensitive, cannot widen the scope
	entries, total, err = store.List(context.Background(), Filter{OwnerID: "alice", Search: "BROWN", Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, entries)

	entries, total, err = store.List(context.Background(), Filter{Search: "brown", Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "bob", entries[0].UserID)

	// action type
	_, total, err = store.List(context.Background(), Filter{ActionType: ActionTypeUpload, Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = store.List(context.Background(), Filter{ActionType: ActionTypeRoleCreate, Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	// named range
	_, total, err = store.List(context.Background(), Filter{TimeRange: TimeRangeToday, Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = store.List(context.Background(), Filter{TimeRange: TimeRangeYesterday, Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestStore_ListPagination(t *testing.T) {
	store := NewStore(setupDB(t))
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertEntry(t, store, "alice", ActionFileUpload, now.Add(-time.Duration(i)*time.Minute))
	}

	entries, total, err := store.List(context.Background(), Filter{Limit: 2, Offset: 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].CreatedAt.Equal(now.Add(-2*time.Minute)))
}

func TestStore_CountSince(t *testing.T) {
	store := NewStore(setupDB(t))
	now := database.Now()

	insertEntry(t, store, "alice", ActionFileUpload, now.Add(-1*time.Hour))
	insertEntry(t, store, "bob", ActionFileUpload, now.Add(-2*time.Hour))
	insertEntry(t, store, "bob", ActionFileUpload, now.Add(-48*time.Hour))

	count, err := store.CountSince(context.Background(), now.Add(-24*time.Hour), "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.CountSince(context.Background(), now.Add(-24*time.Hour), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDBRecorder_RecordRequest(t *testing.T) {
	db := setupDB(t)
	recorder := NewDBRecorder(NewStore(db), nil, nil)

	req := httptest.NewRequest("POST", "/api/files", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "curl/8.0")
	recorder.RecordRequest(req, "alice", ActionFileUpload, map[string]interface{}{"fileName": "a.png"})

	req = httptest.NewRequest("POST", "/api/files", nil)
	req.RemoteAddr = ""
	req.Header.Del("User-Agent")
	recorder.RecordRequest(req, "bob", ActionFileUpload, nil)

	rows, err := db.Query(`SELECT user_id, ip_address, user_agent, details FROM activity_logs ORDER BY user_id`)
	require.NoError(t, err)
	defer rows.Close()

	type row struct{ user, ip, ua, details string }
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.user, &r.ip, &r.ua, &r.details))
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.Equal(t, row{"alice", "203.0.113.9", "curl/8.0", `{"fileName":"a.png"}`}, got[0])
	assert.Equal(t, row{"bob", "unknown", "unknown", `{}`}, got[1])
}

func TestDBRecorder_SwallowsFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO activity_logs").WillReturnError(sql.ErrConnDone)

	var logs bytes.Buffer
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	recorder := NewDBRecorder(NewStore(db), observability.NewLogger(observability.InfoLevel, &logs), metrics)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), Entry{UserID: "alice", Action: ActionFileUpload})
	})
	assert.Contains(t, logs.String(), "Failed to record activity")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.ActivityWriteFailuresTotal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListKeepsEntriesOfDeletedUsers(t *testing.T) {
	db := setupDB(t)
	store := NewStore(db)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	insertEntry(t, store, "bob", ActionFileUpload, now.Add(-2*time.Hour))
	insertEntry(t, store, "bob", ActionFileDelete, now.Add(-1*time.Hour))
	_, err := db.Exec(`DELETE FROM users WHERE id = 'bob'`)
	require.NoError(t, err)

	entries, total, err := store.List(context.Background(), Filter{Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "bob", e.UserID)
		assert.Nil(t, e.User)
	}

	entries, total, err = store.List(context.Background(), Filter{OwnerID: "bob", Search: "deleted", Limit: 20}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionFileDelete, entries[0].Action)
}
