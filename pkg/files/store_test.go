package files

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/database"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/users"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db := database.NewTestDB(t)
	require.NoError(t, rbac.NewStore(db).SeedRoles(context.Background(), rbac.DefaultTable()))
	return db
}

// createUser inserts a user with the given role and returns it with the
// role name loaded
func createUser(t *testing.T, db *sql.DB, roleID string) *auth.User {
	t.Helper()

	store := users.NewStore(db)
	user := &auth.User{
		ExternalID: "ext-" + roleID,
		Email:      roleID + "@example.com",
		FirstName:  "Test",
		LastName:   roleID,
		RoleID:     roleID,
	}
	require.NoError(t, store.Create(context.Background(), user))
	loaded, err := store.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	return loaded
}

func newRecord(owner, storedName string, createdAt time.Time) *Record {
	return &Record{
		StoredName:   storedName,
		OriginalName: "report.csv",
		SizeBytes:    42,
		MimeType:     "text/csv",
		StoragePath:  "/uploads/" + storedName,
		IsScanned:    true,
		IsSafe:       true,
		ScanMetadata: &ScanResult{FileSize: 42, FileType: "text/csv", SuspiciousPatterns: []string{}, Warnings: []string{"Invalid JSON format"}},
		OwnerUserID:  owner,
		CreatedAt:    createdAt,
	}
}

func TestStore_InsertAndGet(t *testing.T) {
	db := setupDB(t)
	store := NewStore(db)
	ctx := context.Background()
	owner := createUser(t, db, "user")

	record := newRecord(owner.ID, "1_aaaaaa.csv", time.Time{})
	record.IsRemote = true
	record.RemoteID = "uploads/1_aaaaaa.csv"
	record.RemoteURL = "https://cdn.example.com/uploads/1_aaaaaa.csv"
	require.NoError(t, store.Insert(ctx, record))
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.csv", got.OriginalName)
	assert.Equal(t, int64(42), got.SizeBytes)
	assert.True(t, got.IsRemote)
	assert.Equal(t, record.RemoteID, got.RemoteID)
	assert.Equal(t, record.RemoteURL, got.RemoteURL)
	require.NotNil(t, got.ScanMetadata)
	assert.Equal(t, []string{"Invalid JSON format"}, got.ScanMetadata.Warnings)

	byName, err := store.GetByStoredName(ctx, "1_aaaaaa.csv")
	require.NoError(t, err)
	assert.Equal(t, record.ID, byName.ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrFileNotFound)
	_, err = store.GetByStoredName(ctx, "missing.csv")
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestStore_ListScopedAndPaged(t *testing.T) {
	db := setupDB(t)
	store := NewStore(db)
	ctx := context.Background()
	alice := createUser(t, db, "user")
	bob := createUser(t, db, "manager")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Insert(ctx, newRecord(alice.ID, "a1.csv", base)))
	require.NoError(t, store.Insert(ctx, newRecord(alice.ID, "a2.csv", base.Add(time.Hour))))
	require.NoError(t, store.Insert(ctx, newRecord(bob.ID, "b1.csv", base.Add(2*time.Hour))))

	all, total, err := store.List(ctx, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, "b1.csv", all[0].StoredName)
	require.NotNil(t, all[0].Owner)
	assert.Equal(t, "manager@example.com", all[0].Owner.Email)

	own, total, err := store.List(ctx, alice.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, own, 1)
	assert.Equal(t, "a2.csv", own[0].StoredName)

	own, _, err = store.List(ctx, alice.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, "a1.csv", own[0].StoredName)

	none, total, err := store.List(ctx, "nobody", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestStore_DeleteAndCount(t *testing.T) {
	db := setupDB(t)
	store := NewStore(db)
	ctx := context.Background()
	alice := createUser(t, db, "user")
	bob := createUser(t, db, "manager")

	first := newRecord(alice.ID, "a1.csv", time.Time{})
	require.NoError(t, store.Insert(ctx, first))
	require.NoError(t, store.Insert(ctx, newRecord(bob.ID, "b1.csv", time.Time{})))

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = store.Count(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	owned, err := store.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, first.ID, owned[0].ID)

	require.NoError(t, store.Delete(ctx, first.ID))
	assert.ErrorIs(t, store.Delete(ctx, first.ID), ErrFileNotFound)

	count, err = store.Count(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestStore_OwnerDeleteCascades(t *testing.T) {
	db := setupDB(t)
	store := NewStore(db)
	ctx := context.Background()
	alice := createUser(t, db, "user")

	require.NoError(t, store.Insert(ctx, newRecord(alice.ID, "a1.csv", time.Time{})))
	require.NoError(t, users.NewStore(db).Delete(ctx, alice.ID))

	count, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
