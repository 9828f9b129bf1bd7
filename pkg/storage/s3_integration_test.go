//go:build integration

package storage

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMinIO starts a MinIO container and returns a store pointed at it
func setupMinIO(t *testing.T) *S3Store {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp"),
	}

	minioContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start MinIO container")
	t.Cleanup(func() {
		if err := minioContainer.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate MinIO container: %v", err)
		}
	})

	host, err := minioContainer.Host(ctx)
	require.NoError(t, err)
	port, err := minioContainer.MappedPort(ctx, "9000")
	require.NoError(t, err)

	store, err := NewS3Store(ctx, Config{
		Type:           TypeS3,
		S3Endpoint:     "http://" + host + ":" + port.Port(),
		S3AccessKey:    "minioadmin",
		S3SecretKey:    "minioadmin",
		S3Bucket:       "warden-test",
		S3Region:       "us-east-1",
		S3UsePathStyle: true,
		S3Prefix:       "uploads",
		S3CreateBucket: true,
	}, nil)
	require.NoError(t, err, "Failed to create S3 store")

	return store
}

func TestS3Store_Integration(t *testing.T) {
	store := setupMinIO(t)
	ctx := context.Background()

	require.NoError(t, store.HealthCheck(ctx))

	blob, err := store.Put(ctx, "1700000000000_abc123.csv", []byte("a,b\n1,2\n"), Metadata{ContentType: "text/csv"})
	require.NoError(t, err)
	assert.Equal(t, "uploads/1700000000000_abc123.csv", blob.RemoteID)

	rc, err := store.Open(ctx, blob.Path)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()
	assert.Equal(t, "a,b\n1,2\n", string(data))

	require.NoError(t, store.Delete(ctx, blob.Path, blob.RemoteID))
	_, err = store.Open(ctx, blob.Path)
	assert.ErrorIs(t, err, ErrBlobNotFound)
}
