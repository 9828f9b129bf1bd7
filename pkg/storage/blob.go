package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/platinummonkey/warden/pkg/observability"
)

// Backend types
const (
	TypeLocal = "local"
	TypeS3    = "s3"
)

// ErrBlobNotFound is returned when a blob does not exist in the backend
var ErrBlobNotFound = errors.New("blob not found")

// Metadata describes blob content at write time
type Metadata struct {
	ContentType  string
	OriginalName string
}

// StoredBlob is where a blob ended up. Path is what Open and Delete take;
// remote backends also report an object id and a public URL.
type StoredBlob struct {
	Path      string
	IsRemote  bool
	RemoteID  string
	RemoteURL string
}

// BlobStore persists uploaded file content. Callers never learn which
// backend is configured.
type BlobStore interface {
	Put(ctx context.Context, name string, content []byte, meta Metadata) (*StoredBlob, error)
	Delete(ctx context.Context, path, remoteID string) error
	ResolveURL(path, remoteURL string) string
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	HealthCheck(ctx context.Context) error
}

// Config for the blob backend
type Config struct {
	Type string // "local" or "s3"

	// Local config
	UploadDir string

	// S3 config
	S3Endpoint      string
	S3Region        string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3UsePathStyle  bool
	S3Prefix        string
	S3PublicBaseURL string
	S3CreateBucket  bool
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:      TypeLocal,
		UploadDir: "./uploads",
		S3Region:  "us-east-1",
		S3Prefix:  "uploads",
	}
}

// Validate checks the configuration of the selected backend
func (c Config) Validate() error {
	switch c.Type {
	case TypeLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("upload directory is required for local storage")
		}
	case TypeS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("bucket is required for s3 storage")
		}
		if c.S3Region == "" {
			return fmt.Errorf("region is required for s3 storage")
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			return fmt.Errorf("s3 access key and secret key must be set together")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", c.Type)
	}
	return nil
}

// NewBlobStore builds the configured backend
func NewBlobStore(ctx context.Context, cfg Config, metrics *observability.Metrics) (BlobStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case TypeS3:
		return NewS3Store(ctx, cfg, metrics)
	default:
		return NewLocalStore(cfg.UploadDir, metrics)
	}
}
