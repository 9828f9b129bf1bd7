package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/observability"
)

// LocalURLPrefix is the path under which local blobs are served
const LocalURLPrefix = "/uploads/"

// LocalStore keeps blobs as files in a single directory
type LocalStore struct {
	rootDir string
	metrics *observability.Metrics
}

// NewLocalStore creates a new filesystem-based blob store
func NewLocalStore(rootDir string, metrics *observability.Metrics) (*LocalStore, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{rootDir: rootDir, metrics: metrics}, nil
}

// Put writes <root>/<name>; the returned path is /uploads/<name>
func (s *LocalStore) Put(ctx context.Context, name string, content []byte, meta Metadata) (blob *StoredBlob, err error) {
	defer s.observe("put", time.Now(), &err)

	file, err := s.filePath(name)
	if err != nil {
		return nil, err
	}
	if err = os.WriteFile(file, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write blob: %w", err)
	}

	return &StoredBlob{Path: LocalURLPrefix + name}, nil
}

// Delete removes the file behind path. Missing files are not an error.
func (s *LocalStore) Delete(ctx context.Context, path, remoteID string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	file, err := s.filePath(strings.TrimPrefix(path, LocalURLPrefix))
	if err != nil {
		return err
	}
	if err = os.Remove(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// ResolveURL returns the serving path of a local blob
func (s *LocalStore) ResolveURL(path, remoteURL string) string {
	return path
}

// Open returns the content of the blob behind path
func (s *LocalStore) Open(ctx context.Context, path string) (rc io.ReadCloser, err error) {
	defer s.observe("open", time.Now(), &err)

	file, err := s.filePath(strings.TrimPrefix(path, LocalURLPrefix))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// HealthCheck verifies the upload directory is reachable
func (s *LocalStore) HealthCheck(ctx context.Context) error {
	info, err := os.Stat(s.rootDir)
	if err != nil {
		return fmt.Errorf("upload directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("upload directory %s is not a directory", s.rootDir)
	}
	return nil
}

func (s *LocalStore) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveBlobOperation(TypeLocal, operation, start, *err)
}

// filePath maps a blob name into the root directory, refusing anything that
// could escape it
func (s *LocalStore) filePath(name string) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid blob name: %q", name)
	}
	return filepath.Join(s.rootDir, name), nil
}
