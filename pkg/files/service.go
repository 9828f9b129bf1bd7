package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/storage"
)

// Upload outcomes recorded in metrics
const (
	outcomeStored   = "stored"
	outcomeRejected = "rejected"
	outcomeUnsafe   = "unsafe"
	outcomeFailed   = "failed"
)

// ErrUnsafeFile is returned by Upload when the scan finds suspicious content
var ErrUnsafeFile = errors.New("file failed security scan")

// UnsafeFileError carries the scan result of a rejected upload
type UnsafeFileError struct {
	Scan *ScanResult
}

func (e *UnsafeFileError) Error() string { return ErrUnsafeFile.Error() }

func (e *UnsafeFileError) Unwrap() error { return ErrUnsafeFile }

// Upload is one file received from a client
type Upload struct {
	Name     string
	MimeType string
	Content  []byte
	OwnerID  string
}

// Service runs the upload pipeline and keeps blobs and records in step
type Service struct {
	store   *Store
	blobs   storage.BlobStore
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a file service
func NewService(store *Store, blobs storage.BlobStore, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		store:   store,
		blobs:   blobs,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Upload validates and scans the file, stores the blob and persists its
// record. Validation failures are InvalidInput errors; an unsafe scan is an
// *UnsafeFileError. If the record cannot be written the blob is left behind.
func (s *Service) Upload(ctx context.Context, upload Upload) (*Record, error) {
	ctx, span := observability.StartSpan(ctx, "files.Upload",
		attribute.String("file.mime_type", upload.MimeType),
		attribute.Int("file.size", len(upload.Content)),
	)
	record, err := s.upload(ctx, upload)
	observability.EndSpan(span, err)
	return record, err
}

func (s *Service) upload(ctx context.Context, upload Upload) (*Record, error) {
	size := int64(len(upload.Content))
	if err := ValidateUpload(upload.Name, upload.MimeType, size); err != nil {
		s.metrics.ObserveUpload(outcomeRejected)
		return nil, err
	}

	scan := Scan(upload.Name, upload.MimeType, upload.Content)
	if !scan.IsSafe() {
		s.metrics.ObserveUpload(outcomeUnsafe)
		s.log(ctx).
			WithField("file_name", upload.Name).
			WithField("patterns", scan.SuspiciousPatterns).
			Warn("Rejected unsafe upload")
		return nil, &UnsafeFileError{Scan: scan}
	}

	name, err := UniqueName(Extension(upload.Name), s.now())
	if err != nil {
		s.metrics.ObserveUpload(outcomeFailed)
		return nil, err
	}

	blob, err := s.blobs.Put(ctx, name, upload.Content, storage.Metadata{
		ContentType:  upload.MimeType,
		OriginalName: upload.Name,
	})
	if err != nil {
		s.metrics.ObserveUpload(outcomeFailed)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	record := &Record{
		StoredName:   name,
		OriginalName: upload.Name,
		SizeBytes:    size,
		MimeType:     upload.MimeType,
		StoragePath:  blob.Path,
		IsRemote:     blob.IsRemote,
		RemoteID:     blob.RemoteID,
		RemoteURL:    blob.RemoteURL,
		IsScanned:    true,
		IsSafe:       true,
		ScanMetadata: scan,
		OwnerUserID:  upload.OwnerID,
	}
	if err := s.store.Insert(ctx, record); err != nil {
		s.metrics.ObserveUpload(outcomeFailed)
		s.log(ctx).WithError(err).
			WithField("storage_path", blob.Path).
			Error("Stored blob has no file record")
		return nil, err
	}

	s.metrics.ObserveUpload(outcomeStored)
	return record, nil
}

// Get returns a record, mapping a missing one to a NotFound error
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	record, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrFileNotFound) {
		return nil, httputil.NotFound("File not found")
	}
	return record, err
}

// DownloadURL returns where the client can fetch the record's content
func (s *Service) DownloadURL(record *Record) string {
	return s.blobs.ResolveURL(record.StoragePath, record.RemoteURL)
}

// Open streams the blob behind a record
func (s *Service) Open(ctx context.Context, record *Record) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, record.StoragePath)
}

// Delete removes the blob and then the record. A failed blob delete is
// logged and the record is removed anyway.
func (s *Service) Delete(ctx context.Context, record *Record) error {
	if err := s.blobs.Delete(ctx, record.StoragePath, record.RemoteID); err != nil {
		s.log(ctx).WithError(err).
			WithField("file_id", record.ID).
			WithField("storage_path", record.StoragePath).
			Warn("Failed to delete stored blob")
	}

	if err := s.store.Delete(ctx, record.ID); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return httputil.NotFound("File not found")
		}
		return err
	}
	return nil
}

// PurgeOwner deletes an owner through deleteOwner, which takes the owner's
// file records with it, and then removes the blobs those records pointed
// at. Blobs are only touched once the owner is gone; failures to remove one
// are logged and leave an orphaned blob rather than a dangling record.
func (s *Service) PurgeOwner(ctx context.Context, ownerID string, deleteOwner func(context.Context) error) error {
	records, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return err
	}

	if err := deleteOwner(ctx); err != nil {
		return err
	}

	for _, record := range records {
		if err := s.blobs.Delete(ctx, record.StoragePath, record.RemoteID); err != nil {
			s.log(ctx).WithError(err).
				WithField("owner_id", ownerID).
				WithField("storage_path", record.StoragePath).
				Warn("Failed to delete stored blob of deleted owner")
		}
	}
	return nil
}

func (s *Service) log(ctx context.Context) *observability.Logger {
	if s.logger != nil {
		return s.logger
	}
	return observability.FromContext(ctx)
}
