package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/warden/pkg/observability"
)

var tracer = otel.Tracer("github.com/platinummonkey/warden/pkg/storage")

// s3API is the subset of *s3.Client the store uses
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// S3Store keeps blobs in an S3-compatible bucket under <prefix>/<name>
type S3Store struct {
	client  s3API
	bucket  string
	config  Config
	metrics *observability.Metrics
}

// NewS3Store creates a new S3 blob store
func NewS3Store(ctx context.Context, cfg Config, metrics *observability.Metrics) (*S3Store, error) {
	var awsConfig aws.Config
	var err error

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// Use static credentials (for MinIO or AWS with explicit keys)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		// Use default credential chain (IAM roles, env vars, etc.)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	store := newS3Store(client, cfg, metrics)
	if cfg.S3CreateBucket {
		if err := store.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
		}
	}
	return store, nil
}

func newS3Store(client s3API, cfg Config, metrics *observability.Metrics) *S3Store {
	return &S3Store{
		client:  client,
		bucket:  cfg.S3Bucket,
		config:  cfg,
		metrics: metrics,
	}
}

// Put uploads content to <prefix>/<name>
func (s *S3Store) Put(ctx context.Context, name string, content []byte, meta Metadata) (blob *StoredBlob, err error) {
	key := s.objectKey(name)
	ctx, span := s.startSpan(ctx, "PutObject", key)
	defer s.finish(span, "put", time.Now(), &err)

	span.SetAttributes(
		attribute.Int("content.size", len(content)),
		attribute.String("content.type", meta.ContentType),
	)

	hash := sha256.Sum256(content)
	metadata := map[string]string{
		"checksum-sha256": hex.EncodeToString(hash[:]),
	}
	if meta.OriginalName != "" {
		metadata["original-name"] = meta.OriginalName
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(meta.ContentType),
		Metadata:    metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to s3: %w", err)
	}

	return &StoredBlob{
		Path:      key,
		IsRemote:  true,
		RemoteID:  key,
		RemoteURL: s.objectURL(key),
	}, nil
}

// Delete removes the object; remoteID wins over path when both are set
func (s *S3Store) Delete(ctx context.Context, path, remoteID string) (err error) {
	key := remoteID
	if key == "" {
		key = path
	}
	ctx, span := s.startSpan(ctx, "DeleteObject", key)
	defer s.finish(span, "delete", time.Now(), &err)

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// ResolveURL returns the stored public URL, or derives it from the key
func (s *S3Store) ResolveURL(path, remoteURL string) string {
	if remoteURL != "" {
		return remoteURL
	}
	return s.objectURL(path)
}

// Open streams the object stored under path
func (s *S3Store) Open(ctx context.Context, path string) (rc io.ReadCloser, err error) {
	ctx, span := s.startSpan(ctx, "GetObject", path)
	defer s.finish(span, "open", time.Now(), &err)

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object from s3: %w", err)
	}

	if result.ContentLength != nil {
		span.SetAttributes(attribute.Int64("content.size", *result.ContentLength))
	}
	return result.Body, nil
}

// HealthCheck verifies S3 connectivity
func (s *S3Store) HealthCheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 health check failed: %w", err)
	}
	return nil
}

func (s *S3Store) createBucketIfNotExists(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err == nil {
		return nil
	}

	_, err := s.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		// Another instance may have created it in the meantime
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *S3Store) objectKey(name string) string {
	prefix := strings.Trim(s.config.S3Prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// objectURL builds the public URL of a key: the configured base URL, the
// custom endpoint in path style, or the virtual-hosted AWS URL
func (s *S3Store) objectURL(key string) string {
	if base := strings.TrimRight(s.config.S3PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	if s.config.S3Endpoint != "" {
		return strings.TrimRight(s.config.S3Endpoint, "/") + "/" + s.bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.config.S3Region, key)
}

func (s *S3Store) startSpan(ctx context.Context, operation, key string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "S3."+operation,
		trace.WithAttributes(
			attribute.String("s3.operation", operation),
			attribute.String("s3.bucket", s.bucket),
			attribute.String("s3.key", key),
		),
	)
}

func (s *S3Store) finish(span trace.Span, operation string, start time.Time, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, operation+" failed")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
	s.metrics.ObserveBlobOperation(TypeS3, operation, start, *err)
}
