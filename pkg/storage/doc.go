// Package storage holds uploaded file content and the shared Redis client.
//
// BlobStore hides which backend is configured:
//
//   - LocalStore writes <upload dir>/<name> and reports the path
//     /uploads/<name>, served by the files package.
//   - S3Store writes <prefix>/<name> to an S3-compatible bucket and reports
//     the key as both path and remote id, plus a public URL built from
//     S3PublicBaseURL, the custom endpoint, or the virtual-hosted AWS URL.
//     Every operation runs inside an OpenTelemetry span.
//
// Both record latency and failures through observability.Metrics.
//
//	blobs, err := storage.NewBlobStore(ctx, storage.Config{
//		Type:      storage.TypeLocal,
//		UploadDir: "./uploads",
//	}, metrics)
package storage
