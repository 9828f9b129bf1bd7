// Package files accepts uploads, checks them and keeps their records.
//
// An upload is validated (10MB limit, jpg/jpeg/png/json/csv, MIME type must
// match the extension), scanned for suspicious names and script content,
// written to the configured storage.BlobStore under a generated name and
// finally recorded. A record write that fails after the blob was stored
// leaves the blob behind; Service logs its path.
//
//	POST   /api/files       files.upload, multipart field "file"
//	GET    /api/files       files.read, own files unless admin
//	GET    /api/files/{id}  files.read, owner or admin
//	DELETE /api/files/{id}  files.delete, owner or admin
//	GET    /uploads/{name}  files.read, owner or admin, local backend only
package files
