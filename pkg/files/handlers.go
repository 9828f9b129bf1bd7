package files

import (
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/warden/pkg/activity"
	"github.com/platinummonkey/warden/pkg/auth"
	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/middleware"
	"github.com/platinummonkey/warden/pkg/observability"
	"github.com/platinummonkey/warden/pkg/rbac"
	"github.com/platinummonkey/warden/pkg/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100

	// multipart overhead allowed on top of MaxUploadSize
	formOverhead = 1 << 20
)

// Handlers provides HTTP handlers for file uploads
type Handlers struct {
	service  *Service
	store    *Store
	perms    *rbac.PermissionMiddleware
	recorder activity.Recorder
	limiter  *middleware.RateLimitMiddleware
}

// NewHandlers creates new file handlers
func NewHandlers(service *Service, store *Store, perms *rbac.PermissionMiddleware, recorder activity.Recorder) *Handlers {
	if recorder == nil {
		recorder = activity.NopRecorder{}
	}
	return &Handlers{
		service:  service,
		store:    store,
		perms:    perms,
		recorder: recorder,
	}
}

// WithUploadLimiter throttles POST /files per caller. A nil limiter leaves
// uploads unthrottled.
func (h *Handlers) WithUploadLimiter(limiter *middleware.RateLimitMiddleware) *Handlers {
	h.limiter = limiter
	return h
}

// RegisterRoutes registers file routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	upload := http.Handler(http.HandlerFunc(h.upload))
	if h.limiter != nil {
		upload = h.limiter.Handler(upload)
	}

	router.Handle("/files", h.perms.RequirePermission(rbac.PermFilesUpload)(upload)).Methods("POST")
	router.Handle("/files", h.perms.Require(rbac.PermFilesRead, h.listFiles)).Methods("GET")
	router.Handle("/files/{id}", h.perms.Require(rbac.PermFilesRead, h.getFile)).Methods("GET")
	router.Handle("/files/{id}", h.perms.Require(rbac.PermFilesDelete, h.deleteFile)).Methods("DELETE")
}

// RegisterServeRoutes registers GET /{name} for streaming local blobs. The
// router is expected to be mounted at storage.LocalURLPrefix behind the
// request guard.
func (h *Handlers) RegisterServeRoutes(router *mux.Router) {
	router.Handle("/{name}", h.perms.Require(rbac.PermFilesRead, h.serveBlob)).Methods("GET")
}

// upload handles POST /files
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(MaxUploadSize + formOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteBadRequest(w, "File size exceeds maximum allowed size of 10MB")
			return
		}
		httputil.WriteBadRequest(w, "No file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteBadRequest(w, "No file provided")
		return
	}
	defer file.Close()

	if err := ValidateUpload(header.Filename, header.Header.Get("Content-Type"), header.Size); err != nil {
		h.service.metrics.ObserveUpload(outcomeRejected)
		httputil.WriteAppError(w, err)
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	record, err := h.service.Upload(r.Context(), Upload{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
		OwnerID:  caller.UserID(),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), activity.ActionFileUpload, map[string]interface{}{
		"fileName": record.OriginalName,
		"fileSize": record.SizeBytes,
		"fileType": record.MimeType,
	})

	httputil.WriteCreated(w, map[string]interface{}{
		"success": true,
		"file":    record,
	})
}

// listFiles handles GET /files. Non-admins only see their own files; admins
// may narrow the list with uploadedBy.
func (h *Handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	limit, err := httputil.ParseQueryInt(r, "limit", defaultListLimit)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if limit < 0 || offset < 0 {
		httputil.WriteBadRequest(w, "limit and offset must not be negative")
		return
	}
	if limit == 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ownerID := rbac.OwnerScope(caller)
	if ownerID == "" {
		ownerID = httputil.ParseQueryString(r, "uploadedBy", "")
	}

	records, total, err := h.store.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"files":      records,
		"pagination": httputil.NewPagination(total, limit, offset),
	})
}

type fileWithURL struct {
	*Record
	DownloadURL string `json:"downloadUrl"`
}

// getFile handles GET /files/{id}
func (h *Handlers) getFile(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	record, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := rbac.RequireOwnerOrAdmin(caller, record.OwnerUserID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), activity.ActionFileDownload, map[string]interface{}{
		"fileId":   record.ID,
		"fileName": record.OriginalName,
		"fileSize": record.SizeBytes,
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"success": true,
		"file":    fileWithURL{Record: record, DownloadURL: h.service.DownloadURL(record)},
	})
}

// deleteFile handles DELETE /files/{id}
func (h *Handlers) deleteFile(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	record, err := h.service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := rbac.RequireOwnerOrAdmin(caller, record.OwnerUserID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), record); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.recorder.RecordRequest(r, caller.UserID(), activity.ActionFileDelete, map[string]interface{}{
		"fileId":   record.ID,
		"fileName": record.OriginalName,
	})

	httputil.WriteSuccess(w, map[string]interface{}{
		"success": true,
		"message": "File deleted successfully",
	})
}

// serveBlob handles GET /uploads/{name}
func (h *Handlers) serveBlob(w http.ResponseWriter, r *http.Request) {
	caller := auth.GetAuthContext(r)

	record, err := h.store.GetByStoredName(r.Context(), mux.Vars(r)["name"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := rbac.RequireOwnerOrAdmin(caller, record.OwnerUserID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	content, err := h.service.Open(r.Context(), record)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content); err != nil {
		observability.FromContext(r.Context()).WithError(err).
			WithField("file_id", record.ID).
			Warn("Failed to stream file")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var unsafe *UnsafeFileError
	if errors.As(err, &unsafe) {
		httputil.WriteDetailedError(w, http.StatusBadRequest, "File failed security scan", "scanResult", unsafe.Scan)
		return
	}

	switch {
	case errors.Is(err, ErrFileNotFound), errors.Is(err, storage.ErrBlobNotFound):
		err = httputil.NotFound("File not found")
	}

	if appErr := httputil.WriteAppError(w, err); appErr.Kind == httputil.KindInternal {
		observability.FromContext(r.Context()).WithError(err).Error("File request failed")
	}
}
