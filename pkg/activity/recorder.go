package activity

import (
	"context"
	"net/http"

	"github.com/platinummonkey/warden/pkg/httputil"
	"github.com/platinummonkey/warden/pkg/observability"
)

const unknown = "unknown"

// Recorder writes activity entries. Recording is best-effort: failures are
// logged and never reach the caller.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
	RecordRequest(r *http.Request, userID, action string, details map[string]interface{})
}

// DBRecorder records entries through a Store
type DBRecorder struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

var _ Recorder = (*DBRecorder)(nil)

// NewDBRecorder creates a recorder backed by store
func NewDBRecorder(store *Store, logger *observability.Logger, metrics *observability.Metrics) *DBRecorder {
	return &DBRecorder{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Record inserts the entry, logging any failure
func (r *DBRecorder) Record(ctx context.Context, entry Entry) {
	if entry.IPAddress == "" {
		entry.IPAddress = unknown
	}
	if entry.UserAgent == "" {
		entry.UserAgent = unknown
	}

	if err := r.store.Insert(ctx, &entry); err != nil {
		r.metrics.ObserveActivityWriteFailure()
		logger := r.logger
		if logger == nil {
			logger = observability.FromContext(ctx)
		}
		logger.WithError(err).
			WithField("user_id", entry.UserID).
			WithField("action", entry.Action).
			Warn("Failed to record activity")
	}
}

// RecordRequest records an action taken through r, capturing the client
// address and user agent.
func (r *DBRecorder) RecordRequest(req *http.Request, userID, action string, details map[string]interface{}) {
	r.Record(req.Context(), Entry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: httputil.ClientIP(req),
		UserAgent: req.UserAgent(),
	})
}

// NopRecorder discards every entry
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Entry) {}

func (NopRecorder) RecordRequest(*http.Request, string, string, map[string]interface{}) {}
