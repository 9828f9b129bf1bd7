package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, which keeps tests and tools free of registry setup.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	GuardDecisionsTotal   *prometheus.CounterVec
	UsersProvisionedTotal *prometheus.CounterVec

	// Storage metrics
	BlobOperationDuration *prometheus.HistogramVec
	BlobErrorsTotal       *prometheus.CounterVec

	// Business metrics
	UploadsTotal               *prometheus.CounterVec
	ActivityWriteFailuresTotal prometheus.Counter
	RateLimitedTotal           *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GuardDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_guard_decisions_total",
				Help: "Request guard outcomes by permission",
			},
			[]string{"outcome", "permission"},
		),
		UsersProvisionedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_users_provisioned_total",
				Help: "Local users resolved on first request, by path taken",
			},
			[]string{"outcome"},
		),
		BlobOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_blob_operation_duration_seconds",
				Help:    "Blob store operation latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"backend", "operation"},
		),
		BlobErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_blob_errors_total",
				Help: "Blob store operation failures",
			},
			[]string{"backend", "operation"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_uploads_total",
				Help: "File uploads by outcome",
			},
			[]string{"outcome"},
		),
		ActivityWriteFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_activity_write_failures_total",
				Help: "Activity log entries that could not be written",
			},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"limiter"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GuardDecisionsTotal,
		m.UsersProvisionedTotal,
		m.BlobOperationDuration,
		m.BlobErrorsTotal,
		m.UploadsTotal,
		m.ActivityWriteFailuresTotal,
		m.RateLimitedTotal,
	)

	return m
}

// ObserveGuardDecision counts one guard outcome
func (m *Metrics) ObserveGuardDecision(outcome, permission string) {
	if m == nil {
		return
	}
	m.GuardDecisionsTotal.WithLabelValues(outcome, permission).Inc()
}

// ObserveProvisioning counts how a caller's local user was resolved
func (m *Metrics) ObserveProvisioning(outcome string) {
	if m == nil {
		return
	}
	m.UsersProvisionedTotal.WithLabelValues(outcome).Inc()
}

// ObserveBlobOperation records latency and failure of a blob operation
func (m *Metrics) ObserveBlobOperation(backend, operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.BlobOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.BlobErrorsTotal.WithLabelValues(backend, operation).Inc()
	}
}

// ObserveUpload counts an upload outcome
func (m *Metrics) ObserveUpload(outcome string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveActivityWriteFailure counts a dropped activity entry
func (m *Metrics) ObserveActivityWriteFailure() {
	if m == nil {
		return
	}
	m.ActivityWriteFailuresTotal.Inc()
}

// ObserveRateLimited counts a rejected request
func (m *Metrics) ObserveRateLimited(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(limiter).Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Routes are labelled by their mux template to keep cardinality bounded.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if metrics == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(serveMux *http.ServeMux, registry *prometheus.Registry) {
	serveMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
