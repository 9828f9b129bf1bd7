package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveUpload("stored")
	metrics.ObserveGuardDecision("allowed", "files.read")
	metrics.ObserveProvisioning("created")
	metrics.ObserveActivityWriteFailure()
	metrics.ObserveRateLimited("upload")
	metrics.ObserveBlobOperation("local", "put", time.Now(), nil)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	names := make(map[string]bool)
	for _, family := range families {
		names[family.GetName()] = true
	}
	for _, want := range []string{
		"warden_uploads_total",
		"warden_guard_decisions_total",
		"warden_users_provisioned_total",
		"warden_activity_write_failures_total",
		"warden_rate_limited_total",
		"warden_blob_operation_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("Expected metric %s to be registered", want)
		}
	}
}

func TestNewMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("Expected second registration to panic")
		}
	}()
	NewMetrics(registry)
}

func TestMetrics_NilReceiver(t *testing.T) {
	var metrics *Metrics

	// None of these may panic
	metrics.ObserveUpload("stored")
	metrics.ObserveGuardDecision("denied", "users.delete")
	metrics.ObserveProvisioning("claimed")
	metrics.ObserveActivityWriteFailure()
	metrics.ObserveRateLimited("upload")
	metrics.ObserveBlobOperation("s3", "get", time.Now(), errors.New("boom"))
}

func TestMetrics_Observe(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.ObserveUpload("rejected")
	metrics.ObserveUpload("rejected")
	metrics.ObserveGuardDecision("denied", "roles.manage")
	metrics.ObserveBlobOperation("s3", "put", time.Now(), errors.New("timeout"))
	metrics.ObserveBlobOperation("s3", "put", time.Now(), nil)

	if got := testutil.ToFloat64(metrics.UploadsTotal.WithLabelValues("rejected")); got != 2 {
		t.Errorf("uploads rejected = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.GuardDecisionsTotal.WithLabelValues("denied", "roles.manage")); got != 1 {
		t.Errorf("guard denied = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.BlobErrorsTotal.WithLabelValues("s3", "put")); got != 1 {
		t.Errorf("blob errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.BlobOperationDuration); got != 1 {
		t.Errorf("blob duration series = %d, want 1", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods("GET")
	router.HandleFunc("/api/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}).Methods("GET")

	for _, path := range []string{"/api/users/1", "/api/users/2", "/api/files"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/users/{id}", "404")); got != 2 {
		t.Errorf("templated route count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/files", "200")); got != 1 {
		t.Errorf("files route count = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusTeapot)
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.ObserveUpload("stored")

	serveMux := http.NewServeMux()
	RegisterMetricsEndpoint(serveMux, registry)

	server := httptest.NewServer(serveMux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("Failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if !strings.Contains(string(body), `warden_uploads_total{outcome="stored"} 1`) {
		t.Errorf("metrics output missing upload counter:\n%s", body)
	}
}
