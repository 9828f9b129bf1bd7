package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newMockDB(t *testing.T, pingErr error) (*HealthChecker, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("Failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(10)

	mock.ExpectPing().WillReturnError(pingErr)
	if pingErr == nil {
		mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	}
	return NewHealthChecker(db, nil, "test"), mock
}

func TestHealthChecker_Liveness(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "test")

	rr := httptest.NewRecorder()
	checker.Liveness(rr, httptest.NewRequest("GET", "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Liveness check returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if contentType := rr.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", contentType)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != StatusHealthy {
		t.Errorf("Expected status %s, got %v", StatusHealthy, response["status"])
	}
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		status := NewHealthChecker(nil, nil, "1.2.3").Check(context.Background())

		if status.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s", StatusHealthy, status.Status)
		}
		if len(status.Dependencies) != 0 {
			t.Errorf("Expected 0 dependencies, got %d", len(status.Dependencies))
		}
		if status.Version != "1.2.3" {
			t.Errorf("Expected version 1.2.3, got %s", status.Version)
		}
	})

	t.Run("healthy database", func(t *testing.T) {
		checker, mock := newMockDB(t, nil)

		status := checker.Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s (%s)", StatusHealthy, status.Status, status.Dependencies["database"].Message)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet expectations: %v", err)
		}
	})

	t.Run("unhealthy database", func(t *testing.T) {
		checker, _ := newMockDB(t, errors.New("connection refused"))

		status := checker.Check(context.Background())
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, status.Status)
		}
		if status.Dependencies["database"].Message != "connection refused" {
			t.Errorf("Unexpected message: %s", status.Dependencies["database"].Message)
		}
	})

	t.Run("healthy redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		status := NewHealthChecker(nil, client, "test").Check(context.Background())
		if status.Status != StatusHealthy {
			t.Errorf("Expected status %s, got %s", StatusHealthy, status.Status)
		}
		if status.Dependencies["redis"].Status != StatusHealthy {
			t.Errorf("Expected redis %s, got %s", StatusHealthy, status.Dependencies["redis"].Status)
		}
	})

	t.Run("unreachable redis degrades", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
		defer client.Close()
		mr.Close()

		status := NewHealthChecker(nil, client, "test").Check(context.Background())
		if status.Status != StatusDegraded {
			t.Errorf("Expected status %s, got %s", StatusDegraded, status.Status)
		}
		if status.Dependencies["redis"].Status != StatusUnhealthy {
			t.Errorf("Expected redis %s, got %s", StatusUnhealthy, status.Dependencies["redis"].Status)
		}
	})

	t.Run("failing critical check is unhealthy", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, "test").
			AddCheck("storage", func(ctx context.Context) error { return errors.New("bucket gone") }, true)

		status := checker.Check(context.Background())
		if status.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, status.Status)
		}
		if status.Dependencies["storage"].Message != "bucket gone" {
			t.Errorf("Unexpected message: %s", status.Dependencies["storage"].Message)
		}
	})

	t.Run("failing optional check degrades", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, "test").
			AddCheck("storage", func(ctx context.Context) error { return nil }, true).
			AddCheck("cdn", func(ctx context.Context) error { return errors.New("timeout") }, false)

		status := checker.Check(context.Background())
		if status.Status != StatusDegraded {
			t.Errorf("Expected status %s, got %s", StatusDegraded, status.Status)
		}
		if status.Dependencies["storage"].Status != StatusHealthy {
			t.Errorf("Expected storage %s, got %s", StatusHealthy, status.Dependencies["storage"].Status)
		}
	})
}

func TestHealthChecker_Readiness(t *testing.T) {
	t.Run("unhealthy returns 503", func(t *testing.T) {
		checker, _ := newMockDB(t, errors.New("connection failed"))

		rr := httptest.NewRecorder()
		checker.Readiness(rr, httptest.NewRequest("GET", "/readyz", nil))

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("Expected status %v, got %v", http.StatusServiceUnavailable, rr.Code)
		}
		var response HealthStatus
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response.Status != StatusUnhealthy {
			t.Errorf("Expected status %s, got %s", StatusUnhealthy, response.Status)
		}
	})

	t.Run("degraded returns 200", func(t *testing.T) {
		checker := NewHealthChecker(nil, nil, "test").
			AddCheck("cdn", func(ctx context.Context) error { return errors.New("timeout") }, false)

		rr := httptest.NewRecorder()
		checker.Readiness(rr, httptest.NewRequest("GET", "/readyz", nil))

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status %v, got %v", http.StatusOK, rr.Code)
		}
	})
}

func TestRegisterHealthRoutes(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHealthRoutes(mux, NewHealthChecker(nil, nil, "test"))

	for _, path := range []string{"/healthz", "/readyz", "/health"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s returned %d", path, rr.Code)
		}
	}
}
