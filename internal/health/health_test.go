package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestDBCheckerHealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectPing()

	checker := NewDBChecker(db)
	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRedisCheckerHealthy(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer client.Close()

	checker := NewRedisChecker(client)
	if err := checker.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v, want nil", err)
	}
}

func TestRedisCheckerUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	checker := NewRedisChecker(client)
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() = nil, want error for closed server")
	}
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHandlerAllHealthy(t *testing.T) {
	h := Handler(slog.Default(), map[string]Checker{
		"db": checkerFunc(func(context.Context) error { return nil }),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" || body.Dependencies["db"] != "ok" {
		t.Errorf("body = %+v, want ok", body)
	}
}

func TestHandlerDegraded(t *testing.T) {
	h := Handler(slog.Default(), map[string]Checker{
		"db":    checkerFunc(func(context.Context) error { return nil }),
		"redis": checkerFunc(func(context.Context) error { return context.DeadlineExceeded }),
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}

	var body struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status field = %s, want degraded", body.Status)
	}
	if body.Dependencies["db"] != "ok" {
		t.Errorf("db = %s, want ok", body.Dependencies["db"])
	}
	if body.Dependencies["redis"] == "ok" {
		t.Error("redis reported ok, want failure message")
	}
}
