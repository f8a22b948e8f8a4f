package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/s1natex/task-manager-api/internal/config"
	"github.com/s1natex/task-manager-api/internal/tasks"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	cfg := config.Default()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return newRouter(tasks.NewInMemoryRepo(), logger, cfg)
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	rec := serve(newTestRouter(t), "GET", "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	expected := `{"status":"ok"}`
	if strings.TrimSpace(rec.Body.String()) != expected {
		t.Errorf("expected body %s, got %s", expected, rec.Body.String())
	}
}

func TestServiceInfo(t *testing.T) {
	rec := serve(newTestRouter(t), "GET", "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var info infoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if info.Status != "running" || info.Version != serviceVersion || info.Message != "Magenta Insights Task Manager API" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(info.Endpoints) != 5 {
		t.Fatalf("expected 5 endpoints, got %v", info.Endpoints)
	}
}

func TestFallbacks(t *testing.T) {
	r := newTestRouter(t)

	cases := []struct {
		method, path string
		status       int
		msg          string
	}{
		{"GET", "/nope", http.StatusNotFound, "Endpoint not found"},
		{"GET", "/api/tasks/abc", http.StatusNotFound, "Endpoint not found"},
		{"PATCH", "/api/tasks", http.StatusMethodNotAllowed, "Method not allowed"},
		{"POST", "/api/tasks/1", http.StatusMethodNotAllowed, "Method not allowed"},
	}
	for _, tc := range cases {
		rec := serve(r, tc.method, tc.path, "")
		if rec.Code != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s %s: parse: %v", tc.method, tc.path, err)
		}
		if body["error"] != tc.msg {
			t.Fatalf("%s %s: expected %q, got %q", tc.method, tc.path, tc.msg, body["error"])
		}
	}
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/tasks/1", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code >= 300 {
		t.Fatalf("preflight rejected: %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPut) {
		t.Fatalf("PUT not allowed in preflight: %v", rec.Header())
	}
}

func TestTaskLifecycleThroughRouter(t *testing.T) {
	r := newTestRouter(t)

	rec := serve(r, "POST", "/api/tasks", `{"title":"Write report","priority":"High"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created tasks.Task
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	path := "/api/tasks/" + strconv.FormatInt(created.ID, 10)
	if rec := serve(r, "PUT", path, `{"status":true}`); rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d", rec.Code)
	}
	if rec := serve(r, "DELETE", path, ""); rec.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rec.Code)
	}
	if rec := serve(r, "GET", path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rec.Code)
	}
}

func TestOpenRepo(t *testing.T) {
	ctx := context.Background()

	mem, err := openRepo(ctx, config.DatabaseConfig{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*tasks.InMemoryRepo); !ok {
		t.Fatalf("expected in-memory repo, got %T", mem)
	}

	path := filepath.Join(t.TempDir(), "data", "tasks.db")
	repo, err := openRepo(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, Path: path})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer repo.Close()

	if _, err := repo.Create(ctx, tasks.NewTask{Title: "persist", Priority: tasks.PriorityLow}); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("list: %v %+v", err, list)
	}
}
