package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/s1natex/task-manager-api/internal/config"
	"github.com/s1natex/task-manager-api/internal/middleware"
	"github.com/s1natex/task-manager-api/internal/tasks"
	"github.com/s1natex/task-manager-api/internal/telemetry"
)

const (
	serviceMessage = "Magenta Insights Task Manager API"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("startup_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger) // for third-party packages that use slog

	if err := run(cfg, logger); err != nil {
		logger.Error("startup_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing_shutdown", slog.String("error", err.Error()))
		}
	}()

	repo, err := openRepo(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer repo.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newRouter(repo, logger, cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen",
			slog.String("addr", cfg.Server.Addr),
			slog.String("db_driver", cfg.Database.Driver),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutdown")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	return srv.Shutdown(sctx)
}

// openRepo builds the task store named by cfg and makes sure its table exists.
func openRepo(ctx context.Context, cfg config.DatabaseConfig) (tasks.Repository, error) {
	if cfg.Driver == config.DriverMemory {
		return tasks.NewInMemoryRepo(), nil
	}

	dsn := cfg.DSN
	if dsn == "" && cfg.Driver == config.DriverSQLite {
		var err error
		if dsn, err = tasks.SQLiteFileDSN(cfg.Path); err != nil {
			return nil, fmt.Errorf("sqlite dsn: %w", err)
		}
	}
	repo, err := tasks.NewSQLRepo(cfg.Driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = repo.Close()
		return nil, err
	}
	return repo, nil
}

// newRouter wires service info, health, metrics, task routes, and the middleware stack
func newRouter(repo tasks.Repository, logger *slog.Logger, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()

	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(logger))
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout.Duration))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimitMiddleware(middleware.NewLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))

	r.NotFound(middleware.NotFound)
	r.MethodNotAllowed(middleware.MethodNotAllowed)

	r.Get("/", serviceInfo)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	tasks.RegisterRoutes(r, repo, logger)

	return r
}

type infoResponse struct {
	Message   string            `json:"message"`
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

func serviceInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(infoResponse{
		Message: serviceMessage,
		Status:  "running",
		Version: serviceVersion,
		Endpoints: map[string]string{
			"GET /api/tasks":         "Get all tasks",
			"GET /api/tasks/<id>":    "Get a specific task",
			"POST /api/tasks":        "Create a new task",
			"PUT /api/tasks/<id>":    "Update a task",
			"DELETE /api/tasks/<id>": "Delete a task",
		},
	})
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
