// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/passport/internal/api"
	"github.com/starford/passport/internal/sse"
	"github.com/starford/passport/internal/visitservice"
	"github.com/starford/passport/internal/watcher"
	"github.com/starford/passport/internal/web"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(cfg.App, os.Stdout)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("data_path", cfg.Data.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("history", cfg.History.Enabled),
		slog.Bool("watch", cfg.Watch.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	core, err := Open(ctx, cfg, logger, broker)
	if err != nil {
		return err
	}
	defer core.Close()

	snap := core.Service.Snapshot()
	logger.Info("Visits loaded",
		slog.Int("visits", len(snap.Visits)),
		slog.Int("rejected", len(snap.Rejected)))
	for _, re := range snap.Rejected {
		logger.Warn("row rejected", slog.Int("row", re.Row), slog.String("column", re.Column), slog.String("reason", re.Reason))
	}

	var limiter *api.RateLimiter
	if cfg.App.RateLimit.Enabled() {
		limiter = api.NewRateLimiter(cfg.App.RateLimit.PerMinute, cfg.App.RateLimit.Burst)
		defer limiter.Close()
	}

	apiRouter := api.NewRouter(core.Service, limiter, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, http.StatusOK, "ok", app.version)
	})
	r.Get("/health/ready", readyHandler(core.Service, app.version))

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	// Dashboard.
	r.Handle("/*", web.NewHandler())

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Reload on external edits of the data file.
	if cfg.Watch.Enabled {
		path := filepath.Join(core.DataDir, cfg.Data.File())
		g.Go(func() error {
			return watcher.Watch(gCtx, path, cfg.Watch.Debounce, logger, func(ctx context.Context) {
				if _, err := core.Service.Reload(ctx); err != nil {
					logger.Error("reload failed, keeping previous snapshot", slog.String("error", err.Error()))
				}
			})
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams never end on their own.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Stop the watcher.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func writeHealth(w http.ResponseWriter, status int, state, version string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthBody{Status: state, Version: version})
}

func readyHandler(svc *visitservice.Service, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Ready() {
			writeHealth(w, http.StatusServiceUnavailable, "loading", version)
			return
		}
		writeHealth(w, http.StatusOK, "ok", version)
	}
}
