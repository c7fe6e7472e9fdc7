package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/mapscout/api"
	"github.com/use-agent/mapscout/browser"
	"github.com/use-agent/mapscout/cache"
	"github.com/use-agent/mapscout/config"
	"github.com/use-agent/mapscout/jobs"
	"github.com/use-agent/mapscout/scraper"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("mapscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"store", cfg.Jobs.Store,
		"maxConcurrentJobs", cfg.Jobs.MaxConcurrent,
	)

	if err := cfg.Selectors.Validate(); err != nil {
		slog.Error("invalid selector configuration", "error", err)
		os.Exit(1)
	}

	// ── 3. Launch the shared browser ────────────────────────────────
	rod, err := browser.NewRod(cfg.Browser)
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer rod.Close()

	sc := scraper.New(rod, cfg.Scraper, cfg.Selectors, slog.Default())

	// ── 4. Job store ────────────────────────────────────────────────
	store, closeStore, err := openStore(cfg.Jobs)
	if err != nil {
		slog.Error("failed to open job store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// ── 5. Job manager + result cache ───────────────────────────────
	cc := cache.New(cfg.Cache.MaxEntries)
	mgr := jobs.NewManager(store, sc, cc, cfg.Jobs, slog.Default())

	// ── 6. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(mgr, rod, cfg, startTime)

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Running jobs get a little longer; whatever is still open after that
	// is torn down with the browser.
	jobCtx, jobCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer jobCancel()
	if err := mgr.Shutdown(jobCtx); err != nil {
		slog.Warn("abandoning running jobs", "running", mgr.Stats().Running, "error", err)
	}

	// rod.Close() and closeStore() run via defer.
	slog.Info("mapscout stopped")
}

// openStore selects the job store backend.
func openStore(cfg config.JobsConfig) (jobs.Store, func(), error) {
	switch cfg.Store {
	case "", "memory":
		return jobs.NewMemoryStore(), func() {}, nil
	case "sqlite":
		s, err := jobs.NewSQLiteStore(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Warn("closing job store", "error", err)
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unknown job store %q (want memory or sqlite)", cfg.Store)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
