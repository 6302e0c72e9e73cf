package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/phoneprice/api"
	"github.com/use-agent/phoneprice/api/handler"
	"github.com/use-agent/phoneprice/config"
	"github.com/use-agent/phoneprice/engine"
	"github.com/use-agent/phoneprice/job"
	"github.com/use-agent/phoneprice/market"
	"github.com/use-agent/phoneprice/orchestrator"
	"github.com/use-agent/phoneprice/scraper"
	"github.com/use-agent/phoneprice/store"
	"github.com/use-agent/phoneprice/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("phoneprice starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"engine", cfg.Fetch.Engine,
		"store", cfg.Store.Driver,
		"staleAfter", cfg.Cache.StaleAfter,
	)

	if err := run(cfg); err != nil {
		slog.Error("phoneprice failed", "error", err)
		os.Exit(1)
	}
	slog.Info("phoneprice stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Marketplace profile ──────────────────────────────────────
	profile, err := market.Load(cfg.Market.ProfilePath)
	if err != nil {
		return err
	}

	// ── 4. Store ────────────────────────────────────────────────────
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Warn("store close failed", "error", err)
		}
	}()

	// ── 5. Fetch engine + pipeline ──────────────────────────────────
	eng, err := engine.New(cfg.Fetch, cfg.Browser)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.Close(); err != nil {
			slog.Warn("engine close failed", "error", err)
		}
	}()

	pipeline, err := scraper.NewPipeline(scraper.NewFetcher(eng, profile, cfg.Fetch.Timeout), profile)
	if err != nil {
		return err
	}
	svc := orchestrator.New(st, pipeline, cfg.Cache.StaleAfter)

	// ── 6. Refresh job (optional) ───────────────────────────────────
	refresher := job.NewRefresher(cfg.Refresh.Schedule, cfg.Refresh.BatchSize, svc.RefreshStale)
	stopRefresh, err := refresher.Start(ctx)
	if err != nil {
		return fmt.Errorf("refresh job: %w", err)
	}
	defer stopRefresh()

	// ── 7. Router ───────────────────────────────────────────────────
	notifier := webhook.New(cfg.Webhook)
	router := api.NewRouter(ctx, api.Deps{
		Phones:   svc,
		Notifier: notifier,
		Health: handler.HealthInfo{
			StoreDriver: cfg.Store.Driver,
			FetchEngine: eng.Name(),
			Market:      profile.Source,
		},
	}, cfg, time.Now())

	// ── 8. HTTP server ──────────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// ── 9. Graceful shutdown ────────────────────────────────────────
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	delivered := make(chan struct{})
	go func() {
		notifier.Wait()
		close(delivered)
	}()
	select {
	case <-delivered:
	case <-shutdownCtx.Done():
		slog.Warn("pending webhook deliveries abandoned")
	}
	return nil
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

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(h))
}
