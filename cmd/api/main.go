package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/reviewguard/internal/api"
	"github.com/nikhilbhutani/reviewguard/internal/api/handlers"
	"github.com/nikhilbhutani/reviewguard/internal/app"
	"github.com/nikhilbhutani/reviewguard/internal/config"
	"github.com/nikhilbhutani/reviewguard/internal/ingest"
	"github.com/nikhilbhutani/reviewguard/internal/queue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if cfg.Guidelines.File != "" {
		if _, err := a.Guidelines.SeedFile(ctx, cfg.Guidelines.PolicyID, cfg.Guidelines.File); err != nil {
			slog.Error("failed to seed guidelines", "error", err)
			os.Exit(1)
		}
	}

	var processor handlers.Processor
	switch cfg.Processing.Mode {
	case config.ModeInline:
		processor = ingest.NewInline(a.Pipeline, cfg.Processing.TaskTimeout)
	default:
		qc := queue.NewClient(cfg.Redis)
		defer qc.Close()
		processor = queue.NewDispatcher(qc, cfg.Processing.TaskTimeout)
	}

	router := api.NewRouter(api.Deps{
		Blobs:     a.Blobs,
		Registry:  a.Registry,
		Results:   a.Results,
		Processor: processor,
		Checks: map[string]handlers.Check{
			"database": a.DB.Ping,
			"redis":    func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		},
		JWTSecret:      cfg.Auth.JWTSecret,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// Inline processing holds the request open for the whole run, so there is
	// no write timeout.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("starting API server", "addr", cfg.Addr(), "tls", cfg.TLSEnabled(), "process_mode", cfg.Processing.Mode)
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
