// Package app wires the shared components used by the API server and the
// worker.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/reviewguard/internal/cache"
	"github.com/nikhilbhutani/reviewguard/internal/config"
	"github.com/nikhilbhutani/reviewguard/internal/database"
	"github.com/nikhilbhutani/reviewguard/internal/guideline"
	"github.com/nikhilbhutani/reviewguard/internal/ingest"
	"github.com/nikhilbhutani/reviewguard/internal/llm"
	"github.com/nikhilbhutani/reviewguard/internal/moderation"
	"github.com/nikhilbhutani/reviewguard/internal/results"
	"github.com/nikhilbhutani/reviewguard/internal/storage"
	"github.com/nikhilbhutani/reviewguard/internal/upload"
)

type App struct {
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Blobs      *storage.Blobs
	Registry   *upload.Registry
	Results    *results.Store
	Guidelines *guideline.Store
	Pipeline   *ingest.Pipeline
}

// New connects to Postgres (retrying), applies migrations and builds every
// component. Redis being down is logged, not fatal: the guideline cache
// falls back to the database.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		db.Close()
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, guideline cache disabled until it returns", "error", err)
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("storage: %w", err)
	}

	gw, err := llm.NewGateway(cfg.LLM)
	if err != nil {
		db.Close()
		rdb.Close()
		return nil, fmt.Errorf("llm: %w", err)
	}

	a := &App{
		DB:         db,
		Redis:      rdb,
		Blobs:      storage.NewBlobs(store, cfg.Storage.Bucket, cfg.Processing.ScratchDir),
		Registry:   upload.NewRegistry(db),
		Results:    results.NewStore(db),
		Guidelines: guideline.NewStore(db, cache.NewCache(rdb, "guideline:"), cfg.Guidelines.CacheTTL),
	}
	a.Pipeline = ingest.NewPipeline(
		a.Registry,
		a.Blobs,
		a.Guidelines,
		moderation.NewClassifier(gw, cfg.LLM.Temperature, cfg.LLM.Structured),
		a.Results,
		cfg.Guidelines.PolicyID,
	)

	slog.Info("components ready",
		"storage", cfg.Storage.Backend,
		"bucket", cfg.Storage.Bucket,
		"llm_provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)
	return a, nil
}

func (a *App) Close() {
	a.Redis.Close()
	a.DB.Close()
}
