package guideline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/reviewguard/internal/cache"
	"github.com/nikhilbhutani/reviewguard/internal/models"
)

// ErrNotFound is returned when no guideline version exists for a policy.
var ErrNotFound = errors.New("guideline not found")

// Cache is the subset of cache.Cache the store uses.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Store struct {
	db    *pgxpool.Pool
	cache Cache
	ttl   time.Duration
}

// NewStore returns a store backed by db. c may be nil to disable caching.
func NewStore(db *pgxpool.Pool, c Cache, ttl time.Duration) *Store {
	return &Store{db: db, cache: c, ttl: ttl}
}

// Get returns the latest version of the policy's guideline text.
func (s *Store) Get(ctx context.Context, policyID string) (*models.Guideline, error) {
	if s.cache != nil {
		var g models.Guideline
		err := s.cache.Get(ctx, policyID, &g)
		if err == nil {
			return &g, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("guideline cache read failed", "policy_id", policyID, "error", err)
		}
	}

	g, err := s.latest(ctx, policyID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, policyID, g, s.ttl); err != nil {
			slog.Warn("guideline cache write failed", "policy_id", policyID, "error", err)
		}
	}
	return g, nil
}

func (s *Store) latest(ctx context.Context, policyID string) (*models.Guideline, error) {
	var g models.Guideline
	err := s.db.QueryRow(ctx,
		`SELECT policy_id, version, guidelines, created_at
		 FROM guidelines_prompt WHERE policy_id = $1
		 ORDER BY version DESC LIMIT 1`, policyID,
	).Scan(&g.PolicyID, &g.Version, &g.Text, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, policyID)
	}
	if err != nil {
		return nil, fmt.Errorf("get guideline %s: %w", policyID, err)
	}
	return &g, nil
}

// Seed stores text as a new version of the policy unless it matches the
// latest version already stored. It reports whether a version was written.
func (s *Store) Seed(ctx context.Context, policyID, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, fmt.Errorf("seed guideline %s: empty text", policyID)
	}

	current, err := s.latest(ctx, policyID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	next := 1
	if current != nil {
		if current.Text == text {
			return false, nil
		}
		next = current.Version + 1
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO guidelines_prompt (policy_id, version, guidelines) VALUES ($1, $2, $3)`,
		policyID, next, text,
	)
	if err != nil {
		return false, fmt.Errorf("seed guideline %s: %w", policyID, err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, policyID); err != nil {
			slog.Warn("guideline cache invalidation failed", "policy_id", policyID, "error", err)
		}
	}
	slog.Info("guideline seeded", "policy_id", policyID, "version", next)
	return true, nil
}

// SeedFile seeds the policy from a text file on disk.
func (s *Store) SeedFile(ctx context.Context, policyID, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read guideline file: %w", err)
	}
	return s.Seed(ctx, policyID, string(data))
}
