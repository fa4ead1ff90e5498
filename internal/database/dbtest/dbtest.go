// Package dbtest opens a migrated Postgres pool for integration tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/reviewguard/internal/config"
	"github.com/nikhilbhutani/reviewguard/internal/database"
)

// Pool connects to TEST_DATABASE_URL and applies migrations. The test is
// skipped when the variable is unset.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.RunMigrations(url))

	pool, err := database.NewPool(context.Background(), config.DatabaseConfig{
		URL:      url,
		MaxConns: 4,
		MinConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}
