// Package dbtest starts a throwaway PostgreSQL for store integration tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/filmforge/academy/internal/platform/database"
)

const image = "postgres:16-alpine"

// New starts a migrated PostgreSQL container and returns a pool connected to
// it. The test is skipped in short mode or when no container runtime is
// available.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, image,
		postgres.WithDatabase("ffa"),
		postgres.WithUsername("ffa"),
		postgres.WithPassword("ffa"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	db, err := database.New(ctx, url, 5, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(db.Close)

	if err := database.Migrate(ctx, db.Pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db.Pool
}

// SeedCourse inserts a course row for tests that need a parent course.
func SeedCourse(t *testing.T, pool *pgxpool.Pool, id, title, category string) {
	t.Helper()
	if _, err := pool.Exec(context.Background(),
		`INSERT INTO academy_courses (id, title, category) VALUES ($1, $2, $3)`,
		id, title, category,
	); err != nil {
		t.Fatalf("seed course %s: %v", id, err)
	}
}
