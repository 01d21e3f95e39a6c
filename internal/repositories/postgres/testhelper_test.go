package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/asakaida/kanmon/internal/infrastructure/database"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const migrationsPath = "../../infrastructure/database/migrations/postgres"

// SetupTestDB starts a PostgreSQL container and runs migrations.
// The container is terminated when the test finishes.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("kanmon_test"),
		tcpostgres.WithUsername("kanmon"),
		tcpostgres.WithPassword("kanmon"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	pg := &database.Postgres{DB: db}
	if err := pg.RunMigrations(migrationsPath); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, db) })
	return db
}

// CleanupTestDB removes non-seed data and closes the connection
func CleanupTestDB(t *testing.T, db *sql.DB) {
	t.Helper()

	statements := []string{
		"DELETE FROM functionalities WHERE authority_name NOT IN ('ROLE_ADMIN', 'ROLE_USER', 'ROLE_ANONYMOUS')",
		"DELETE FROM authorities WHERE name NOT IN ('ROLE_ADMIN', 'ROLE_USER', 'ROLE_ANONYMOUS')",
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Logf("Warning: Failed to clean up: %v", fmt.Errorf("%s: %w", stmt, err))
		}
	}

	if err := db.Close(); err != nil {
		t.Logf("Warning: Failed to close database: %v", err)
	}
}
