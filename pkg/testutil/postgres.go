// Package testutil provides a migrated PostgreSQL database for integration
// tests.
//
// The database comes from TEST_DB_HOST (plus TEST_DB_PORT, TEST_DB_USER,
// TEST_DB_PASSWORD, TEST_DB_NAME) when set, or from a throwaway container when
// FERN_TESTCONTAINERS=1. Otherwise the calling test is skipped.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Logger returns a development logger for tests.
func Logger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

// Unique suffixes name so that tests sharing a database do not collide on
// natural keys.
func Unique(name string) string {
	return name + "-" + uuid.NewString()[:8]
}

// MigrationsPath is the absolute path of db/migrations.
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "db", "migrations")
}

// Postgres returns a migrated database or skips the test.
func Postgres(t *testing.T) database.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg, ok := configFromEnv()
	if !ok {
		if os.Getenv("FERN_TESTCONTAINERS") != "1" {
			t.Skip("no test database configured: set TEST_DB_HOST or FERN_TESTCONTAINERS=1")
		}
		cfg = startContainer(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := Logger()
	db, err := database.Open(ctx, cfg, logger)
	require.NoError(t, err, "failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: MigrationsPath()})
	require.NoError(t, migrations.Migrate(db.SqlDB(), cfg.Name), "failed to migrate test database")

	return db
}

func configFromEnv() (database.Config, bool) {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return database.Config{}, false
	}
	port, err := strconv.Atoi(envOr("TEST_DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}
	return database.Config{
		Host:     host,
		Port:     port,
		User:     envOr("TEST_DB_USER", "fern"),
		Password: envOr("TEST_DB_PASSWORD", "fern"),
		Name:     envOr("TEST_DB_NAME", "fern_test"),
	}, true
}

func startContainer(t *testing.T) database.Config {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "fern",
			"POSTGRES_PASSWORD": "fern",
			"POSTGRES_DB":       "fern_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return database.Config{
		Host:     host,
		Port:     port,
		User:     "fern",
		Password: "fern",
		Name:     "fern_test",
	}
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
