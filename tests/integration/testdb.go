// Package integration runs the retail stores against real PostgreSQL and
// Redis servers started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/erp/retail/internal/infrastructure/logger"
	"github.com/erp/retail/internal/infrastructure/migration"
	"github.com/erp/retail/internal/infrastructure/persistence"
	"github.com/erp/retail/internal/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestDB is a migrated PostgreSQL database in its own container
type TestDB struct {
	*testutil.TestStore
	DSN       string
	Container testcontainers.Container
}

// skipShort skips container backed tests under -short
func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// NewTestDB starts PostgreSQL, creates the schema the way create-schema does
// and applies every SQL patch.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("retail_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	// TEST_DB_DEBUG=1 prints every statement with its row-lock flag
	level := gormlogger.Error
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	sqlLog := logger.NewGormLogger(zaptest.NewLogger(t, zaptest.Level(zap.DebugLevel)), level)
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: sqlLog})
	require.NoError(t, err, "Failed to connect to database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	database := &persistence.Database{DB: db}
	require.NoError(t, database.CreateSchema(), "Failed to create schema")

	m := newMigrator(t, dsn)
	require.NoError(t, m.Up(), "Failed to apply patches")

	return &TestDB{
		TestStore: &testutil.TestStore{DB: db, Scope: database.Scope()},
		DSN:       dsn,
		Container: container,
	}
}

// newMigrator opens a dedicated connection; closing the migrator closes it
func newMigrator(t *testing.T, dsn string) *migration.Migrator {
	t.Helper()
	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	m, err := migration.New(conn, findMigrationsPath(t), zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// findMigrationsPath walks up from this file to the repository migrations/
func findMigrationsPath(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok)

	dir := filepath.Dir(filename)
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatal("Could not find migrations directory")
	return ""
}
