// Package testutil provides the sqlite backed store and the fixtures shared
// by the application and interface tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/infrastructure/persistence"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestStore is an in-memory database with every entity migrated
type TestStore struct {
	DB    *gorm.DB
	Scope *persistence.GormScope
}

// NewStore opens a private in-memory sqlite database for the test.
// A single connection keeps every transaction on the same database.
func NewStore(t *testing.T) *TestStore {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=0", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open sqlite database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(persistence.Entities()...), "Failed to migrate schema")

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return &TestStore{DB: db, Scope: persistence.NewGormScope(db)}
}

// Run executes fn in a store and fails the test when it returns an error
func (s *TestStore) Run(t *testing.T, fn func(ctx context.Context, st store.Store) error) {
	t.Helper()
	ctx := context.Background()
	err := s.Scope.Execute(ctx, func(st store.Store) error {
		return fn(ctx, st)
	})
	require.NoError(t, err)
}

// Try executes fn in a store and returns its error; the store rolls back on error
func (s *TestStore) Try(fn func(ctx context.Context, st store.Store) error) error {
	ctx := context.Background()
	return s.Scope.Execute(ctx, func(st store.Store) error {
		return fn(ctx, st)
	})
}
