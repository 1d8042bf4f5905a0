// Package migration applies the versioned SQL patches that follow the base
// schema created by AutoMigrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator applies the SQL patches in dir to one postgres database
type Migrator struct {
	migrate *migrate.Migrate
	dir     string
	logger  *zap.Logger
}

// New creates a Migrator reading patches from dir. Closing the Migrator
// closes db.
func New(db *sql.DB, dir string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to open patches in %s: %w", dir, err)
	}
	m.Log = migrateLogger{logger.Named("migrate")}
	return &Migrator{migrate: m, dir: dir, logger: logger}, nil
}

// migrateLogger forwards golang-migrate's progress lines to zap at debug
type migrateLogger struct{ zl *zap.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.zl.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return l.zl.Core().Enabled(zap.DebugLevel)
}

// Up applies every pending patch
func (m *Migrator) Up() error {
	return m.run("up", m.migrate.Up)
}

// Down rolls back n patches, or every patch when n <= 0
func (m *Migrator) Down(n int) error {
	if n <= 0 {
		return m.run("down", m.migrate.Down)
	}
	return m.run(fmt.Sprintf("down %d", n), func() error { return m.migrate.Steps(-n) })
}

// run treats ErrNoChange as success and logs the resulting version
func (m *Migrator) run(action string, step func() error) error {
	err := step()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		m.logger.Info("Nothing to migrate", zap.String("action", action))
		return nil
	case err != nil:
		return fmt.Errorf("migrate %s: %w", action, err)
	}
	return m.logVersion("Migrated " + action)
}

// Patch migrates up to and including the named patch. A patch already
// applied is left alone.
func (m *Migrator) Patch(name string) error {
	p, err := FindPatch(m.dir, name)
	if err != nil {
		return err
	}

	current, dirty, err := m.Version()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database is dirty at version %d; fix it before patching", current)
	}
	if current >= p.Version {
		m.logger.Info("Patch already applied",
			zap.String("patch", p.String()),
			zap.Uint("version", current),
		)
		return nil
	}

	m.logger.Info("Applying patch", zap.String("patch", p.String()))
	if err := m.migrate.Migrate(p.Version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("patch %s failed: %w", p, err)
	}
	return m.logVersion("Patch applied")
}

// Version returns the current version. An empty database is version 0.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close releases the patch source and the database connection
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}

func (m *Migrator) logVersion(msg string) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	m.logger.Info(msg, zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
