package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/retail/internal/infrastructure/config"
	"github.com/erp/retail/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Database owns the gorm handle and its connection pool
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects to postgres, sizes the pool from cfg and checks that
// the server answers. Statements are logged through zl at the level derived
// from logCfg.
func NewDatabase(cfg *config.DatabaseConfig, logCfg *config.LogConfig, zl *zap.Logger) (*Database, error) {
	sqlLog := logger.NewGormLogger(zl, logger.MapGormLogLevel(logCfg.Level),
		logger.WithSlowThreshold(logCfg.SlowQuery),
		logger.WithIgnoreRecordNotFoundError(true),
	)
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: sqlLog,
		// every write already runs inside a store scope transaction
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.DBName, err)
	}

	d := &Database{DB: db}
	pool, err := d.pool()
	if err != nil {
		return nil, err
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	pool.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return d, nil
}

func (d *Database) pool() (*sql.DB, error) {
	pool, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	return pool, nil
}

// Close closes every pooled connection
func (d *Database) Close() error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.Close()
}

// Ping checks that a pooled connection still answers
func (d *Database) Ping(ctx context.Context) error {
	pool, err := d.pool()
	if err != nil {
		return err
	}
	return pool.PingContext(ctx)
}

// Scope returns the unit of work factory over this database
func (d *Database) Scope() *GormScope {
	return NewGormScope(d.DB)
}
