package cache

import (
	"fmt"

	"github.com/erp/retail/internal/infrastructure/config"
	"go.uber.org/zap"
)

// StationLockerFactory picks the station locker implementation from configuration
type StationLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StationLockerFactoryOption is a functional option for configuring the factory
type StationLockerFactoryOption func(*StationLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StationLockerFactoryOption {
	return func(f *StationLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// process-local locks. Default is true.
func WithInMemoryFallback(allow bool) StationLockerFactoryOption {
	return func(f *StationLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStationLockerFactory creates a new factory
func NewStationLockerFactory(cfg config.RedisConfig, opts ...StationLockerFactoryOption) *StationLockerFactory {
	f := &StationLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Locker is what the factory hands out: the till service port plus a way to
// free resources on shutdown.
type Locker interface {
	StationLocker
	Close() error
}

// Create returns a Redis locker when Redis is enabled and reachable, and an
// in-memory one otherwise (if fallback is allowed).
func (f *StationLockerFactory) Create() (Locker, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("redis disabled, using in-memory station locks")
		return nopCloser{NewInMemoryStationLocker()}, nil
	}

	locker, err := NewRedisStationLocker(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis station locks", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for station locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory station locks. "+
		"Two servers may open a till on the same station.",
		zap.Error(err),
	)
	return nopCloser{NewInMemoryStationLocker()}, nil
}

type nopCloser struct {
	*InMemoryStationLocker
}

func (nopCloser) Close() error { return nil }
