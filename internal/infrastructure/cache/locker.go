// Package cache holds the advisory station locks taken while opening a till.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// StationLocker grants at most one live lease per station
type StationLocker interface {
	Acquire(ctx context.Context, stationID uuid.UUID, ttl time.Duration) (string, error)
	Release(ctx context.Context, stationID uuid.UUID, token string) error
}

var (
	_ StationLocker = (*RedisStationLocker)(nil)
	_ StationLocker = (*InMemoryStationLocker)(nil)
)
