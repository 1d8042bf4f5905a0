package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStationLocker_Acquire(t *testing.T) {
	locker := NewInMemoryStationLocker()
	ctx := context.Background()
	station := uuid.New()

	t.Run("first caller gets the lock", func(t *testing.T) {
		token, err := locker.Acquire(ctx, station, time.Minute)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
	})

	t.Run("second caller conflicts", func(t *testing.T) {
		_, err := locker.Acquire(ctx, station, time.Minute)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	})

	t.Run("other stations are independent", func(t *testing.T) {
		_, err := locker.Acquire(ctx, uuid.New(), time.Minute)
		require.NoError(t, err)
	})
}

func TestInMemoryStationLocker_Release(t *testing.T) {
	locker := NewInMemoryStationLocker()
	ctx := context.Background()
	station := uuid.New()

	token, err := locker.Acquire(ctx, station, time.Minute)
	require.NoError(t, err)

	t.Run("foreign token is ignored", func(t *testing.T) {
		require.NoError(t, locker.Release(ctx, station, "someone-else"))
		_, err := locker.Acquire(ctx, station, time.Minute)
		assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))
	})

	t.Run("owner releases", func(t *testing.T) {
		require.NoError(t, locker.Release(ctx, station, token))
		assert.Equal(t, 0, locker.Size())
		_, err := locker.Acquire(ctx, station, time.Minute)
		assert.NoError(t, err)
	})
}

func TestInMemoryStationLocker_Expiry(t *testing.T) {
	locker := NewInMemoryStationLocker()
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }
	ctx := context.Background()
	station := uuid.New()

	stale, err := locker.Acquire(ctx, station, 30*time.Second)
	require.NoError(t, err)

	now = now.Add(31 * time.Second)
	fresh, err := locker.Acquire(ctx, station, 30*time.Second)
	require.NoError(t, err)

	// the expired owner must not free the new lease
	require.NoError(t, locker.Release(ctx, station, stale))
	_, err = locker.Acquire(ctx, station, 30*time.Second)
	assert.True(t, errors.Is(err, shared.ErrConcurrencyConflict))

	require.NoError(t, locker.Release(ctx, station, fresh))
}

func TestInMemoryStationLocker_Concurrent(t *testing.T) {
	locker := NewInMemoryStationLocker()
	ctx := context.Background()
	station := uuid.New()

	var won atomic.Int32
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := locker.Acquire(ctx, station, time.Minute); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
}

func TestStationLockerFactory_Create(t *testing.T) {
	t.Run("redis disabled", func(t *testing.T) {
		locker, err := NewStationLockerFactory(config.RedisConfig{}).Create()
		require.NoError(t, err)
		defer locker.Close()

		_, ok := locker.(nopCloser)
		assert.True(t, ok)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		locker, err := NewStationLockerFactory(cfg).Create()
		require.NoError(t, err)
		_, ok := locker.(nopCloser)
		assert.True(t, ok)
	})

	t.Run("unreachable redis without fallback", func(t *testing.T) {
		cfg := config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}
		_, err := NewStationLockerFactory(cfg, WithInMemoryFallback(false)).Create()
		assert.Error(t, err)
	})
}
