package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultStationKeyPrefix = "retail:station-lock:"

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisStationLocker keeps station locks in Redis so every process serving
// the same stations agrees on who is opening a till.
type RedisStationLocker struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisStationLocker connects to Redis and pings it
func NewRedisStationLocker(cfg RedisConfig) (*RedisStationLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStationLockerWithClient(client, ""), nil
}

// NewRedisStationLockerWithClient wraps an existing client
func NewRedisStationLockerWithClient(client *redis.Client, keyPrefix string) *RedisStationLocker {
	if keyPrefix == "" {
		keyPrefix = defaultStationKeyPrefix
	}
	return &RedisStationLocker{client: client, keyPrefix: keyPrefix}
}

// Acquire takes the station lock with SETNX. The returned token must be
// handed back to Release.
func (l *RedisStationLocker) Acquire(ctx context.Context, stationID uuid.UUID, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(stationID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire station lock: %w", err)
	}
	if !ok {
		return "", shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("station %s is locked by another process", stationID))
	}
	return token, nil
}

// Release frees the lock. A lock that expired and was taken over by
// someone else is left alone.
func (l *RedisStationLocker) Release(ctx context.Context, stationID uuid.UUID, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key(stationID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release station lock: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisStationLocker) Close() error {
	return l.client.Close()
}

func (l *RedisStationLocker) key(stationID uuid.UUID) string {
	return l.keyPrefix + stationID.String()
}
