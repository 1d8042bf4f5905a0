package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// InMemoryStationLocker keeps station locks in process memory.
// Suitable for a single server instance and for tests.
type InMemoryStationLocker struct {
	mu     sync.Mutex
	leases map[uuid.UUID]lease
	now    func() time.Time
}

// NewInMemoryStationLocker creates an empty locker
func NewInMemoryStationLocker() *InMemoryStationLocker {
	return &InMemoryStationLocker{
		leases: make(map[uuid.UUID]lease),
		now:    time.Now,
	}
}

// Acquire takes the lock unless a live lease exists
func (l *InMemoryStationLocker) Acquire(_ context.Context, stationID uuid.UUID, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, held := l.leases[stationID]; held && now.Before(current.expiresAt) {
		return "", shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("station %s is locked by another process", stationID))
	}

	token := uuid.NewString()
	l.leases[stationID] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

// Release frees the lock when token still owns it
func (l *InMemoryStationLocker) Release(_ context.Context, stationID uuid.UUID, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if current, held := l.leases[stationID]; held && current.token == token {
		delete(l.leases, stationID)
	}
	return nil
}

// Size returns the number of leases, expired ones included
func (l *InMemoryStationLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}
