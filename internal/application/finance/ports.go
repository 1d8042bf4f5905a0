// Package finance holds the payment, payment group, payment method and till
// services. Every operation runs inside the caller's store.
package finance

import (
	"context"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// AttachmentStorage stores documents attached to payments (scanned bills,
// receipts). Keys are chosen by the caller.
type AttachmentStorage interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// StationLocker serializes till opening per station across processes
type StationLocker interface {
	// Acquire fails with CONCURRENCY_CONFLICT when another holder owns the lock
	Acquire(ctx context.Context, stationID uuid.UUID, ttl time.Duration) (token string, err error)
	// Release frees the lock if token still owns it
	Release(ctx context.Context, stationID uuid.UUID, token string) error
}

// PaymentObserver is told about payments of owned groups changing their paid
// state, so the owner can react (a sale flags itself paid, commissions are
// generated).
type PaymentObserver interface {
	PaymentPaid(ctx context.Context, st store.Store, c shared.Context, payment *finance.Payment, group *finance.PaymentGroup) error
	PaymentUnpaid(ctx context.Context, st store.Store, c shared.Context, payment *finance.Payment, group *finance.PaymentGroup) error
}
