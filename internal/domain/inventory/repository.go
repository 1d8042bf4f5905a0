package inventory

import (
	"context"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// StockItemRepository persists ProductStockItem rows
type StockItemRepository interface {
	shared.Repository[ProductStockItem]
	// FindForUpdate loads the (storable, branch, batch) row holding a row lock
	// until the end of the transaction. Returns ErrNotFound when absent.
	FindForUpdate(ctx context.Context, storableID, branchID uuid.UUID, batchID *uuid.UUID) (*ProductStockItem, error)
	// FindByStorable lists the rows of a storable, optionally restricted to a branch
	FindByStorable(ctx context.Context, storableID uuid.UUID, branchID *uuid.UUID) ([]ProductStockItem, error)
}

// HistoryRepository appends and reads StockTransactionHistory rows
type HistoryRepository interface {
	Append(ctx context.Context, entry *StockTransactionHistory) error
	// FindFor returns the rows of (storable, branch, batch) in append order
	FindFor(ctx context.Context, storableID, branchID uuid.UUID, batchID *uuid.UUID) ([]StockTransactionHistory, error)
	// FindByObject returns the rows caused by a domain object
	FindByObject(ctx context.Context, objectID uuid.UUID) ([]StockTransactionHistory, error)
}
