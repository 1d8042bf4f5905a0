// Package inventory holds the stock ledger, the only component allowed to
// change stock balances.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Movement describes one change of a (storable, branch, batch) balance
type Movement struct {
	StorableID uuid.UUID
	BranchID   uuid.UUID
	BatchID    *uuid.UUID
	Quantity   decimal.Decimal
	Type       inventory.HistoryType
	// ObjectID is the domain object causing the movement (sale item, receiving item...)
	ObjectID uuid.UUID
	// UnitCost recomputes the weighted stock cost of increases when set
	UnitCost *decimal.Decimal
}

// StockLedger maintains per (storable, branch, batch) balances with a
// complete history. Every mutation locks the balance row until the store
// commits.
type StockLedger struct {
	logger    *zap.Logger
	publisher shared.EventPublisher
}

// NewStockLedger creates a StockLedger
func NewStockLedger(logger *zap.Logger) *StockLedger {
	return &StockLedger{logger: logger}
}

// WithPublisher makes decreases below the storable minimum publish
// StockBelowMinimum
func (l *StockLedger) WithPublisher(publisher shared.EventPublisher) *StockLedger {
	l.publisher = publisher
	return l
}

// IncreaseStock adds quantity, creating the balance row on the first movement
func (l *StockLedger) IncreaseStock(ctx context.Context, st store.Store, c shared.Context, m Movement) (*inventory.ProductStockItem, error) {
	storable, err := l.validate(ctx, st, m)
	if err != nil {
		return nil, err
	}
	if m.UnitCost != nil && m.UnitCost.IsNegative() {
		return nil, shared.OutOfRangef("unit cost cannot be negative: %s", m.UnitCost)
	}

	item, err := st.StockItems().FindForUpdate(ctx, storable.ID, m.BranchID, m.BatchID)
	if errors.Is(err, shared.ErrNotFound) {
		item = inventory.NewProductStockItem(storable.ID, m.BranchID, m.BatchID)
	} else if err != nil {
		return nil, fmt.Errorf("lock stock item: %w", err)
	}

	if err := item.Increase(m.Quantity, m.UnitCost, costPlaces(c)); err != nil {
		return nil, err
	}
	if err := st.StockItems().Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save stock item: %w", err)
	}

	entry := inventory.NewStockTransactionHistory(item, m.Quantity, m.Type, c.UserID, c.Now()).
		WithObject(m.ObjectID).
		WithUnitCost(m.UnitCost)
	if err := st.StockHistory().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append stock history: %w", err)
	}

	l.logger.Debug("stock increased",
		zap.String("storable_id", storable.ID.String()),
		zap.String("branch_id", m.BranchID.String()),
		zap.String("type", m.Type.String()),
		zap.String("quantity", m.Quantity.String()),
		zap.String("balance", item.Quantity.String()),
	)
	return item, nil
}

// DecreaseStock removes quantity. A missing or short balance fails with
// INSUFFICIENT_STOCK and changes nothing.
func (l *StockLedger) DecreaseStock(ctx context.Context, st store.Store, c shared.Context, m Movement) (*inventory.ProductStockItem, error) {
	storable, err := l.validate(ctx, st, m)
	if err != nil {
		return nil, err
	}

	item, err := st.StockItems().FindForUpdate(ctx, storable.ID, m.BranchID, m.BatchID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: requested %s, available 0", m.Quantity))
	}
	if err != nil {
		return nil, fmt.Errorf("lock stock item: %w", err)
	}

	if err := item.Decrease(m.Quantity); err != nil {
		return nil, err
	}
	if err := st.StockItems().Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save stock item: %w", err)
	}

	entry := inventory.NewStockTransactionHistory(item, m.Quantity.Neg(), m.Type, c.UserID, c.Now()).
		WithObject(m.ObjectID)
	if err := st.StockHistory().Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append stock history: %w", err)
	}

	if l.publisher != nil && storable.MinimumQuantity.IsPositive() && item.Quantity.LessThan(storable.MinimumQuantity) {
		if err := l.publisher.Publish(ctx, inventory.NewStockBelowMinimumEvent(item, storable.MinimumQuantity)); err != nil {
			return nil, err
		}
	}
	return item, nil
}

func (l *StockLedger) validate(ctx context.Context, st store.Store, m Movement) (*catalog.Storable, error) {
	if !m.Quantity.IsPositive() {
		return nil, shared.OutOfRangef("stock quantity must be positive, got %s", m.Quantity)
	}
	if !m.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid stock history type %q", m.Type))
	}
	storable, err := st.Storables().FindByID(ctx, m.StorableID)
	if err != nil {
		return nil, fmt.Errorf("load storable %s: %w", m.StorableID, err)
	}
	if err := storable.ValidateBatch(m.BatchID); err != nil {
		return nil, err
	}
	if m.BatchID != nil {
		batch, err := st.Batches().FindByID(ctx, *m.BatchID)
		if err != nil {
			return nil, fmt.Errorf("load batch %s: %w", *m.BatchID, err)
		}
		if batch.StorableID != storable.ID {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "batch belongs to another storable")
		}
	}
	return storable, nil
}

// GetBalanceForBranch sums the balances of every batch of storable in branch
func (l *StockLedger) GetBalanceForBranch(ctx context.Context, st store.Store, storableID, branchID uuid.UUID) (decimal.Decimal, error) {
	items, err := st.StockItems().FindByStorable(ctx, storableID, &branchID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumQuantities(items), nil
}

// GetBalance sums the balances of storable across every branch
func (l *StockLedger) GetBalance(ctx context.Context, st store.Store, storableID uuid.UUID) (decimal.Decimal, error) {
	items, err := st.StockItems().FindByStorable(ctx, storableID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return sumQuantities(items), nil
}

// GetStockItems lists the balance rows of storable, optionally in one branch
func (l *StockLedger) GetStockItems(ctx context.Context, st store.Store, storableID uuid.UUID, branchID *uuid.UUID) ([]inventory.ProductStockItem, error) {
	return st.StockItems().FindByStorable(ctx, storableID, branchID)
}

// History returns the movements of one balance row in append order
func (l *StockLedger) History(ctx context.Context, st store.Store, storableID, branchID uuid.UUID, batchID *uuid.UUID) ([]inventory.StockTransactionHistory, error) {
	return st.StockHistory().FindFor(ctx, storableID, branchID, batchID)
}

func sumQuantities(items []inventory.ProductStockItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Quantity)
	}
	return total
}

func costPlaces(c shared.Context) int32 {
	if c.Params == nil {
		return valueobject.MoneyPrecision
	}
	return valueobject.ClampCostPrecision(c.Params.Int(param.CostPrecisionDigits))
}
