package inventory

import (
	"fmt"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductStockItem is the balance of one (storable, branch, batch).
// Rows are created on the first movement and never deleted.
type ProductStockItem struct {
	shared.BaseEntity
	StorableID uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_item_key,priority:1"`
	BranchID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_item_key,priority:2"`
	BatchID    *uuid.UUID      `gorm:"type:uuid;index:idx_stock_item_key,priority:3"`
	Quantity   decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	// StockCost is the weighted average unit cost of the quantity on hand
	StockCost decimal.Decimal `gorm:"type:decimal(20,8);not null"`
}

// TableName returns the table name for GORM
func (ProductStockItem) TableName() string {
	return "product_stock_item"
}

// NewProductStockItem creates an empty balance row
func NewProductStockItem(storableID, branchID uuid.UUID, batchID *uuid.UUID) *ProductStockItem {
	return &ProductStockItem{
		BaseEntity: shared.NewBaseEntity(),
		StorableID: storableID,
		BranchID:   branchID,
		BatchID:    batchID,
		Quantity:   decimal.Zero,
		StockCost:  decimal.Zero,
	}
}

// Increase adds quantity and, when unitCost is given, recomputes the weighted
// stock cost as (oldQ*oldC + q*c) / (oldQ + q) rounded to costPlaces digits.
func (i *ProductStockItem) Increase(quantity decimal.Decimal, unitCost *decimal.Decimal, costPlaces int32) error {
	if !quantity.IsPositive() {
		return shared.OutOfRangef("quantity must be positive, got %s", quantity)
	}
	if unitCost != nil {
		if unitCost.IsNegative() {
			return shared.OutOfRangef("unit cost cannot be negative, got %s", unitCost)
		}
		oldQuantity := i.Quantity
		if oldQuantity.IsNegative() {
			oldQuantity = decimal.Zero
		}
		total := oldQuantity.Add(quantity)
		weighted := oldQuantity.Mul(i.StockCost).Add(quantity.Mul(*unitCost))
		i.StockCost = weighted.Div(total).RoundBank(costPlaces)
	}
	i.Quantity = i.Quantity.Add(quantity)
	return nil
}

// Decrease removes quantity. Nothing changes when the balance is not enough.
func (i *ProductStockItem) Decrease(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return shared.OutOfRangef("quantity must be positive, got %s", quantity)
	}
	if i.Quantity.LessThan(quantity) {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock: requested %s, available %s", quantity, i.Quantity))
	}
	i.Quantity = i.Quantity.Sub(quantity)
	return nil
}

// TotalCost returns quantity times stock cost
func (i *ProductStockItem) TotalCost() decimal.Decimal {
	return i.Quantity.Mul(i.StockCost)
}
