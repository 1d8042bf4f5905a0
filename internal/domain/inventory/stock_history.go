package inventory

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HistoryType is the cause of a stock movement
type HistoryType string

const (
	HistoryTypeInitial              HistoryType = "initial"
	HistoryTypeReceived             HistoryType = "received"
	HistoryTypeSold                 HistoryType = "sold"
	HistoryTypeReturned             HistoryType = "returned"
	HistoryTypeTransferredIn        HistoryType = "transferred_in"
	HistoryTypeTransferredOut       HistoryType = "transferred_out"
	HistoryTypeLoaned               HistoryType = "loaned"
	HistoryTypeReturnedLoan         HistoryType = "returned_loan"
	HistoryTypeDecreased            HistoryType = "decreased"
	HistoryTypeInventoryAdjust      HistoryType = "inventory_adjust"
	HistoryTypeProductionAllocated  HistoryType = "production_allocated"
	HistoryTypeProductionProduced   HistoryType = "production_produced"
	HistoryTypeProductionReturned   HistoryType = "production_returned"
	HistoryTypeConsignmentReturned  HistoryType = "consignment_returned"
	HistoryTypeCancelledSale        HistoryType = "cancelled_sale"
	HistoryTypeReturnedSaleUndo     HistoryType = "returned_sale_undo"
	HistoryTypeImported             HistoryType = "imported"
	HistoryTypeStockDecrease        HistoryType = "stock_decrease"
	HistoryTypeWorkOrderUsed        HistoryType = "wo_used"
	HistoryTypeWorkOrderReturned    HistoryType = "wo_returned"
	HistoryTypeManualAdjust         HistoryType = "manual_adjust"
	HistoryTypeSaleReserved         HistoryType = "sale_reserved"
	HistoryTypeSaleReservedReturned HistoryType = "sale_reserved_returned"
)

// IsValid returns true if the type is known
func (t HistoryType) IsValid() bool {
	switch t {
	case HistoryTypeInitial, HistoryTypeReceived, HistoryTypeSold, HistoryTypeReturned,
		HistoryTypeTransferredIn, HistoryTypeTransferredOut, HistoryTypeLoaned,
		HistoryTypeReturnedLoan, HistoryTypeDecreased, HistoryTypeInventoryAdjust,
		HistoryTypeProductionAllocated, HistoryTypeProductionProduced,
		HistoryTypeProductionReturned, HistoryTypeConsignmentReturned,
		HistoryTypeCancelledSale, HistoryTypeReturnedSaleUndo, HistoryTypeImported, HistoryTypeStockDecrease,
		HistoryTypeWorkOrderUsed, HistoryTypeWorkOrderReturned, HistoryTypeManualAdjust,
		HistoryTypeSaleReserved, HistoryTypeSaleReservedReturned:
		return true
	}
	return false
}

// String returns the string representation of HistoryType
func (t HistoryType) String() string {
	return string(t)
}

// StockTransactionHistory is an append-only ledger row. Quantity is signed:
// positive for increases, negative for decreases.
type StockTransactionHistory struct {
	shared.BaseEntity
	StorableID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_stock_history_key,priority:1"`
	BranchID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_stock_history_key,priority:2"`
	BatchID       *uuid.UUID       `gorm:"type:uuid;index:idx_stock_history_key,priority:3"`
	StockItemID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	Date          time.Time        `gorm:"not null"`
	ResponsibleID uuid.UUID        `gorm:"type:uuid"`
	Quantity      decimal.Decimal  `gorm:"type:decimal(20,3);not null"`
	StockCost     decimal.Decimal  `gorm:"type:decimal(20,8);not null"`
	UnitCost      *decimal.Decimal `gorm:"type:decimal(20,8)"`
	Type          HistoryType      `gorm:"type:varchar(30);not null;index"`
	// ObjectID references the domain object that caused the movement
	ObjectID *uuid.UUID `gorm:"type:uuid;index"`
	// Seq orders rows appended inside the same instant
	Seq int64 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (StockTransactionHistory) TableName() string {
	return "stock_transaction_history"
}

// NewStockTransactionHistory records a movement applied to item
func NewStockTransactionHistory(item *ProductStockItem, quantity decimal.Decimal, historyType HistoryType, responsibleID uuid.UUID, date time.Time) *StockTransactionHistory {
	return &StockTransactionHistory{
		BaseEntity:    shared.NewBaseEntity(),
		StorableID:    item.StorableID,
		BranchID:      item.BranchID,
		BatchID:       item.BatchID,
		StockItemID:   item.ID,
		Date:          date,
		ResponsibleID: responsibleID,
		Quantity:      quantity,
		StockCost:     item.StockCost,
		Type:          historyType,
		Seq:           time.Now().UnixNano(),
	}
}

// WithObject sets the causing domain object
func (h *StockTransactionHistory) WithObject(objectID uuid.UUID) *StockTransactionHistory {
	if objectID != uuid.Nil {
		h.ObjectID = &objectID
	}
	return h
}

// WithUnitCost records the cost the movement was made with
func (h *StockTransactionHistory) WithUnitCost(cost *decimal.Decimal) *StockTransactionHistory {
	h.UnitCost = cost
	return h
}

// IsIncrease reports whether the row adds stock
func (h *StockTransactionHistory) IsIncrease() bool {
	return h.Quantity.IsPositive()
}
