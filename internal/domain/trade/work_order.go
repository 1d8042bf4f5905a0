package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WorkOrderStatus represents the status of a work order
type WorkOrderStatus string

const (
	WorkOrderStatusOpened     WorkOrderStatus = "opened"
	WorkOrderStatusInProgress WorkOrderStatus = "work_in_progress"
	WorkOrderStatusFinished   WorkOrderStatus = "work_finished"
	WorkOrderStatusDelivered  WorkOrderStatus = "delivered"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder is a repair or service job, possibly linked to a sale
type WorkOrder struct {
	shared.BaseAggregateRoot
	Status       WorkOrderStatus `gorm:"type:varchar(20);not null"`
	SaleID       *uuid.UUID      `gorm:"type:uuid;index"`
	BranchID     uuid.UUID       `gorm:"type:uuid;not null"`
	ClientID     *uuid.UUID      `gorm:"type:uuid"`
	Description  string          `gorm:"type:text"`
	OpenDate     time.Time       `gorm:"not null"`
	CancelDate   *time.Time
	CancelReason string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (WorkOrder) TableName() string {
	return "work_order"
}

// NewWorkOrder creates an opened work order
func NewWorkOrder(branchID uuid.UUID, description string, at time.Time) *WorkOrder {
	return &WorkOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            WorkOrderStatusOpened,
		BranchID:          branchID,
		Description:       description,
		OpenDate:          at,
	}
}

// CanCancel reports a work order neither delivered nor cancelled
func (w *WorkOrder) CanCancel() bool {
	return w.Status != WorkOrderStatusDelivered && w.Status != WorkOrderStatusCancelled
}

// Cancel cancels the work order recording reason
func (w *WorkOrder) Cancel(reason string, at time.Time) error {
	if !w.CanCancel() {
		return shared.InvalidStatef("cannot cancel work order %d in status %s", w.Identifier, w.Status)
	}
	w.Status = WorkOrderStatusCancelled
	w.CancelReason = reason
	w.CancelDate = &at
	return nil
}

// WorkOrderItem is a part used by a work order. When paired with a SaleItem
// both share one stock movement.
type WorkOrderItem struct {
	shared.BaseEntity
	WorkOrderID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellableID        uuid.UUID       `gorm:"type:uuid;not null"`
	SaleItemID        *uuid.UUID      `gorm:"type:uuid;uniqueIndex"`
	BatchID           *uuid.UUID      `gorm:"type:uuid"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	QuantityDecreased decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	Price             decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

// TableName returns the table name for GORM
func (WorkOrderItem) TableName() string {
	return "work_order_item"
}

// NewWorkOrderItem creates a work order item
func NewWorkOrderItem(workOrderID, sellableID uuid.UUID, quantity, price decimal.Decimal) (*WorkOrderItem, error) {
	if !quantity.IsPositive() {
		return nil, shared.OutOfRangef("work order quantity must be positive: %s", quantity)
	}
	return &WorkOrderItem{
		BaseEntity:        shared.NewBaseEntity(),
		WorkOrderID:       workOrderID,
		SellableID:        sellableID,
		Quantity:          quantity,
		QuantityDecreased: decimal.Zero,
		Price:             price,
	}, nil
}

// PairWith links the item to a sale item of the same sellable
func (w *WorkOrderItem) PairWith(item *SaleItem) error {
	if w.SellableID != item.SellableID {
		return shared.NewDomainError(shared.CodeInvalidInput, "paired items must share the sellable")
	}
	id := item.ID
	w.SaleItemID = &id
	return nil
}

// PairedDecreased is the quantity already taken from stock by either item of
// a sale item / work order item pair.
func PairedDecreased(item *SaleItem, wo *WorkOrderItem) decimal.Decimal {
	if wo == nil {
		return item.QuantityDecreased
	}
	return decimal.Max(item.QuantityDecreased, wo.QuantityDecreased)
}
