package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivingStatus represents the status of a receiving order
type ReceivingStatus string

const (
	ReceivingStatusPending ReceivingStatus = "pending"
	ReceivingStatusClosed  ReceivingStatus = "closed"
)

// ReceivingInvoice is the supplier invoice a receiving is based on
type ReceivingInvoice struct {
	shared.BaseEntity
	InvoiceNumber  int64
	SupplierID     uuid.UUID       `gorm:"type:uuid;not null"`
	BranchID       uuid.UUID       `gorm:"type:uuid;not null"`
	TransporterID  *uuid.UUID      `gorm:"type:uuid"`
	GroupID        *uuid.UUID      `gorm:"type:uuid"`
	FreightType    FreightType     `gorm:"type:varchar(5)"`
	FreightTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	SurchargeValue decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IcmsTotal      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IpiTotal       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	InvoiceTotal   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Notes          string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReceivingInvoice) TableName() string {
	return "receiving_invoice"
}

// NewReceivingInvoice creates an empty invoice
func NewReceivingInvoice(supplierID, branchID uuid.UUID, number int64) *ReceivingInvoice {
	return &ReceivingInvoice{
		BaseEntity:     shared.NewBaseEntity(),
		InvoiceNumber:  number,
		SupplierID:     supplierID,
		BranchID:       branchID,
		FreightType:    FreightFOB,
		FreightTotal:   decimal.Zero,
		SurchargeValue: decimal.Zero,
		DiscountValue:  decimal.Zero,
		IcmsTotal:      decimal.Zero,
		IpiTotal:       decimal.Zero,
		InvoiceTotal:   decimal.Zero,
	}
}

// ReceivingOrder brings goods of one or more purchases into stock
type ReceivingOrder struct {
	shared.BaseAggregateRoot
	Status        ReceivingStatus `gorm:"type:varchar(20);not null"`
	BranchID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	ResponsibleID uuid.UUID       `gorm:"type:uuid;not null"`
	InvoiceID     *uuid.UUID      `gorm:"type:uuid"`
	ReceivalDate  time.Time       `gorm:"not null"`
	ConfirmDate   *time.Time
	Cfop          string `gorm:"type:varchar(10)"`
	Notes         string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReceivingOrder) TableName() string {
	return "receiving_order"
}

// NewReceivingOrder creates a pending receiving
func NewReceivingOrder(branchID, responsibleID uuid.UUID, at time.Time) *ReceivingOrder {
	return &ReceivingOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            ReceivingStatusPending,
		BranchID:          branchID,
		ResponsibleID:     responsibleID,
		ReceivalDate:      at,
	}
}

// Confirm closes the receiving
func (r *ReceivingOrder) Confirm(at time.Time) error {
	if r.Status != ReceivingStatusPending {
		return shared.InvalidStatef("cannot confirm receiving %d in status %s", r.Identifier, r.Status)
	}
	r.Status = ReceivingStatusClosed
	r.ConfirmDate = &at
	return nil
}

// ReceivingOrderItem is a received line, linked to a PurchaseItem or standalone
type ReceivingOrderItem struct {
	shared.BaseEntity
	ReceivingOrderID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellableID       uuid.UUID       `gorm:"type:uuid;not null"`
	PurchaseItemID   *uuid.UUID      `gorm:"type:uuid;index"`
	ParentItemID     *uuid.UUID      `gorm:"type:uuid"`
	BatchID          *uuid.UUID      `gorm:"type:uuid"`
	Quantity         decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	Cost             decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	IcmsValue        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IpiValue         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

// TableName returns the table name for GORM
func (ReceivingOrderItem) TableName() string {
	return "receiving_order_item"
}

// NewReceivingOrderItem creates an item for the receiving
func NewReceivingOrderItem(receivingID, sellableID uuid.UUID, quantity, cost decimal.Decimal) (*ReceivingOrderItem, error) {
	if !quantity.IsPositive() {
		return nil, shared.OutOfRangef("received quantity must be positive: %s", quantity)
	}
	if cost.IsNegative() {
		return nil, shared.OutOfRangef("cost cannot be negative: %s", cost)
	}
	return &ReceivingOrderItem{
		BaseEntity:       shared.NewBaseEntity(),
		ReceivingOrderID: receivingID,
		SellableID:       sellableID,
		Quantity:         quantity,
		Cost:             cost,
		IcmsValue:        decimal.Zero,
		IpiValue:         decimal.Zero,
	}, nil
}

// Total is quantity x cost
func (i *ReceivingOrderItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.Cost)
}

// PurchaseReceivingMap links a receiving order to a purchase order
type PurchaseReceivingMap struct {
	shared.BaseEntity
	PurchaseID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_receiving"`
	ReceivingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_purchase_receiving"`
}

// TableName returns the table name for GORM
func (PurchaseReceivingMap) TableName() string {
	return "purchase_receiving_map"
}

// NewPurchaseReceivingMap links purchase and receiving
func NewPurchaseReceivingMap(purchaseID, receivingID uuid.UUID) *PurchaseReceivingMap {
	return &PurchaseReceivingMap{
		BaseEntity:  shared.NewBaseEntity(),
		PurchaseID:  purchaseID,
		ReceivingID: receivingID,
	}
}
