package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseStatus represents the status of a purchase order
type PurchaseStatus string

const (
	PurchaseStatusQuoting   PurchaseStatus = "quoting"
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusConfirmed PurchaseStatus = "confirmed"
	PurchaseStatusConsigned PurchaseStatus = "consigned"
	PurchaseStatusCancelled PurchaseStatus = "cancelled"
	PurchaseStatusClosed    PurchaseStatus = "closed"
)

// IsValid checks if the status is a valid PurchaseStatus
func (s PurchaseStatus) IsValid() bool {
	switch s {
	case PurchaseStatusQuoting, PurchaseStatusPending, PurchaseStatusConfirmed,
		PurchaseStatusConsigned, PurchaseStatusCancelled, PurchaseStatusClosed:
		return true
	}
	return false
}

// String returns the string representation of PurchaseStatus
func (s PurchaseStatus) String() string {
	return string(s)
}

// IsTerminal returns true for closed and cancelled orders
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusClosed || s == PurchaseStatusCancelled
}

// CanTransitionTo checks if the status can transition to the target status
func (s PurchaseStatus) CanTransitionTo(target PurchaseStatus) bool {
	switch s {
	case PurchaseStatusQuoting:
		return target == PurchaseStatusPending || target == PurchaseStatusCancelled
	case PurchaseStatusPending:
		return target == PurchaseStatusConfirmed || target == PurchaseStatusConsigned ||
			target == PurchaseStatusCancelled
	case PurchaseStatusConsigned:
		return target == PurchaseStatusConfirmed
	case PurchaseStatusConfirmed:
		return target == PurchaseStatusClosed || target == PurchaseStatusCancelled
	}
	return false
}

// FreightType tells who pays the freight
type FreightType string

const (
	FreightFOB FreightType = "fob"
	FreightCIF FreightType = "cif"
)

// PurchaseOrder is an order placed with a supplier
type PurchaseOrder struct {
	shared.BaseAggregateRoot
	Status               PurchaseStatus  `gorm:"type:varchar(20);not null;index"`
	SupplierID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	BranchID             uuid.UUID       `gorm:"type:uuid;not null;index"`
	ResponsibleID        *uuid.UUID      `gorm:"type:uuid"`
	TransporterID        *uuid.UUID      `gorm:"type:uuid"`
	GroupID              uuid.UUID       `gorm:"type:uuid;not null"`
	FreightType          FreightType     `gorm:"type:varchar(5);not null"`
	ExpectedFreight      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	SurchargeValue       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	DiscountValue        decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	OpenDate             time.Time       `gorm:"not null"`
	QuoteDeadline        *time.Time
	ExpectedReceivalDate *time.Time
	ExpectedPayDate      *time.Time
	ConfirmDate          *time.Time
	ReceivalDate         *time.Time
	CancelDate           *time.Time
	Consigned            bool
	Notes                string `gorm:"type:text"`
	SalespersonName      string `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (PurchaseOrder) TableName() string {
	return "purchase_order"
}

// NewPurchaseOrder creates a pending order. Quotes start as quoting instead.
func NewPurchaseOrder(supplierID, branchID, groupID uuid.UUID, openDate time.Time) *PurchaseOrder {
	return &PurchaseOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            PurchaseStatusPending,
		SupplierID:        supplierID,
		BranchID:          branchID,
		GroupID:           groupID,
		FreightType:       FreightFOB,
		ExpectedFreight:   decimal.Zero,
		SurchargeValue:    decimal.Zero,
		DiscountValue:     decimal.Zero,
		OpenDate:          openDate,
	}
}

func (o *PurchaseOrder) transition(target PurchaseStatus, op string) error {
	if !o.Status.CanTransitionTo(target) {
		return shared.InvalidStatef("cannot %s purchase %d in status %s", op, o.Identifier, o.Status)
	}
	o.Status = target
	return nil
}

// ConvertQuote moves a quoting order to pending
func (o *PurchaseOrder) ConvertQuote() error {
	if o.Status != PurchaseStatusQuoting {
		return shared.InvalidStatef("purchase %d is %s, not a quote", o.Identifier, o.Status)
	}
	return o.transition(PurchaseStatusPending, "convert")
}

// Confirm confirms a pending or consigned order on behalf of userID
func (o *PurchaseOrder) Confirm(at time.Time, userID uuid.UUID) error {
	if o.Status != PurchaseStatusPending && o.Status != PurchaseStatusConsigned {
		return shared.InvalidStatef("cannot confirm purchase %d in status %s", o.Identifier, o.Status)
	}
	if err := o.transition(PurchaseStatusConfirmed, "confirm"); err != nil {
		return err
	}
	o.ResponsibleID = &userID
	o.ConfirmDate = &at
	return nil
}

// SetConsigned marks a pending order as consigned
func (o *PurchaseOrder) SetConsigned() error {
	if o.Status != PurchaseStatusPending {
		return shared.InvalidStatef("cannot consign purchase %d in status %s", o.Identifier, o.Status)
	}
	if err := o.transition(PurchaseStatusConsigned, "consign"); err != nil {
		return err
	}
	o.Consigned = true
	return nil
}

// CanCancel reports whether the order may be cancelled given its items.
// Orders with a partially received item cannot be cancelled.
func (o *PurchaseOrder) CanCancel(items []PurchaseItem) bool {
	switch o.Status {
	case PurchaseStatusQuoting, PurchaseStatusPending, PurchaseStatusConfirmed:
	default:
		return false
	}
	for i := range items {
		if items[i].HasPartialReception() {
			return false
		}
	}
	return true
}

// Cancel moves the order to cancelled
func (o *PurchaseOrder) Cancel(items []PurchaseItem, at time.Time) error {
	if !o.CanCancel(items) {
		return shared.InvalidStatef("cannot cancel purchase %d in status %s", o.Identifier, o.Status)
	}
	if err := o.transition(PurchaseStatusCancelled, "cancel"); err != nil {
		return err
	}
	o.CancelDate = &at
	return nil
}

// CanClose reports whether the order is confirmed and fully received
func (o *PurchaseOrder) CanClose(items []PurchaseItem) bool {
	if o.Status != PurchaseStatusConfirmed {
		return false
	}
	for i := range items {
		if !items[i].IsFullyReceived() {
			return false
		}
	}
	return true
}

// Close closes a confirmed and fully received order
func (o *PurchaseOrder) Close(items []PurchaseItem, at time.Time) error {
	if o.Status != PurchaseStatusConfirmed {
		return shared.InvalidStatef("cannot close purchase %d in status %s", o.Identifier, o.Status)
	}
	if !o.CanClose(items) {
		return shared.InvalidStatef("purchase %d still has items to receive", o.Identifier)
	}
	if err := o.transition(PurchaseStatusClosed, "close"); err != nil {
		return err
	}
	if o.ReceivalDate == nil {
		o.ReceivalDate = &at
	}
	return nil
}

// IsConsignment reports orders whose goods are paid once sold or returned
func (o *PurchaseOrder) IsConsignment() bool {
	return o.Consigned
}

// Subtotal sums the cost of every item
func (o *PurchaseOrder) Subtotal(items []PurchaseItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Total())
	}
	return total
}

// Total is subtotal + surcharge - discount
func (o *PurchaseOrder) Total(items []PurchaseItem) decimal.Decimal {
	return o.Subtotal(items).Add(o.SurchargeValue).Sub(o.DiscountValue).RoundBank(2)
}

// ReceivedTotal sums the cost of received quantities
func (o *PurchaseOrder) ReceivedTotal(items []PurchaseItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].ReceivedTotal())
	}
	return total
}

// PurchaseItem is a line of a purchase order. Children of a package item
// carry ParentItemID.
type PurchaseItem struct {
	shared.BaseEntity
	OrderID              uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellableID           uuid.UUID       `gorm:"type:uuid;not null"`
	ParentItemID         *uuid.UUID      `gorm:"type:uuid;index"`
	Quantity             decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	QuantityReceived     decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	QuantitySold         decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	QuantityReturned     decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	BaseCost             decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	Cost                 decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	ExpectedReceivalDate *time.Time
	Seq                  int `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PurchaseItem) TableName() string {
	return "purchase_item"
}

// NewPurchaseItem creates an item
func NewPurchaseItem(orderID, sellableID uuid.UUID, quantity, cost decimal.Decimal) (*PurchaseItem, error) {
	if !quantity.IsPositive() {
		return nil, shared.OutOfRangef("purchase quantity must be positive: %s", quantity)
	}
	if cost.IsNegative() {
		return nil, shared.OutOfRangef("purchase cost cannot be negative: %s", cost)
	}
	return &PurchaseItem{
		BaseEntity:       shared.NewBaseEntity(),
		OrderID:          orderID,
		SellableID:       sellableID,
		Quantity:         quantity,
		QuantityReceived: decimal.Zero,
		QuantitySold:     decimal.Zero,
		QuantityReturned: decimal.Zero,
		BaseCost:         cost,
		Cost:             cost,
	}, nil
}

// Total is quantity x cost
func (i *PurchaseItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.Cost)
}

// ReceivedTotal is quantity_received x cost
func (i *PurchaseItem) ReceivedTotal() decimal.Decimal {
	return i.QuantityReceived.Mul(i.Cost)
}

// PendingQuantity is what remains to be received
func (i *PurchaseItem) PendingQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.QuantityReceived)
}

// IsFullyReceived reports every unit received
func (i *PurchaseItem) IsFullyReceived() bool {
	return i.QuantityReceived.GreaterThanOrEqual(i.Quantity)
}

// HasPartialReception reports some but not every unit received
func (i *PurchaseItem) HasPartialReception() bool {
	return i.QuantityReceived.IsPositive() && i.QuantityReceived.LessThan(i.Quantity)
}

// IsPackageChild reports items created from a package component
func (i *PurchaseItem) IsPackageChild() bool {
	return i.ParentItemID != nil
}

// Receive appends qty to the received quantity
func (i *PurchaseItem) Receive(qty decimal.Decimal) error {
	if !qty.IsPositive() {
		return shared.OutOfRangef("received quantity must be positive: %s", qty)
	}
	if i.QuantityReceived.Add(qty).GreaterThan(i.Quantity) {
		return shared.OutOfRangef("cannot receive %s, only %s pending", qty, i.PendingQuantity())
	}
	i.QuantityReceived = i.QuantityReceived.Add(qty)
	return nil
}

// ConsignedPending is the received quantity neither sold nor returned yet
func (i *PurchaseItem) ConsignedPending() decimal.Decimal {
	return i.QuantityReceived.Sub(i.QuantitySold).Sub(i.QuantityReturned)
}

// MarkSold accounts consigned units as sold
func (i *PurchaseItem) MarkSold(qty decimal.Decimal) error {
	if !qty.IsPositive() || qty.GreaterThan(i.ConsignedPending()) {
		return shared.OutOfRangef("sold quantity must be within (0, %s]: %s", i.ConsignedPending(), qty)
	}
	i.QuantitySold = i.QuantitySold.Add(qty)
	return nil
}

// MarkReturned accounts consigned units as returned to the supplier
func (i *PurchaseItem) MarkReturned(qty decimal.Decimal) error {
	if !qty.IsPositive() || qty.GreaterThan(i.ConsignedPending()) {
		return shared.OutOfRangef("returned quantity must be within (0, %s]: %s", i.ConsignedPending(), qty)
	}
	i.QuantityReturned = i.QuantityReturned.Add(qty)
	return nil
}
