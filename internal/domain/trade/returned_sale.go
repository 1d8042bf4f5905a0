package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnedSaleStatus represents the status of a returned sale
type ReturnedSaleStatus string

const (
	ReturnedSaleStatusPending   ReturnedSaleStatus = "pending"
	ReturnedSaleStatusConfirmed ReturnedSaleStatus = "confirmed"
	ReturnedSaleStatusCancelled ReturnedSaleStatus = "cancelled"
)

// ReturnedSale is a partial or total reversal of a sale
type ReturnedSale struct {
	shared.BaseAggregateRoot
	Status        ReturnedSaleStatus `gorm:"type:varchar(20);not null;index"`
	SaleID        uuid.UUID          `gorm:"type:uuid;not null;index"`
	NewSaleID     *uuid.UUID         `gorm:"type:uuid"`
	BranchID      uuid.UUID          `gorm:"type:uuid;not null"`
	ResponsibleID uuid.UUID          `gorm:"type:uuid;not null"`
	ClientID      *uuid.UUID         `gorm:"type:uuid"`
	ReturnDate    time.Time          `gorm:"not null"`
	ConfirmDate   *time.Time
	UndoDate      *time.Time
	Reason        string `gorm:"type:text"`
	UndoReason    string `gorm:"type:text"`
	// RefundPaymentID is the outpayment created to pay the client back
	RefundPaymentID *uuid.UUID `gorm:"type:uuid"`
	InvoiceNumber   *int64
}

// TableName returns the table name for GORM
func (ReturnedSale) TableName() string {
	return "returned_sale"
}

// NewReturnedSale creates a return of sale. Pending returns wait for a
// confirmation before moving stock and money.
func NewReturnedSale(sale *Sale, responsibleID uuid.UUID, at time.Time, pending bool) (*ReturnedSale, error) {
	if !sale.CanReturn() {
		return nil, shared.InvalidStatef("cannot return sale %d in status %s", sale.Identifier, sale.Status)
	}
	status := ReturnedSaleStatusConfirmed
	if pending {
		status = ReturnedSaleStatusPending
	}
	return &ReturnedSale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            status,
		SaleID:            sale.ID,
		BranchID:          sale.BranchID,
		ResponsibleID:     responsibleID,
		ClientID:          sale.ClientID,
		ReturnDate:        at,
	}, nil
}

// IsPending reports a return waiting for confirmation
func (r *ReturnedSale) IsPending() bool {
	return r.Status == ReturnedSaleStatusPending
}

// Confirm confirms a pending return
func (r *ReturnedSale) Confirm(at time.Time, userID uuid.UUID) error {
	if r.Status != ReturnedSaleStatusPending {
		return shared.InvalidStatef("cannot confirm returned sale %d in status %s", r.Identifier, r.Status)
	}
	r.Status = ReturnedSaleStatusConfirmed
	r.ConfirmDate = &at
	r.ResponsibleID = userID
	return nil
}

// MarkConfirmed records the confirmation date of a return done in one step
func (r *ReturnedSale) MarkConfirmed(at time.Time) {
	r.ConfirmDate = &at
}

// Undo cancels a confirmed return
func (r *ReturnedSale) Undo(reason string, at time.Time) error {
	if r.Status != ReturnedSaleStatusConfirmed {
		return shared.InvalidStatef("cannot undo returned sale %d in status %s", r.Identifier, r.Status)
	}
	r.Status = ReturnedSaleStatusCancelled
	r.UndoReason = reason
	r.UndoDate = &at
	return nil
}

// Total is the value of the returned quantities
func (r *ReturnedSale) Total(items []ReturnedSaleItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Total())
	}
	return total.RoundBank(2)
}

// ReturnedSaleItem mirrors a SaleItem with the quantity being returned
type ReturnedSaleItem struct {
	shared.BaseEntity
	ReturnedSaleID uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleItemID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellableID     uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID        *uuid.UUID      `gorm:"type:uuid"`
	ParentItemID   *uuid.UUID      `gorm:"type:uuid"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	MaxQuantity    decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	Price          decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

// TableName returns the table name for GORM
func (ReturnedSaleItem) TableName() string {
	return "returned_sale_item"
}

// NewReturnedSaleItem mirrors item with a zero quantity
func NewReturnedSaleItem(returned *ReturnedSale, item *SaleItem) *ReturnedSaleItem {
	return &ReturnedSaleItem{
		BaseEntity:     shared.NewBaseEntity(),
		ReturnedSaleID: returned.ID,
		SaleItemID:     item.ID,
		SellableID:     item.SellableID,
		BatchID:        item.BatchID,
		Quantity:       decimal.Zero,
		MaxQuantity:    item.ReturnableQuantity(),
		Price:          item.Price,
	}
}

// SetQuantity sets how much is returned
func (i *ReturnedSaleItem) SetQuantity(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.GreaterThan(i.MaxQuantity) {
		return shared.OutOfRangef("returned quantity must be within [0, %s]: %s", i.MaxQuantity, qty)
	}
	i.Quantity = qty
	return nil
}

// Total is quantity x price
func (i *ReturnedSaleItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// ReturnedSaleWriteOff records how a return settled one pending inpayment,
// either by raising its discount or by cancelling it, so an undo can restore it
type ReturnedSaleWriteOff struct {
	shared.BaseEntity
	ReturnedSaleID uuid.UUID `gorm:"type:uuid;not null;index"`
	PaymentID      uuid.UUID `gorm:"type:uuid;not null;index"`
	// Discount is what the return added to the payment discount
	Discount  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Cancelled bool            `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ReturnedSaleWriteOff) TableName() string {
	return "returned_sale_write_off"
}

// NewDiscountWriteOff records discount added to a payment by returned
func NewDiscountWriteOff(returned *ReturnedSale, paymentID uuid.UUID, discount decimal.Decimal) *ReturnedSaleWriteOff {
	return &ReturnedSaleWriteOff{
		BaseEntity:     shared.NewBaseEntity(),
		ReturnedSaleID: returned.ID,
		PaymentID:      paymentID,
		Discount:       discount,
	}
}

// NewCancelWriteOff records a payment cancelled by returned
func NewCancelWriteOff(returned *ReturnedSale, paymentID uuid.UUID) *ReturnedSaleWriteOff {
	return &ReturnedSaleWriteOff{
		BaseEntity:     shared.NewBaseEntity(),
		ReturnedSaleID: returned.ID,
		PaymentID:      paymentID,
		Discount:       decimal.Zero,
		Cancelled:      true,
	}
}
