package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleStatus represents the status of a sale
type SaleStatus string

const (
	SaleStatusInitial      SaleStatus = "initial"
	SaleStatusQuote        SaleStatus = "quote"
	SaleStatusOrdered      SaleStatus = "ordered"
	SaleStatusConfirmed    SaleStatus = "confirmed"
	SaleStatusPaid         SaleStatus = "paid"
	SaleStatusCancelled    SaleStatus = "cancelled"
	SaleStatusReturned     SaleStatus = "returned"
	SaleStatusRenegotiated SaleStatus = "renegotiated"
)

// IsValid checks if the status is a valid SaleStatus
func (s SaleStatus) IsValid() bool {
	switch s {
	case SaleStatusInitial, SaleStatusQuote, SaleStatusOrdered, SaleStatusConfirmed,
		SaleStatusPaid, SaleStatusCancelled, SaleStatusReturned, SaleStatusRenegotiated:
		return true
	}
	return false
}

// String returns the string representation of SaleStatus
func (s SaleStatus) String() string {
	return string(s)
}

// CanTransitionTo checks the status machine. Cancelling confirmed or paid
// sales is further gated by a parameter, see Sale.CanCancel.
func (s SaleStatus) CanTransitionTo(target SaleStatus) bool {
	switch s {
	case SaleStatusInitial:
		return target == SaleStatusQuote || target == SaleStatusOrdered || target == SaleStatusCancelled
	case SaleStatusQuote:
		return target == SaleStatusOrdered || target == SaleStatusConfirmed || target == SaleStatusCancelled
	case SaleStatusOrdered:
		return target == SaleStatusConfirmed || target == SaleStatusCancelled
	case SaleStatusConfirmed:
		return target == SaleStatusPaid || target == SaleStatusReturned ||
			target == SaleStatusRenegotiated || target == SaleStatusCancelled
	case SaleStatusPaid:
		return target == SaleStatusReturned || target == SaleStatusCancelled
	case SaleStatusReturned:
		return target == SaleStatusConfirmed
	}
	return false
}

// Sale is a commercial sale to a client
type Sale struct {
	shared.BaseAggregateRoot
	Status         SaleStatus `gorm:"type:varchar(20);not null;index"`
	ClientID       *uuid.UUID `gorm:"type:uuid;index"`
	BranchID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	SalesPersonID  *uuid.UUID `gorm:"type:uuid"`
	TransporterID  *uuid.UUID `gorm:"type:uuid"`
	GroupID        uuid.UUID  `gorm:"type:uuid;not null"`
	Cfop           string     `gorm:"type:varchar(10)"`
	OpenDate       time.Time  `gorm:"not null"`
	ConfirmDate    *time.Time
	CloseDate      *time.Time
	ReturnDate     *time.Time
	CancelDate     *time.Time
	ExpireDate     *time.Time
	ConfirmedByID  *uuid.UUID `gorm:"type:uuid"`
	CouponID       *int64
	InvoiceNumber  *int64
	DiscountValue  decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	SurchargeValue decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Paid           bool
	SaleTokenID    *uuid.UUID `gorm:"type:uuid"`
	Notes          string     `gorm:"type:text"`
	CancelReason   string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Sale) TableName() string {
	return "sale"
}

// NewSale creates an initial sale
func NewSale(branchID, groupID uuid.UUID, openDate time.Time) *Sale {
	return &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            SaleStatusInitial,
		BranchID:          branchID,
		GroupID:           groupID,
		Cfop:              "5.102",
		OpenDate:          openDate,
		DiscountValue:     decimal.Zero,
		SurchargeValue:    decimal.Zero,
	}
}

func (s *Sale) setStatus(target SaleStatus, op string) error {
	if !s.Status.CanTransitionTo(target) {
		return shared.InvalidStatef("cannot %s sale %d in status %s", op, s.Identifier, s.Status)
	}
	old := s.Status
	s.Status = target
	s.AddDomainEvent(NewSaleStatusChangedEvent(s, old))
	return nil
}

// SetQuote marks an initial sale as a quote
func (s *Sale) SetQuote() error {
	return s.setStatus(SaleStatusQuote, "quote")
}

// CanOrder reports whether Order may be called
func (s *Sale) CanOrder() bool {
	return s.Status == SaleStatusInitial || s.Status == SaleStatusQuote
}

// Order moves the sale to ordered. It needs at least one item and, when a
// client is set, an active client.
func (s *Sale) Order(itemCount int, clientActive bool) error {
	if !s.CanOrder() {
		return shared.InvalidStatef("cannot order sale %d in status %s", s.Identifier, s.Status)
	}
	if itemCount == 0 {
		return shared.InvalidStatef("sale %d has no items", s.Identifier)
	}
	if s.ClientID != nil && !clientActive {
		return shared.InvalidStatef("the client of sale %d is not active", s.Identifier)
	}
	return s.setStatus(SaleStatusOrdered, "order")
}

// CanConfirm reports whether Confirm may be called
func (s *Sale) CanConfirm() bool {
	return s.Status == SaleStatusOrdered || s.Status == SaleStatusQuote
}

// Confirm moves the sale to confirmed
func (s *Sale) Confirm(at time.Time, userID uuid.UUID) error {
	if !s.CanConfirm() {
		return shared.InvalidStatef("cannot confirm sale %d in status %s", s.Identifier, s.Status)
	}
	if err := s.setStatus(SaleStatusConfirmed, "confirm"); err != nil {
		return err
	}
	s.ConfirmDate = &at
	s.ConfirmedByID = &userID
	return nil
}

// CanSetPaid reports a confirmed sale not yet flagged as paid
func (s *Sale) CanSetPaid() bool {
	return s.Status == SaleStatusConfirmed && !s.Paid
}

// SetPaid flags the sale as paid. The status stays confirmed.
func (s *Sale) SetPaid(at time.Time) error {
	if !s.CanSetPaid() {
		return shared.InvalidStatef("cannot set sale %d as paid in status %s (paid=%t)", s.Identifier, s.Status, s.Paid)
	}
	s.Paid = true
	s.CloseDate = &at
	return nil
}

// SetNotPaid clears the paid flag
func (s *Sale) SetNotPaid() error {
	if !s.Paid {
		return shared.InvalidStatef("sale %d is not paid", s.Identifier)
	}
	if s.Status == SaleStatusPaid {
		if err := s.setStatus(SaleStatusConfirmed, "set not paid"); err != nil {
			return err
		}
	}
	s.Paid = false
	s.CloseDate = nil
	return nil
}

// IsConfirmedOrPaid reports sales past confirmation that still hold goods
func (s *Sale) IsConfirmedOrPaid() bool {
	return s.Status == SaleStatusConfirmed || s.Status == SaleStatusPaid
}

// CanCancel reports whether the status allows a regular cancel. Confirmed and
// paid sales need allowConfirmed.
func (s *Sale) CanCancel(allowConfirmed bool) bool {
	switch s.Status {
	case SaleStatusInitial, SaleStatusQuote, SaleStatusOrdered:
		return true
	case SaleStatusConfirmed, SaleStatusPaid:
		return allowConfirmed
	}
	return false
}

// Cancel moves the sale to cancelled. Force skips the CanCancel policy but
// never revives a cancelled sale.
func (s *Sale) Cancel(at time.Time, reason string, allowConfirmed, force bool) error {
	if !force && !s.CanCancel(allowConfirmed) {
		return shared.InvalidStatef("cannot cancel sale %d in status %s", s.Identifier, s.Status)
	}
	if s.Status == SaleStatusCancelled {
		return shared.InvalidStatef("sale %d is already cancelled", s.Identifier)
	}
	old := s.Status
	s.Status = SaleStatusCancelled
	s.AddDomainEvent(NewSaleStatusChangedEvent(s, old))
	s.CancelDate = &at
	s.CancelReason = reason
	return nil
}

// CanReturn reports a confirmed or paid sale
func (s *Sale) CanReturn() bool {
	return s.IsConfirmedOrPaid()
}

// Return moves the sale to returned once every item is back
func (s *Sale) Return(at time.Time) error {
	if !s.CanReturn() {
		return shared.InvalidStatef("cannot return sale %d in status %s", s.Identifier, s.Status)
	}
	if err := s.setStatus(SaleStatusReturned, "return"); err != nil {
		return err
	}
	s.ReturnDate = &at
	return nil
}

// SetNotReturned brings a returned sale back to confirmed
func (s *Sale) SetNotReturned() error {
	if s.Status != SaleStatusReturned {
		return shared.InvalidStatef("cannot set sale %d as not returned in status %s", s.Identifier, s.Status)
	}
	if err := s.setStatus(SaleStatusConfirmed, "set not returned"); err != nil {
		return err
	}
	s.ReturnDate = nil
	return nil
}

// Renegotiate marks a confirmed sale whose payments were renegotiated
func (s *Sale) Renegotiate() error {
	if s.Status != SaleStatusConfirmed {
		return shared.InvalidStatef("cannot renegotiate sale %d in status %s", s.Identifier, s.Status)
	}
	return s.setStatus(SaleStatusRenegotiated, "renegotiate")
}

// Subtotal sums the items
func (s *Sale) Subtotal(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].Total())
	}
	return total
}

// Total is subtotal + surcharge - discount
func (s *Sale) Total(items []SaleItem) decimal.Decimal {
	return s.Subtotal(items).Add(s.SurchargeValue).Sub(s.DiscountValue).RoundBank(2)
}

// ReturnedTotal is the value of the returned quantities
func (s *Sale) ReturnedTotal(items []SaleItem) decimal.Decimal {
	total := decimal.Zero
	for i := range items {
		total = total.Add(items[i].QuantityReturned.Mul(items[i].Price))
	}
	return total.RoundBank(2)
}

// AllReturned reports whether every item was fully returned
func (s *Sale) AllReturned(items []SaleItem) bool {
	for i := range items {
		if items[i].ReturnableQuantity().IsPositive() {
			return false
		}
	}
	return len(items) > 0
}

// NfeCfopCode is the CFOP code without punctuation, as fiscal documents expect
func (s *Sale) NfeCfopCode() string {
	out := make([]byte, 0, len(s.Cfop))
	for i := 0; i < len(s.Cfop); i++ {
		if s.Cfop[i] != '.' {
			out = append(out, s.Cfop[i])
		}
	}
	return string(out)
}

// CouponInfo identifies the fiscal coupon of a sale
type CouponInfo struct {
	CouponID      int64
	InvoiceNumber int64
	BranchID      uuid.UUID
}

// NfeCouponInfo returns the coupon emitted for the sale, nil when none was
func (s *Sale) NfeCouponInfo() *CouponInfo {
	if s.CouponID == nil {
		return nil
	}
	info := &CouponInfo{CouponID: *s.CouponID, BranchID: s.BranchID}
	if s.InvoiceNumber != nil {
		info.InvoiceNumber = *s.InvoiceNumber
	}
	return info
}

// SaleItem is a line of a sale. Package children carry ParentItemID.
type SaleItem struct {
	shared.BaseEntity
	SaleID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellableID        uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID           *uuid.UUID      `gorm:"type:uuid"`
	ParentItemID      *uuid.UUID      `gorm:"type:uuid;index"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	QuantityDecreased decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	QuantityReturned  decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	BasePrice         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Price             decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IcmsRate          decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	IcmsValue         decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IpiValue          decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Cfop              string          `gorm:"type:varchar(10)"`
	Notes             string          `gorm:"type:text"`
	EstimatedFixDate  *time.Time
	IsService         bool
	IsPackage         bool
}

// TableName returns the table name for GORM
func (SaleItem) TableName() string {
	return "sale_item"
}

// NewSaleItem creates an item for a sellable that can be sold
func NewSaleItem(sale *Sale, sellable *catalog.Sellable, quantity, price decimal.Decimal, today time.Time) (*SaleItem, error) {
	if !sellable.CanBeSold() {
		return nil, shared.InvalidStatef("sellable %s is %s and cannot be sold", sellable.Code, sellable.Status)
	}
	if !quantity.IsPositive() {
		return nil, shared.OutOfRangef("sale quantity must be positive: %s", quantity)
	}
	if price.IsNegative() {
		return nil, shared.OutOfRangef("sale price cannot be negative: %s", price)
	}
	return &SaleItem{
		BaseEntity:        shared.NewBaseEntity(),
		SaleID:            sale.ID,
		SellableID:        sellable.ID,
		Quantity:          quantity,
		QuantityDecreased: decimal.Zero,
		QuantityReturned:  decimal.Zero,
		BasePrice:         sellable.Price(today),
		Price:             price,
		IcmsRate:          decimal.Zero,
		IcmsValue:         decimal.Zero,
		IpiValue:          decimal.Zero,
		Cfop:              sale.Cfop,
		IsService:         sellable.IsService,
	}, nil
}

// Total is quantity x price
func (i *SaleItem) Total() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// PendingDecrease is the quantity still to leave stock
func (i *SaleItem) PendingDecrease() decimal.Decimal {
	return i.Quantity.Sub(i.QuantityDecreased)
}

// ReturnableQuantity is what can still be returned
func (i *SaleItem) ReturnableQuantity() decimal.Decimal {
	return i.Quantity.Sub(i.QuantityReturned)
}

// MarkDecreased accounts qty as taken from stock
func (i *SaleItem) MarkDecreased(qty decimal.Decimal) error {
	if qty.IsNegative() || i.QuantityDecreased.Add(qty).GreaterThan(i.Quantity) {
		return shared.OutOfRangef("cannot decrease %s of item with %s pending", qty, i.PendingDecrease())
	}
	i.QuantityDecreased = i.QuantityDecreased.Add(qty)
	return nil
}

// MarkIncreased accounts qty as put back into stock
func (i *SaleItem) MarkIncreased(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.GreaterThan(i.QuantityDecreased) {
		return shared.OutOfRangef("cannot put back %s of item with %s decreased", qty, i.QuantityDecreased)
	}
	i.QuantityDecreased = i.QuantityDecreased.Sub(qty)
	return nil
}

// MarkReturned accounts qty as returned by the client
func (i *SaleItem) MarkReturned(qty decimal.Decimal) error {
	if !qty.IsPositive() || qty.GreaterThan(i.ReturnableQuantity()) {
		return shared.OutOfRangef("returned quantity must be within (0, %s]: %s", i.ReturnableQuantity(), qty)
	}
	i.QuantityReturned = i.QuantityReturned.Add(qty)
	return nil
}

// UnmarkReturned reverts MarkReturned
func (i *SaleItem) UnmarkReturned(qty decimal.Decimal) error {
	if qty.IsNegative() || qty.GreaterThan(i.QuantityReturned) {
		return shared.OutOfRangef("cannot undo the return of %s, only %s returned", qty, i.QuantityReturned)
	}
	i.QuantityReturned = i.QuantityReturned.Sub(qty)
	return nil
}

// ApplyIcms sets the ICMS rate and computes the value on the item total
func (i *SaleItem) ApplyIcms(rate decimal.Decimal) {
	i.IcmsRate = rate
	i.IcmsValue = i.Total().Mul(rate).Div(decimal.NewFromInt(100)).RoundBank(2)
}
