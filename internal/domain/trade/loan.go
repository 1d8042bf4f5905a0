package trade

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus represents the status of a loan
type LoanStatus string

const (
	LoanStatusOpen      LoanStatus = "open"
	LoanStatusClosed    LoanStatus = "closed"
	LoanStatusCancelled LoanStatus = "cancelled"
)

// Loan lends goods to a client who later returns, buys or loses them
type Loan struct {
	shared.BaseAggregateRoot
	Status        LoanStatus `gorm:"type:varchar(20);not null"`
	ClientID      *uuid.UUID `gorm:"type:uuid"`
	BranchID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	ResponsibleID uuid.UUID  `gorm:"type:uuid;not null"`
	OpenDate      time.Time  `gorm:"not null"`
	CloseDate     *time.Time
	ExpireDate    *time.Time
	SaleID        *uuid.UUID `gorm:"type:uuid"`
	RemovedBy     string     `gorm:"type:varchar(100)"`
	Notes         string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Loan) TableName() string {
	return "loan"
}

// NewLoan creates an open loan
func NewLoan(branchID, responsibleID uuid.UUID, clientID *uuid.UUID, at time.Time) *Loan {
	return &Loan{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            LoanStatusOpen,
		ClientID:          clientID,
		BranchID:          branchID,
		ResponsibleID:     responsibleID,
		OpenDate:          at,
	}
}

// Close closes an open loan
func (l *Loan) Close(at time.Time) error {
	if l.Status != LoanStatusOpen {
		return shared.InvalidStatef("cannot close loan %d in status %s", l.Identifier, l.Status)
	}
	l.Status = LoanStatusClosed
	l.CloseDate = &at
	return nil
}

// Cancel cancels an open loan
func (l *Loan) Cancel(at time.Time) error {
	if l.Status != LoanStatusOpen {
		return shared.InvalidStatef("cannot cancel loan %d in status %s", l.Identifier, l.Status)
	}
	l.Status = LoanStatusCancelled
	l.CloseDate = &at
	return nil
}

// LoanItem is a lent sellable
type LoanItem struct {
	shared.BaseEntity
	LoanID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	SellableID     uuid.UUID       `gorm:"type:uuid;not null"`
	BatchID        *uuid.UUID      `gorm:"type:uuid"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	ReturnQuantity decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	SaleQuantity   decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	LostQuantity   decimal.Decimal `gorm:"type:decimal(20,3);not null"`
	Price          decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BasePrice      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
}

// TableName returns the table name for GORM
func (LoanItem) TableName() string {
	return "loan_item"
}

// NewLoanItem creates a loan item
func NewLoanItem(loanID, sellableID uuid.UUID, quantity, price decimal.Decimal) (*LoanItem, error) {
	if !quantity.IsPositive() {
		return nil, shared.OutOfRangef("loan quantity must be positive: %s", quantity)
	}
	return &LoanItem{
		BaseEntity:     shared.NewBaseEntity(),
		LoanID:         loanID,
		SellableID:     sellableID,
		Quantity:       quantity,
		ReturnQuantity: decimal.Zero,
		SaleQuantity:   decimal.Zero,
		LostQuantity:   decimal.Zero,
		Price:          price,
		BasePrice:      price,
	}, nil
}

// LoanSplit tells how the quantity of an item ended up
type LoanSplit struct {
	ItemID   uuid.UUID
	Returned decimal.Decimal
	Sold     decimal.Decimal
	Lost     decimal.Decimal
}

// ApplySplit records the split. The three parts must add up to the quantity.
func (i *LoanItem) ApplySplit(s LoanSplit) error {
	for _, q := range []decimal.Decimal{s.Returned, s.Sold, s.Lost} {
		if q.IsNegative() {
			return shared.OutOfRangef("loan split quantities cannot be negative: %s", q)
		}
	}
	if !s.Returned.Add(s.Sold).Add(s.Lost).Equal(i.Quantity) {
		return shared.OutOfRangef("returned, sold and lost must add up to %s", i.Quantity)
	}
	i.ReturnQuantity = s.Returned
	i.SaleQuantity = s.Sold
	i.LostQuantity = s.Lost
	return nil
}
