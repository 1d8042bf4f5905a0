package finance

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TillStatus represents the status of a till session
type TillStatus string

const (
	TillStatusPending  TillStatus = "pending"
	TillStatusOpen     TillStatus = "open"
	TillStatusClosed   TillStatus = "closed"
	TillStatusVerified TillStatus = "verified"
)

// IsValid checks if the status is a valid TillStatus
func (s TillStatus) IsValid() bool {
	switch s {
	case TillStatusPending, TillStatusOpen, TillStatusClosed, TillStatusVerified:
		return true
	}
	return false
}

// String returns the string representation of TillStatus
func (s TillStatus) String() string {
	return string(s)
}

// Till is a cash register session of a station
type Till struct {
	shared.BaseAggregateRoot
	StationID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	BranchID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status            TillStatus      `gorm:"type:varchar(20);not null;index"`
	InitialCashAmount decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	// FinalCashAmount stays nil until the till is closed
	FinalCashAmount    *decimal.Decimal `gorm:"type:decimal(20,2)"`
	OpeningDate        *time.Time
	ClosingDate        *time.Time
	ResponsibleOpenID  *uuid.UUID `gorm:"type:uuid"`
	ResponsibleCloseID *uuid.UUID `gorm:"type:uuid"`
	Observations       string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Till) TableName() string {
	return "till"
}

// NewTill creates a pending till for a station
func NewTill(stationID, branchID uuid.UUID) *Till {
	return &Till{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		StationID:         stationID,
		BranchID:          branchID,
		Status:            TillStatusPending,
		InitialCashAmount: decimal.Zero,
	}
}

// Open starts the session carrying forward initial
func (t *Till) Open(initial decimal.Decimal, at time.Time, userID uuid.UUID) error {
	if t.Status != TillStatusPending {
		return shared.InvalidStatef("till %d is %s, only pending tills can be opened", t.Identifier, t.Status)
	}
	if initial.IsNegative() {
		return shared.OutOfRangef("initial cash amount cannot be negative: %s", initial)
	}
	t.Status = TillStatusOpen
	t.InitialCashAmount = initial
	t.OpeningDate = &at
	t.ResponsibleOpenID = &userID
	return nil
}

// IsOpen reports an open till
func (t *Till) IsOpen() bool {
	return t.Status == TillStatusOpen
}

// Close ends the session with the computed cash amount. A deficit is rejected
// and leaves the till untouched.
func (t *Till) Close(final decimal.Decimal, at time.Time, userID uuid.UUID) error {
	if t.Status != TillStatusOpen {
		return shared.InvalidStatef("till %d is %s, only open tills can be closed", t.Identifier, t.Status)
	}
	if final.IsNegative() {
		return shared.OutOfRangef("till %d has a negative cash amount of %s", t.Identifier, final)
	}
	t.Status = TillStatusClosed
	t.FinalCashAmount = &final
	t.ClosingDate = &at
	t.ResponsibleCloseID = &userID
	return nil
}

// Verify marks a closed till as checked by a supervisor
func (t *Till) Verify(observations string) error {
	if t.Status != TillStatusClosed {
		return shared.InvalidStatef("till %d is %s, only closed tills can be verified", t.Identifier, t.Status)
	}
	t.Status = TillStatusVerified
	if observations != "" {
		t.Observations = observations
	}
	return nil
}

// NeedsClosing reports whether the till was opened before today minus the
// tolerance in hours.
func (t *Till) NeedsClosing(now time.Time, toleranceHours int) bool {
	if t.OpeningDate == nil || t.Status != TillStatusOpen {
		return false
	}
	limit := shared.StartOfDay(now).Add(-time.Duration(toleranceHours) * time.Hour)
	return t.OpeningDate.Before(limit)
}

// CarriedAmount is what the next session of the station starts with
func (t *Till) CarriedAmount() decimal.Decimal {
	if t.FinalCashAmount == nil {
		return decimal.Zero
	}
	return *t.FinalCashAmount
}

// TillEntry is a movement of a till. Value is negative for money leaving it.
type TillEntry struct {
	shared.BaseEntity
	TillID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	BranchID    uuid.UUID       `gorm:"type:uuid;not null"`
	PaymentID   *uuid.UUID      `gorm:"type:uuid;index"`
	Value       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Date        time.Time       `gorm:"not null"`
	Description string          `gorm:"type:varchar(300)"`
}

// TableName returns the table name for GORM
func (TillEntry) TableName() string {
	return "till_entry"
}

// NewTillEntry creates an entry for a payment, signed by its direction
func NewTillEntry(till *Till, payment *Payment, at time.Time) *TillEntry {
	value := payment.Value
	if payment.IsOutpayment() {
		value = value.Neg()
	}
	pid := payment.ID
	return &TillEntry{
		BaseEntity:  shared.NewBaseEntity(),
		TillID:      till.ID,
		BranchID:    till.BranchID,
		PaymentID:   &pid,
		Value:       value,
		Date:        at,
		Description: payment.Description,
	}
}

// EntryCountsAsCash decides whether an entry is part of the cash amount.
// Entries without payment always count. Payment entries count only for cash
// methods: incoming ones once paid, outgoing ones unless cancelled.
func EntryCountsAsCash(payment *Payment, method *PaymentMethod) bool {
	if payment == nil {
		return true
	}
	if method == nil || !method.Operation().CountsAsCash {
		return false
	}
	if payment.IsInpayment() {
		return payment.IsPaid()
	}
	return !payment.IsCancelled()
}
