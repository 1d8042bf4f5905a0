package finance

import (
	"fmt"
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentType is the direction of a payment
type PaymentType string

const (
	PaymentTypeIn  PaymentType = "in"
	PaymentTypeOut PaymentType = "out"
)

// IsValid checks if the type is in or out
func (t PaymentType) IsValid() bool {
	return t == PaymentTypeIn || t == PaymentTypeOut
}

// PaymentStatus represents the status of a payment
type PaymentStatus string

const (
	PaymentStatusPreview   PaymentStatus = "preview"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusReviewing PaymentStatus = "reviewing"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPreview, PaymentStatusPending, PaymentStatusPaid,
		PaymentStatusCancelled, PaymentStatusReviewing, PaymentStatusConfirmed:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsTerminal returns true for cancelled payments
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusCancelled
}

// CanTransitionTo reports whether the status machine allows moving to target.
// paid -> pending is the only backwards move and is always audit logged.
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	switch s {
	case PaymentStatusPreview:
		return target == PaymentStatusPending || target == PaymentStatusCancelled
	case PaymentStatusPending:
		return target == PaymentStatusPaid || target == PaymentStatusCancelled
	case PaymentStatusPaid:
		return target == PaymentStatusPending || target == PaymentStatusCancelled ||
			target == PaymentStatusReviewing
	case PaymentStatusReviewing:
		return target == PaymentStatusConfirmed || target == PaymentStatusPaid
	}
	return false
}

// Payment is a single transfer of money in or out of the business
type Payment struct {
	shared.BaseAggregateRoot
	PaymentType PaymentType     `gorm:"type:varchar(5);not null;index"`
	Status      PaymentStatus   `gorm:"type:varchar(20);not null;index"`
	MethodID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	GroupID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	BranchID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	StationID   *uuid.UUID      `gorm:"type:uuid"`
	Value       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	BaseValue   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	PaidValue   decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Interest    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Discount    decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Penalty     decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	OpenDate    time.Time       `gorm:"not null"`
	DueDate     time.Time       `gorm:"not null;index"`
	PaidDate    *time.Time
	CancelDate  *time.Time
	Description string     `gorm:"type:varchar(300)"`
	CategoryID  *uuid.UUID `gorm:"type:uuid"`
	// PaymentNumber is the document number (check number, bill code)
	PaymentNumber string `gorm:"type:varchar(50)"`
	// AttachmentKey is the object storage key of an attached document
	AttachmentKey string `gorm:"type:varchar(300)"`
	BillReceived  bool
}

// TableName returns the table name for GORM
func (Payment) TableName() string {
	return "payment"
}

// NewPayment creates a preview payment. base value defaults to value.
func NewPayment(paymentType PaymentType, method *PaymentMethod, groupID, branchID uuid.UUID, value decimal.Decimal, openDate, dueDate time.Time) (*Payment, error) {
	if !paymentType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("invalid payment type %q", paymentType))
	}
	if value.IsNegative() {
		return nil, shared.OutOfRangef("payment value cannot be negative: %s", value)
	}
	if groupID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "payment group is required")
	}
	return &Payment{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PaymentType:       paymentType,
		Status:            PaymentStatusPreview,
		MethodID:          method.ID,
		GroupID:           groupID,
		BranchID:          branchID,
		Value:             value,
		BaseValue:         value,
		PaidValue:         decimal.Zero,
		Interest:          decimal.Zero,
		Discount:          decimal.Zero,
		Penalty:           decimal.Zero,
		OpenDate:          openDate,
		DueDate:           dueDate,
	}, nil
}

func (p *Payment) transition(target PaymentStatus, op string) error {
	if !p.Status.CanTransitionTo(target) {
		return shared.InvalidStatef("cannot %s payment %d in status %s", op, p.Identifier, p.Status)
	}
	p.Status = target
	return nil
}

// SetPending moves a preview payment to pending
func (p *Payment) SetPending() error {
	if p.Status != PaymentStatusPreview {
		return shared.InvalidStatef("cannot set payment %d as pending in status %s", p.Identifier, p.Status)
	}
	return p.transition(PaymentStatusPending, "set pending")
}

// Pay marks a pending payment as paid
func (p *Payment) Pay(paidDate time.Time, paidValue decimal.Decimal) error {
	if p.Status != PaymentStatusPending {
		return shared.InvalidStatef("cannot pay payment %d in status %s", p.Identifier, p.Status)
	}
	if paidValue.IsNegative() {
		return shared.OutOfRangef("paid value cannot be negative: %s", paidValue)
	}
	if err := p.transition(PaymentStatusPaid, "pay"); err != nil {
		return err
	}
	p.PaidDate = &paidDate
	p.PaidValue = paidValue
	return nil
}

// Cancel moves the payment to cancelled. It returns whether the payment was
// paid so the caller can reverse its account transaction.
func (p *Payment) Cancel(at time.Time) (wasPaid bool, err error) {
	wasPaid = p.Status == PaymentStatusPaid
	if err := p.transition(PaymentStatusCancelled, "cancel"); err != nil {
		return false, err
	}
	p.CancelDate = &at
	return wasPaid, nil
}

// SetNotPaid moves a paid payment back to pending and clears the paid data
func (p *Payment) SetNotPaid() error {
	if p.Status != PaymentStatusPaid {
		return shared.InvalidStatef("cannot set payment %d as not paid in status %s", p.Identifier, p.Status)
	}
	if err := p.transition(PaymentStatusPending, "set not paid"); err != nil {
		return err
	}
	p.PaidDate = nil
	p.PaidValue = decimal.Zero
	return nil
}

// ChangeDueDate moves the due date of a payment that is neither paid nor cancelled
func (p *Payment) ChangeDueDate(dueDate time.Time) error {
	if p.Status == PaymentStatusPaid || p.Status == PaymentStatusCancelled {
		return shared.InvalidStatef("cannot change the due date of payment %d in status %s", p.Identifier, p.Status)
	}
	p.DueDate = dueDate
	return nil
}

// SetDiscount sets an absolute discount, bounded by the value
func (p *Payment) SetDiscount(discount decimal.Decimal) error {
	if discount.IsNegative() || discount.GreaterThan(p.Value) {
		return shared.OutOfRangef("discount must be within [0, %s]: %s", p.Value, discount)
	}
	p.Discount = discount
	return nil
}

func (p *Payment) checkDate(date, today time.Time) error {
	day := shared.StartOfDay(date)
	if day.Before(shared.StartOfDay(p.OpenDate)) {
		return shared.OutOfRangef("date %s is before the payment open date", day.Format("2006-01-02"))
	}
	if day.After(shared.StartOfDay(today)) {
		return shared.OutOfRangef("date %s is in the future", day.Format("2006-01-02"))
	}
	return nil
}

// GetDaysLate returns how many days date is past the due date (zero when on time)
func (p *Payment) GetDaysLate(date time.Time) int {
	due := shared.StartOfDay(p.DueDate)
	day := shared.StartOfDay(date)
	if !day.After(due) {
		return 0
	}
	return int(day.Sub(due).Hours() / 24)
}

// GetPenalty returns method.penalty% of the value when date is past the due date
func (p *Payment) GetPenalty(method *PaymentMethod, date, today time.Time) (decimal.Decimal, error) {
	if err := p.checkDate(date, today); err != nil {
		return decimal.Zero, err
	}
	if p.GetDaysLate(date) == 0 {
		return decimal.Zero, nil
	}
	return valueobject.QuantizeMoney(valueobject.PercentageOf(p.Value, method.Penalty)), nil
}

// GetInterest returns days_late * daily_interest% * (value + penalty), the
// penalty being included only when payPenalty is set.
func (p *Payment) GetInterest(method *PaymentMethod, date, today time.Time, payPenalty bool) (decimal.Decimal, error) {
	if err := p.checkDate(date, today); err != nil {
		return decimal.Zero, err
	}
	days := p.GetDaysLate(date)
	if days == 0 {
		return decimal.Zero, nil
	}
	base := p.Value
	if payPenalty {
		penalty, err := p.GetPenalty(method, date, today)
		if err != nil {
			return decimal.Zero, err
		}
		base = base.Add(penalty)
	}
	interest := decimal.NewFromInt(int64(days)).Mul(valueobject.PercentageOf(base, method.DailyInterest))
	return valueobject.QuantizeMoney(interest), nil
}

// GetPayableValue returns what should be paid today: value plus interest while
// pending, the value for preview and cancelled payments, and the paid value
// once paid.
func (p *Payment) GetPayableValue(method *PaymentMethod, today time.Time) (decimal.Decimal, error) {
	switch p.Status {
	case PaymentStatusPreview, PaymentStatusCancelled:
		return p.Value, nil
	case PaymentStatusPaid, PaymentStatusReviewing, PaymentStatusConfirmed:
		return p.PaidValue, nil
	}
	if shared.StartOfDay(today).Before(shared.StartOfDay(p.OpenDate)) {
		return p.Value, nil
	}
	interest, err := p.GetInterest(method, today, today, true)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Value.Add(interest), nil
}

// DefaultPaidValue is value - discount + interest
func (p *Payment) DefaultPaidValue() decimal.Decimal {
	return p.Value.Sub(p.Discount).Add(p.Interest)
}

// SignedPaidValue is the paid value, negative for outpayments
func (p *Payment) SignedPaidValue() decimal.Decimal {
	if p.PaymentType == PaymentTypeOut {
		return p.PaidValue.Neg()
	}
	return p.PaidValue
}

// IsInpayment reports an incoming payment
func (p *Payment) IsInpayment() bool { return p.PaymentType == PaymentTypeIn }

// IsOutpayment reports an outgoing payment
func (p *Payment) IsOutpayment() bool { return p.PaymentType == PaymentTypeOut }

// IsPreview reports a preview payment
func (p *Payment) IsPreview() bool { return p.Status == PaymentStatusPreview }

// IsPending reports a pending payment
func (p *Payment) IsPending() bool { return p.Status == PaymentStatusPending }

// IsPaid reports a paid payment
func (p *Payment) IsPaid() bool { return p.Status == PaymentStatusPaid }

// IsCancelled reports a cancelled payment
func (p *Payment) IsCancelled() bool { return p.Status == PaymentStatusCancelled }

// IsListed reports whether the payment shows in normal listings (preview ones do not)
func (p *Payment) IsListed() bool { return p.Status != PaymentStatusPreview }
