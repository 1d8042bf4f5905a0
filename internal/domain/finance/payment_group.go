package finance

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OwnerType is the kind of operation owning a payment group
type OwnerType string

const (
	OwnerNone          OwnerType = ""
	OwnerSale          OwnerType = "sale"
	OwnerPurchase      OwnerType = "purchase"
	OwnerLoan          OwnerType = "loan"
	OwnerRenegotiation OwnerType = "renegotiation"
	OwnerReturnedSale  OwnerType = "returned_sale"
	OwnerReceiving     OwnerType = "receiving"
)

// PaymentGroup collects the payments of one commercial operation
type PaymentGroup struct {
	shared.BaseEntity
	PayerID     *uuid.UUID `gorm:"type:uuid"`
	RecipientID *uuid.UUID `gorm:"type:uuid"`
	OwnerType   OwnerType  `gorm:"type:varchar(20);index"`
	OwnerID     *uuid.UUID `gorm:"type:uuid;index"`
	// RenegotiationID is set when the payments were renegotiated
	RenegotiationID *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (PaymentGroup) TableName() string {
	return "payment_group"
}

// NewPaymentGroup creates a lonely group
func NewPaymentGroup(payerID, recipientID *uuid.UUID) *PaymentGroup {
	return &PaymentGroup{
		BaseEntity:  shared.NewBaseEntity(),
		PayerID:     payerID,
		RecipientID: recipientID,
	}
}

// AttachTo makes the group belong to an operation. A group has at most one owner.
func (g *PaymentGroup) AttachTo(ownerType OwnerType, ownerID uuid.UUID) error {
	if g.OwnerID != nil && (*g.OwnerID != ownerID || g.OwnerType != ownerType) {
		return shared.InvalidStatef("payment group is already owned by %s %s", g.OwnerType, g.OwnerID)
	}
	g.OwnerType = ownerType
	g.OwnerID = &ownerID
	return nil
}

// Detach turns the group back into a lonely group
func (g *PaymentGroup) Detach() {
	g.OwnerType = OwnerNone
	g.OwnerID = nil
}

// IsLonely reports a group not owned by any operation
func (g *PaymentGroup) IsLonely() bool {
	return g.OwnerID == nil
}

// IsOwnedBy reports whether ownerType owns the group
func (g *PaymentGroup) IsOwnedBy(ownerType OwnerType) bool {
	return g.OwnerID != nil && g.OwnerType == ownerType
}

// Payments is the set of payments of a group
type Payments []Payment

// Valid excludes cancelled payments
func (ps Payments) Valid() Payments {
	out := make(Payments, 0, len(ps))
	for _, p := range ps {
		if !p.IsCancelled() {
			out = append(out, p)
		}
	}
	return out
}

// WithStatus keeps the payments in one of statuses
func (ps Payments) WithStatus(statuses ...PaymentStatus) Payments {
	out := make(Payments, 0, len(ps))
	for _, p := range ps {
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// OfType keeps in or out payments
func (ps Payments) OfType(t PaymentType) Payments {
	out := make(Payments, 0, len(ps))
	for _, p := range ps {
		if p.PaymentType == t {
			out = append(out, p)
		}
	}
	return out
}

// TotalPaid sums paid values, outpayments subtracting
func (ps Payments) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		if p.IsPaid() {
			total = total.Add(p.SignedPaidValue())
		}
	}
	return total
}

// TotalValue sums the value of valid payments, outpayments subtracting
func (ps Payments) TotalValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps.Valid() {
		if p.IsOutpayment() {
			total = total.Sub(p.Value)
		} else {
			total = total.Add(p.Value)
		}
	}
	return total
}

// TotalDiscount sums the discount of valid payments
func (ps Payments) TotalDiscount() decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps.Valid() {
		total = total.Add(p.Discount)
	}
	return total
}

// AllPaid reports whether every non-cancelled payment is paid. An empty set is
// not considered paid.
func (ps Payments) AllPaid() bool {
	valid := ps.Valid()
	if len(valid) == 0 {
		return false
	}
	for _, p := range valid {
		if !p.IsPaid() {
			return false
		}
	}
	return true
}

// InpaymentsPaid reports whether every non-cancelled inpayment is paid.
// Refunds still owed to the payer do not count.
func (ps Payments) InpaymentsPaid() bool {
	return ps.OfType(PaymentTypeIn).AllPaid()
}

// Refundable is what was paid minus the outpayments already promised back
// and not yet paid
func (ps Payments) Refundable() decimal.Decimal {
	owed := decimal.Zero
	for _, p := range ps.OfType(PaymentTypeOut).WithStatus(PaymentStatusPreview, PaymentStatusPending) {
		owed = owed.Add(p.Value)
	}
	return ps.TotalPaid().Sub(owed)
}
