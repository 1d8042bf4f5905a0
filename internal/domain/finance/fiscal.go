package finance

import (
	"time"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FiscalEntryType separates product (ICMS/IPI) from service (ISS) entries
type FiscalEntryType string

const (
	FiscalEntryProduct FiscalEntryType = "product"
	FiscalEntryService FiscalEntryType = "service"
)

// FiscalBookEntry is a tax ledger row. Reversal rows carry positive amounts
// and subtract from the book.
type FiscalBookEntry struct {
	shared.BaseEntity
	EntryType      FiscalEntryType `gorm:"type:varchar(10);not null"`
	BranchID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentGroupID uuid.UUID       `gorm:"type:uuid;not null;index"`
	DraweeID       *uuid.UUID      `gorm:"type:uuid"`
	Cfop           string          `gorm:"type:varchar(10)"`
	InvoiceNumber  int64
	Date           time.Time       `gorm:"not null"`
	IcmsValue      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IssValue       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IpiValue       decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	IsReversal     bool
	ReversalOfID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (FiscalBookEntry) TableName() string {
	return "fiscal_book_entry"
}

// NewProductEntry creates a product entry with ICMS and IPI values
func NewProductEntry(branchID, groupID uuid.UUID, cfop string, icms, ipi decimal.Decimal, at time.Time) *FiscalBookEntry {
	return &FiscalBookEntry{
		BaseEntity:     shared.NewBaseEntity(),
		EntryType:      FiscalEntryProduct,
		BranchID:       branchID,
		PaymentGroupID: groupID,
		Cfop:           cfop,
		Date:           at,
		IcmsValue:      icms,
		IssValue:       decimal.Zero,
		IpiValue:       ipi,
	}
}

// NewServiceEntry creates a service entry with the ISS value
func NewServiceEntry(branchID, groupID uuid.UUID, cfop string, iss decimal.Decimal, at time.Time) *FiscalBookEntry {
	return &FiscalBookEntry{
		BaseEntity:     shared.NewBaseEntity(),
		EntryType:      FiscalEntryService,
		BranchID:       branchID,
		PaymentGroupID: groupID,
		Cfop:           cfop,
		Date:           at,
		IcmsValue:      decimal.Zero,
		IssValue:       iss,
		IpiValue:       decimal.Zero,
	}
}

// Reverse creates a reversal of ratio (0 < ratio <= 1) of the entry amounts
func (e *FiscalBookEntry) Reverse(ratio decimal.Decimal, cfop string, at time.Time) (*FiscalBookEntry, error) {
	if !ratio.IsPositive() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return nil, shared.OutOfRangef("reversal ratio must be within (0, 1]: %s", ratio)
	}
	if e.IsReversal {
		return nil, shared.InvalidStatef("fiscal entry %s is already a reversal", e.ID)
	}
	orig := e.ID
	rev := &FiscalBookEntry{
		BaseEntity:     shared.NewBaseEntity(),
		EntryType:      e.EntryType,
		BranchID:       e.BranchID,
		PaymentGroupID: e.PaymentGroupID,
		DraweeID:       e.DraweeID,
		Cfop:           cfop,
		Date:           at,
		IcmsValue:      e.IcmsValue.Mul(ratio).RoundBank(2),
		IssValue:       e.IssValue.Mul(ratio).RoundBank(2),
		IpiValue:       e.IpiValue.Mul(ratio).RoundBank(2),
		IsReversal:     true,
		ReversalOfID:   &orig,
	}
	return rev, nil
}

// FiscalTotals are the net tax amounts of a set of entries
type FiscalTotals struct {
	Icms decimal.Decimal
	Iss  decimal.Decimal
	Ipi  decimal.Decimal
}

// NetFiscalTotals sums entries subtracting reversals
func NetFiscalTotals(entries []FiscalBookEntry) FiscalTotals {
	t := FiscalTotals{Icms: decimal.Zero, Iss: decimal.Zero, Ipi: decimal.Zero}
	for _, e := range entries {
		sign := decimal.NewFromInt(1)
		if e.IsReversal {
			sign = sign.Neg()
		}
		t.Icms = t.Icms.Add(e.IcmsValue.Mul(sign))
		t.Iss = t.Iss.Add(e.IssValue.Mul(sign))
		t.Ipi = t.Ipi.Add(e.IpiValue.Mul(sign))
	}
	return t
}
