package trade

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
)

// QuoteGroup gathers the quotations sent to several suppliers for one need
type QuoteGroup struct {
	shared.BaseAggregateRoot
	BranchID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (QuoteGroup) TableName() string {
	return "quote_group"
}

// NewQuoteGroup creates a quote group
func NewQuoteGroup(branchID uuid.UUID) *QuoteGroup {
	return &QuoteGroup{BaseAggregateRoot: shared.NewBaseAggregateRoot(), BranchID: branchID}
}

// Quotation links a quoting purchase order to its group
type Quotation struct {
	shared.BaseAggregateRoot
	GroupID    uuid.UUID `gorm:"type:uuid;not null;index"`
	PurchaseID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	BranchID   uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName returns the table name for GORM
func (Quotation) TableName() string {
	return "quotation"
}

// NewQuotation attaches a quoting purchase to a group
func NewQuotation(group *QuoteGroup, purchase *PurchaseOrder) (*Quotation, error) {
	if purchase.Status != PurchaseStatusQuoting {
		return nil, shared.InvalidStatef("purchase %d is %s, quotations need a quoting purchase", purchase.Identifier, purchase.Status)
	}
	return &Quotation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		GroupID:           group.ID,
		PurchaseID:        purchase.ID,
		BranchID:          group.BranchID,
	}, nil
}
