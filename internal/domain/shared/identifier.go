package shared

import (
	"context"

	"github.com/google/uuid"
)

// IdentifierKind names an identifier sequence
type IdentifierKind string

const (
	IdentifierSale         IdentifierKind = "sale"
	IdentifierPurchase     IdentifierKind = "purchase"
	IdentifierReceiving    IdentifierKind = "receiving"
	IdentifierLoan         IdentifierKind = "loan"
	IdentifierPayment      IdentifierKind = "payment"
	IdentifierQuotation    IdentifierKind = "quotation"
	IdentifierQuoteGroup   IdentifierKind = "quote_group"
	IdentifierReturnedSale IdentifierKind = "returned_sale"
	IdentifierWorkOrder    IdentifierKind = "work_order"
	IdentifierTill         IdentifierKind = "till"
)

// SynchronizedModeParam is the boolean parameter turning on temporary
// identifiers for objects of other branches
const SynchronizedModeParam = "SYNCHRONIZED_MODE"

// IdentifierAllocator hands out per-branch monotone identifiers.
type IdentifierAllocator interface {
	// Next returns the next positive identifier for (kind, branch)
	Next(ctx context.Context, kind IdentifierKind, branchID uuid.UUID) (int64, error)
	// NextTemporary returns a negative identifier for objects created on behalf
	// of another branch while in synchronized mode
	NextTemporary(ctx context.Context, kind IdentifierKind) (int64, error)
}

// AllocateIdentifier picks a definitive or temporary identifier depending on
// whether the object belongs to the operating branch in synchronized mode.
func AllocateIdentifier(ctx context.Context, alloc IdentifierAllocator, c Context, kind IdentifierKind, branchID uuid.UUID) (int64, error) {
	if c.Params != nil && c.Params.Bool(SynchronizedModeParam) && branchID != c.BranchID {
		return alloc.NextTemporary(ctx, kind)
	}
	return alloc.Next(ctx, kind, branchID)
}
