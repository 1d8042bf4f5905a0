package trade

import (
	"context"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QuoteService asks several suppliers for prices through quoting purchases
type QuoteService struct {
	purchases *PurchaseService
	logger    *zap.Logger
}

// NewQuoteService creates a new QuoteService
func NewQuoteService(purchases *PurchaseService, logger *zap.Logger) *QuoteService {
	return &QuoteService{purchases: purchases, logger: logger}
}

// CreateQuoteGroup creates an empty group on the context branch
func (s *QuoteService) CreateQuoteGroup(ctx context.Context, st store.Store, c shared.Context) (*trade.QuoteGroup, error) {
	group := trade.NewQuoteGroup(c.BranchID)
	var err error
	if group.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierQuoteGroup, c.BranchID); err != nil {
		return nil, fmt.Errorf("allocate quote group identifier: %w", err)
	}
	if err := st.QuoteGroups().Save(ctx, group); err != nil {
		return nil, fmt.Errorf("save quote group: %w", err)
	}
	return group, nil
}

// AddQuotation opens a quoting purchase with supplierID inside group
func (s *QuoteService) AddQuotation(ctx context.Context, st store.Store, c shared.Context, group *trade.QuoteGroup, supplierID uuid.UUID) (*trade.Quotation, *trade.PurchaseOrder, error) {
	order, err := s.purchases.Create(ctx, st, c, supplierID, true)
	if err != nil {
		return nil, nil, err
	}
	quotation, err := trade.NewQuotation(group, order)
	if err != nil {
		return nil, nil, err
	}
	if quotation.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierQuotation, group.BranchID); err != nil {
		return nil, nil, fmt.Errorf("allocate quotation identifier: %w", err)
	}
	if err := st.Quotations().Save(ctx, quotation); err != nil {
		return nil, nil, fmt.Errorf("save quotation: %w", err)
	}
	return quotation, order, nil
}

// Quotations lists the quotations of group
func (s *QuoteService) Quotations(ctx context.Context, st store.Store, groupID uuid.UUID) ([]trade.Quotation, error) {
	return st.Quotations().FindAll(ctx, shared.Where("group_id", groupID))
}

// CloseQuotation gives up a quotation, cancelling its purchase
func (s *QuoteService) CloseQuotation(ctx context.Context, st store.Store, c shared.Context, quotation *trade.Quotation) error {
	order, err := st.Purchases().FindByID(ctx, quotation.PurchaseID)
	if err != nil {
		return fmt.Errorf("load quoted purchase: %w", err)
	}
	if order.Status != trade.PurchaseStatusQuoting {
		return shared.InvalidStatef("quotation %d is already closed (purchase %s)", quotation.Identifier, order.Status)
	}
	return s.purchases.Cancel(ctx, st, c, order, "quotation closed")
}

// ConvertQuotation turns the quoted purchase into a pending order
func (s *QuoteService) ConvertQuotation(ctx context.Context, st store.Store, quotation *trade.Quotation) (*trade.PurchaseOrder, error) {
	order, err := st.Purchases().FindByID(ctx, quotation.PurchaseID)
	if err != nil {
		return nil, fmt.Errorf("load quoted purchase: %w", err)
	}
	if err := order.ConvertQuote(); err != nil {
		return nil, err
	}
	if err := st.Purchases().Save(ctx, order); err != nil {
		return nil, fmt.Errorf("save purchase: %w", err)
	}
	s.logger.Info("quotation converted",
		zap.Int64("quotation", quotation.Identifier),
		zap.Int64("purchase", order.Identifier),
	)
	return order, nil
}
