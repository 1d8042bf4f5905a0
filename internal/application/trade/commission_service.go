package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CommissionService computes salesperson commissions on sale payments
type CommissionService struct {
	logger *zap.Logger
}

// NewCommissionService creates a new CommissionService
func NewCommissionService(logger *zap.Logger) *CommissionService {
	return &CommissionService{logger: logger}
}

// SourceFor returns the most specific commission source of sellable: its
// own, then its category, then the ancestors of the category up to the base
// category. It returns nil when none is configured.
func (s *CommissionService) SourceFor(ctx context.Context, st store.Store, sellableID uuid.UUID) (*catalog.CommissionSource, error) {
	source, err := st.CommissionSources().FindOne(ctx, shared.Where("sellable_id", sellableID))
	if err == nil {
		return source, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("load commission source: %w", err)
	}
	sellable, err := st.Sellables().FindByID(ctx, sellableID)
	if err != nil {
		return nil, fmt.Errorf("load sellable: %w", err)
	}

	categoryID := sellable.CategoryID
	seen := make(map[uuid.UUID]bool)
	for categoryID != nil && !seen[*categoryID] {
		seen[*categoryID] = true
		source, err := st.CommissionSources().FindOne(ctx, shared.Where("category_id", *categoryID))
		if err == nil {
			return source, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("load commission source: %w", err)
		}
		category, err := st.Categories().FindByID(ctx, *categoryID)
		if err != nil {
			return nil, fmt.Errorf("load category: %w", err)
		}
		categoryID = category.ParentID
	}
	return nil, nil
}

// Rate is the percentage earned on a sale: the rates of its items weighted by
// item totals
func (s *CommissionService) Rate(ctx context.Context, st store.Store, items []trade.SaleItem, installments bool) (decimal.Decimal, error) {
	weighted := decimal.Zero
	total := decimal.Zero
	for i := range items {
		item := &items[i]
		if item.IsPackage {
			continue
		}
		source, err := s.SourceFor(ctx, st, item.SellableID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(item.Total())
		if source != nil {
			weighted = weighted.Add(item.Total().Mul(source.Rate(installments)))
		}
	}
	if total.IsZero() {
		return decimal.Zero, nil
	}
	return weighted.Div(total), nil
}

// CreateForPayment creates the commission of one inpayment. Sales without
// salesperson and payments already commissioned produce nothing.
func (s *CommissionService) CreateForPayment(ctx context.Context, st store.Store, sale *trade.Sale, payment *finance.Payment) (*finance.Commission, error) {
	if sale.SalesPersonID == nil || !payment.IsInpayment() || payment.IsCancelled() {
		return nil, nil
	}
	exists, err := st.Commissions().Count(ctx, shared.Where("payment_id", payment.ID))
	if err != nil {
		return nil, fmt.Errorf("count commissions: %w", err)
	}
	if exists > 0 {
		return nil, nil
	}

	value, commissionType, err := s.value(ctx, st, sale, payment, decimal.Zero)
	if err != nil {
		return nil, err
	}
	commission := finance.NewCommission(*sale.SalesPersonID, sale.ID, payment.ID, commissionType, value)
	if err := st.Commissions().Save(ctx, commission); err != nil {
		return nil, fmt.Errorf("save commission: %w", err)
	}
	s.logger.Debug("commission created",
		zap.String("sale_id", sale.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("value", commission.Value.String()),
	)
	return commission, nil
}

// CreateForSale creates the missing commissions of every valid inpayment
func (s *CommissionService) CreateForSale(ctx context.Context, st store.Store, sale *trade.Sale) ([]*finance.Commission, error) {
	payments, err := st.Payments().FindAll(ctx, shared.Where("group_id", sale.GroupID))
	if err != nil {
		return nil, fmt.Errorf("load sale payments: %w", err)
	}
	var created []*finance.Commission
	for i := range payments {
		commission, err := s.CreateForPayment(ctx, st, sale, &payments[i])
		if err != nil {
			return nil, err
		}
		if commission != nil {
			created = append(created, commission)
		}
	}
	return created, nil
}

// Rebalance recomputes the commissions of sale leaving out the returned share
// of its value
func (s *CommissionService) Rebalance(ctx context.Context, st store.Store, sale *trade.Sale, returnedRatio decimal.Decimal) error {
	commissions, err := st.Commissions().FindAll(ctx, shared.Where("sale_id", sale.ID))
	if err != nil {
		return fmt.Errorf("load commissions: %w", err)
	}
	for i := range commissions {
		commission := &commissions[i]
		payment, err := st.Payments().FindByID(ctx, commission.PaymentID)
		if err != nil {
			return fmt.Errorf("load commissioned payment: %w", err)
		}
		value, _, err := s.value(ctx, st, sale, payment, returnedRatio)
		if err != nil {
			return err
		}
		commission.Value = value
		if err := st.Commissions().Save(ctx, commission); err != nil {
			return fmt.Errorf("save commission: %w", err)
		}
	}
	return nil
}

// value is payment.value x rate x salesperson factor, minus the returned share
func (s *CommissionService) value(ctx context.Context, st store.Store, sale *trade.Sale, payment *finance.Payment, returnedRatio decimal.Decimal) (decimal.Decimal, finance.CommissionType, error) {
	salesPerson, err := st.SalesPersons().FindByID(ctx, *sale.SalesPersonID)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("load salesperson: %w", err)
	}
	payments, err := st.Payments().FindAll(ctx, shared.Where("group_id", sale.GroupID, "payment_type", string(finance.PaymentTypeIn)))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("load sale payments: %w", err)
	}
	installments := len(finance.Payments(payments).Valid()) > 1
	commissionType := finance.CommissionDirect
	if installments {
		commissionType = finance.CommissionInstallments
	}

	items, err := st.SaleItems().FindAll(ctx, shared.Where("sale_id", sale.ID))
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("load sale items: %w", err)
	}
	rate, err := s.Rate(ctx, st, items, installments)
	if err != nil {
		return decimal.Zero, "", err
	}
	value := payment.Value.Mul(rate).Div(valueobject.Hundred).Mul(salesPerson.CommissionFactor)
	value = value.Mul(decimal.NewFromInt(1).Sub(returnedRatio))
	return value.RoundBank(2), commissionType, nil
}
