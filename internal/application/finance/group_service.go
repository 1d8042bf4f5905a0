package finance

import (
	"context"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GroupService operates on all the payments of a payment group
type GroupService struct {
	payments *PaymentService
	tills    *TillService
	logger   *zap.Logger
}

// NewGroupService creates a GroupService
func NewGroupService(payments *PaymentService, tills *TillService, logger *zap.Logger) *GroupService {
	return &GroupService{payments: payments, tills: tills, logger: logger}
}

// CreateGroup creates a lonely group between payer and recipient persons
func (s *GroupService) CreateGroup(ctx context.Context, st store.Store, payerID, recipientID *uuid.UUID) (*finance.PaymentGroup, error) {
	group := finance.NewPaymentGroup(payerID, recipientID)
	if err := st.PaymentGroups().Save(ctx, group); err != nil {
		return nil, fmt.Errorf("save payment group: %w", err)
	}
	return group, nil
}

// GetPayments lists every payment of the group in creation order
func (s *GroupService) GetPayments(ctx context.Context, st store.Store, groupID uuid.UUID) (finance.Payments, error) {
	rows, err := st.Payments().FindAll(ctx, shared.Where("group_id", groupID))
	if err != nil {
		return nil, fmt.Errorf("find group payments: %w", err)
	}
	return finance.Payments(rows), nil
}

// GetValidPayments lists the payments that are not cancelled
func (s *GroupService) GetValidPayments(ctx context.Context, st store.Store, groupID uuid.UUID) (finance.Payments, error) {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return nil, err
	}
	return payments.Valid(), nil
}

// GetPendingPayments lists the pending payments
func (s *GroupService) GetPendingPayments(ctx context.Context, st store.Store, groupID uuid.UUID) (finance.Payments, error) {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return nil, err
	}
	return payments.WithStatus(finance.PaymentStatusPending), nil
}

// GetTotalPaid sums paid values, outpayments subtracting
func (s *GroupService) GetTotalPaid(ctx context.Context, st store.Store, groupID uuid.UUID) (decimal.Decimal, error) {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	return payments.TotalPaid(), nil
}

// GetTotalValue sums the value of valid payments, outpayments subtracting
func (s *GroupService) GetTotalValue(ctx context.Context, st store.Store, groupID uuid.UUID) (decimal.Decimal, error) {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	return payments.TotalValue(), nil
}

// GetTotalDiscount sums the discount of valid payments
func (s *GroupService) GetTotalDiscount(ctx context.Context, st store.Store, groupID uuid.UUID) (decimal.Decimal, error) {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return decimal.Zero, err
	}
	return payments.TotalDiscount(), nil
}

// Confirm sets every preview payment of the group as pending
func (s *GroupService) Confirm(ctx context.Context, st store.Store, c shared.Context, groupID uuid.UUID) error {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return err
	}
	for i := range payments {
		if !payments[i].IsPreview() {
			continue
		}
		if err := s.payments.SetPending(ctx, st, c, &payments[i]); err != nil {
			return err
		}
	}
	return nil
}

// Cancel cancels every payment that is not paid
func (s *GroupService) Cancel(ctx context.Context, st store.Store, c shared.Context, groupID uuid.UUID, reason string) error {
	payments, err := s.GetPayments(ctx, st, groupID)
	if err != nil {
		return err
	}
	for i := range payments {
		p := &payments[i]
		if !p.IsPreview() && !p.IsPending() {
			continue
		}
		if err := s.payments.Cancel(ctx, st, c, p, reason); err != nil {
			return err
		}
	}
	return nil
}

// PayMoneyPayments pays the pending money payments of the group and registers
// them in till. It returns the payments it paid.
func (s *GroupService) PayMoneyPayments(ctx context.Context, st store.Store, c shared.Context, groupID uuid.UUID, till *finance.Till) ([]*finance.Payment, error) {
	payments, err := s.GetPendingPayments(ctx, st, groupID)
	if err != nil {
		return nil, err
	}
	var paid []*finance.Payment
	for i := range payments {
		p := &payments[i]
		method, err := loadMethod(ctx, st, p)
		if err != nil {
			return nil, err
		}
		if !method.Operation().PaysImmediately {
			continue
		}
		if till != nil {
			if _, err := s.tills.AddEntry(ctx, st, c, till, p); err != nil {
				return nil, err
			}
		}
		if err := s.payments.Pay(ctx, st, c, p, PayOptions{}); err != nil {
			return nil, err
		}
		paid = append(paid, p)
	}
	return paid, nil
}
