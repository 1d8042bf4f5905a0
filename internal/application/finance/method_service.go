package finance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentRequest describes a payment to create through a method
type PaymentRequest struct {
	Type     finance.PaymentType
	GroupID  uuid.UUID
	BranchID uuid.UUID
	Value    decimal.Decimal
	// DueDate defaults to today
	DueDate     *time.Time
	Description string
	// BaseValue defaults to Value
	BaseValue *decimal.Decimal
	// Identifier is allocated when zero
	Identifier int64
	StationID  *uuid.UUID
}

// MethodService creates payments following the policy of their method
type MethodService struct {
	logger *zap.Logger
}

// NewMethodService creates a MethodService
func NewMethodService(logger *zap.Logger) *MethodService {
	return &MethodService{logger: logger}
}

// CreatePayment creates a preview payment. Incoming payments are capped per
// group by the method max installments: reaching the cap fails with
// PAYMENT_METHOD_ERROR, finding the cap already exceeded with
// DATABASE_INCONSISTENCY.
func (s *MethodService) CreatePayment(ctx context.Context, st store.Store, c shared.Context, method *finance.PaymentMethod, req PaymentRequest) (*finance.Payment, error) {
	if !method.IsActive {
		return nil, shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("payment method %s is not active", method.MethodName))
	}
	if !req.Value.IsPositive() {
		return nil, shared.OutOfRangef("payment value must be positive, got %s", req.Value)
	}
	group, err := st.PaymentGroups().FindByID(ctx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("load payment group: %w", err)
	}

	if req.Type == finance.PaymentTypeIn {
		existing, err := st.Payments().FindAll(ctx, shared.Where(
			"group_id", group.ID,
			"method_id", method.ID,
			"payment_type", string(finance.PaymentTypeIn),
		))
		if err != nil {
			return nil, fmt.Errorf("count group payments: %w", err)
		}
		if err := method.CheckInstallments(len(finance.Payments(existing).Valid())); err != nil {
			return nil, err
		}
	}
	if err := s.checkClientLimits(ctx, st, method, group, req); err != nil {
		return nil, err
	}

	dueDate := c.Today()
	if req.DueDate != nil {
		dueDate = *req.DueDate
	}
	branchID := req.BranchID
	if branchID == uuid.Nil {
		branchID = c.BranchID
	}
	p, err := finance.NewPayment(req.Type, method, group.ID, branchID, req.Value, c.Now(), dueDate)
	if err != nil {
		return nil, err
	}
	if req.BaseValue != nil {
		p.BaseValue = *req.BaseValue
	}
	p.Description = req.Description
	if p.Description == "" {
		p.Description = fmt.Sprintf("%s payment", method.Operation().Description)
	}
	p.StationID = req.StationID
	p.Identifier = req.Identifier
	if p.Identifier == 0 {
		if p.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierPayment, branchID); err != nil {
			return nil, fmt.Errorf("allocate payment identifier: %w", err)
		}
	}
	if err := st.Payments().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}
	if err := s.afterCreate(ctx, st, method, p); err != nil {
		return nil, err
	}

	s.logger.Debug("payment created",
		zap.String("payment_id", p.ID.String()),
		zap.String("method", string(method.MethodName)),
		zap.String("type", string(p.PaymentType)),
		zap.String("value", p.Value.String()),
	)
	return p, nil
}

// CreatePayments splits req.Value into one installment per due date. The last
// installment absorbs the rounding residual.
func (s *MethodService) CreatePayments(ctx context.Context, st store.Store, c shared.Context, method *finance.PaymentMethod, req PaymentRequest, dueDates []time.Time) ([]*finance.Payment, error) {
	if len(dueDates) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "at least one due date is required")
	}
	values, err := valueobject.Split(req.Value, len(dueDates), currencyPlaces(c))
	if err != nil {
		return nil, err
	}
	n := len(dueDates)
	payments := make([]*finance.Payment, 0, n)
	for i, value := range values {
		r := req
		r.Value = value
		r.BaseValue = nil
		r.DueDate = &dueDates[i]
		r.Identifier = 0
		if n > 1 {
			r.Description = installmentDescription(i+1, n, req.Description)
		}
		p, err := s.CreatePayment(ctx, st, c, method, r)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, nil
}

// CreateRepeated turns p into the first of a series of payments due at every
// repeat interval between start and end. The original becomes "1/N" and each
// sibling "i/N".
func (s *MethodService) CreateRepeated(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, repeat finance.RepeatType, start, end time.Time) ([]*finance.Payment, error) {
	dates, err := finance.RepeatDates(repeat, start, end)
	if err != nil {
		return nil, err
	}
	n := len(dates)
	if n < 2 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "the repeat interval produces a single payment")
	}
	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return nil, err
	}

	description := p.Description
	p.Description = installmentDescription(1, n, description)
	if err := p.ChangeDueDate(dates[0]); err != nil {
		return nil, err
	}
	if err := st.Payments().Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save payment: %w", err)
	}

	series := []*finance.Payment{p}
	for i := 1; i < n; i++ {
		base := p.BaseValue
		sibling, err := s.CreatePayment(ctx, st, c, method, PaymentRequest{
			Type:        p.PaymentType,
			GroupID:     p.GroupID,
			BranchID:    p.BranchID,
			Value:       p.Value,
			DueDate:     &dates[i],
			Description: installmentDescription(i+1, n, description),
			BaseValue:   &base,
			StationID:   p.StationID,
		})
		if err != nil {
			return nil, err
		}
		sibling.CategoryID = p.CategoryID
		if err := st.Payments().Save(ctx, sibling); err != nil {
			return nil, fmt.Errorf("save payment: %w", err)
		}
		series = append(series, sibling)
	}
	return series, nil
}

func installmentDescription(i, n int, description string) string {
	return strings.TrimSpace(fmt.Sprintf("%d/%d %s", i, n, description))
}

// checkClientLimits bounds store credit by the client credit limit and credit
// by the client credit balance
func (s *MethodService) checkClientLimits(ctx context.Context, st store.Store, method *finance.PaymentMethod, group *finance.PaymentGroup, req PaymentRequest) error {
	if req.Type != finance.PaymentTypeIn {
		return nil
	}
	if method.MethodName != finance.MethodStoreCredit && method.MethodName != finance.MethodCredit {
		return nil
	}
	if group.PayerID == nil {
		return shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("%s payments need a client", method.MethodName))
	}
	client, err := partner.FindFacet(ctx, st.Clients(), *group.PayerID)
	if err != nil {
		return err
	}
	if client == nil {
		return shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("%s payments need a client", method.MethodName))
	}

	if method.MethodName == finance.MethodCredit {
		if req.Value.GreaterThan(client.CreditBalance) {
			return shared.NewDomainError(shared.CodePaymentMethodError,
				fmt.Sprintf("client credit of %s is not enough for %s", client.CreditBalance, req.Value))
		}
		return nil
	}

	open, err := s.openStoreCredit(ctx, st, method, *group.PayerID)
	if err != nil {
		return err
	}
	if !client.CanPurchase(req.Value, open) {
		return shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("client credit limit of %s does not allow %s more (already open %s)",
				client.CreditLimit, req.Value, open))
	}
	return nil
}

func (s *MethodService) openStoreCredit(ctx context.Context, st store.Store, method *finance.PaymentMethod, personID uuid.UUID) (decimal.Decimal, error) {
	groups, err := st.PaymentGroups().FindAll(ctx, shared.Where("payer_id", personID))
	if err != nil {
		return decimal.Zero, err
	}
	open := decimal.Zero
	for _, g := range groups {
		payments, err := st.Payments().FindAll(ctx, shared.Where("group_id", g.ID, "method_id", method.ID))
		if err != nil {
			return decimal.Zero, err
		}
		for _, p := range finance.Payments(payments).OfType(finance.PaymentTypeIn).
			WithStatus(finance.PaymentStatusPreview, finance.PaymentStatusPending) {
			open = open.Add(p.Value)
		}
	}
	return open, nil
}

// afterCreate issues the method specific data rows
func (s *MethodService) afterCreate(ctx context.Context, st store.Store, method *finance.PaymentMethod, p *finance.Payment) error {
	switch method.MethodName {
	case finance.MethodCheck:
		if err := st.CheckData().Save(ctx, finance.NewCheckData(p.ID)); err != nil {
			return fmt.Errorf("save check data: %w", err)
		}
	case finance.MethodCard:
		if err := st.CardData().Save(ctx, finance.NewCardPaymentData(p.ID)); err != nil {
			return fmt.Errorf("save card data: %w", err)
		}
	}
	return nil
}
