package finance

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService drives the payment status machine and everything a status
// change implies: audit rows, account transactions, client credit and owner
// notification.
type PaymentService struct {
	attachments AttachmentStorage
	observers   []PaymentObserver
	logger      *zap.Logger
}

// NewPaymentService creates a PaymentService. attachments may be nil when
// documents are not stored.
func NewPaymentService(attachments AttachmentStorage, logger *zap.Logger) *PaymentService {
	return &PaymentService{attachments: attachments, logger: logger}
}

// AddObserver registers an observer of paid state changes
func (s *PaymentService) AddObserver(o PaymentObserver) {
	s.observers = append(s.observers, o)
}

// PayOptions overrides the defaults of Pay
type PayOptions struct {
	PaidDate             *time.Time
	PaidValue            *decimal.Decimal
	SourceAccountID      *uuid.UUID
	DestinationAccountID *uuid.UUID
	TransactionNumber    string
}

// SetPending moves a preview payment to pending
func (s *PaymentService) SetPending(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment) error {
	from := p.Status
	if err := p.SetPending(); err != nil {
		return err
	}
	return s.saveWithHistory(ctx, st, c, p, from, "")
}

// Pay pays a pending payment. Late payments without a preset interest get the
// interest (penalty included) due at the paid date.
func (s *PaymentService) Pay(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, opts PayOptions) error {
	if !p.IsPending() {
		return shared.InvalidStatef("cannot pay payment %d in status %s", p.Identifier, p.Status)
	}
	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return err
	}

	paidDate := c.Now()
	if opts.PaidDate != nil {
		paidDate = *opts.PaidDate
	}
	if p.Interest.IsZero() && p.GetDaysLate(paidDate) > 0 {
		penalty, err := p.GetPenalty(method, paidDate, c.Today())
		if err != nil {
			return err
		}
		interest, err := p.GetInterest(method, paidDate, c.Today(), true)
		if err != nil {
			return err
		}
		p.Penalty = penalty
		p.Interest = interest
	}
	paidValue := p.DefaultPaidValue()
	if opts.PaidValue != nil {
		paidValue = *opts.PaidValue
	}

	from := p.Status
	if err := p.Pay(paidDate, paidValue); err != nil {
		return err
	}
	if err := s.saveWithHistory(ctx, st, c, p, from, ""); err != nil {
		return err
	}

	if method.Operation().CreatesTransactions {
		if err := s.postTransaction(ctx, st, p, method, opts); err != nil {
			return err
		}
	}
	if method.MethodName == finance.MethodCredit {
		if err := s.moveClientCredit(ctx, st, p, false); err != nil {
			return err
		}
	}
	if err := LogEvent(ctx, st, c, finance.EventTypePayment, "Payment %d of %s was paid",
		p.Identifier, FormatMoney(c, p.PaidValue)); err != nil {
		return err
	}

	s.logger.Info("payment paid",
		zap.String("payment_id", p.ID.String()),
		zap.Int64("identifier", p.Identifier),
		zap.String("method", string(method.MethodName)),
		zap.String("paid_value", p.PaidValue.String()),
	)
	return s.notify(ctx, st, c, p, true)
}

// Cancel cancels a preview, pending or paid payment. A paid payment gets its
// account transactions reversed.
func (s *PaymentService) Cancel(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, reason string) error {
	from := p.Status
	wasPaid, err := p.Cancel(c.Now())
	if err != nil {
		return err
	}
	if err := s.saveWithHistory(ctx, st, c, p, from, reason); err != nil {
		return err
	}
	if wasPaid {
		if err := s.undoPaid(ctx, st, c, p); err != nil {
			return err
		}
	}
	if err := LogEvent(ctx, st, c, finance.EventTypePayment, "Payment %d of %s was cancelled",
		p.Identifier, FormatMoney(c, p.Value)); err != nil {
		return err
	}
	s.logger.Info("payment cancelled", zap.String("payment_id", p.ID.String()), zap.Bool("was_paid", wasPaid))
	if wasPaid {
		return s.notify(ctx, st, c, p, false)
	}
	return nil
}

// SetNotPaid brings a paid payment back to pending, reversing its account
// transactions
func (s *PaymentService) SetNotPaid(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, reason string) error {
	from := p.Status
	paidValue := p.PaidValue
	if err := p.SetNotPaid(); err != nil {
		return err
	}
	if err := s.saveWithHistory(ctx, st, c, p, from, reason); err != nil {
		return err
	}
	// the credit adjustment needs the value that was paid
	p.PaidValue = paidValue
	err := s.undoPaid(ctx, st, c, p)
	p.PaidValue = decimal.Zero
	if err != nil {
		return err
	}
	if err := LogEvent(ctx, st, c, finance.EventTypePayment, "Payment %d was set as not paid: %s",
		p.Identifier, reason); err != nil {
		return err
	}
	return s.notify(ctx, st, c, p, false)
}

// ChangeDueDate moves the due date, recording the change
func (s *PaymentService) ChangeDueDate(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, dueDate time.Time, reason string) error {
	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return err
	}
	if !method.Operation().CanChangeDueDate {
		return shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("the due date of %s payments cannot be changed", method.MethodName))
	}
	if shared.StartOfDay(dueDate).Before(shared.StartOfDay(p.OpenDate)) {
		return shared.OutOfRangef("due date cannot be before the open date of payment %d", p.Identifier)
	}
	old := p.DueDate
	if err := p.ChangeDueDate(dueDate); err != nil {
		return err
	}
	if err := st.Payments().Save(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	return st.PaymentHistory().Save(ctx, finance.NewDueDateChange(p.ID, old, dueDate, c.Now(), reason))
}

// Attach stores a document and records its key on the payment
func (s *PaymentService) Attach(ctx context.Context, st store.Store, p *finance.Payment, name, contentType string, data []byte) error {
	if s.attachments == nil {
		return shared.NewDomainError(shared.CodeInvalidState, "attachment storage is not configured")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return shared.NewDomainError(shared.CodeInvalidInput, "attachment is empty")
	}
	key := path.Join("payments", p.ID.String(), path.Base(name))
	if err := s.attachments.Put(ctx, key, contentType, data); err != nil {
		return fmt.Errorf("store attachment: %w", err)
	}
	previous := p.AttachmentKey
	p.AttachmentKey = key
	if err := st.Payments().Save(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	if previous != "" && previous != key {
		if err := s.attachments.Delete(ctx, previous); err != nil {
			s.logger.Warn("failed to delete replaced attachment", zap.String("key", previous), zap.Error(err))
		}
	}
	return nil
}

// IsMoneyType reports whether p uses the money method
func (s *PaymentService) IsMoneyType(ctx context.Context, st store.Store, p *finance.Payment) (bool, error) {
	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return false, err
	}
	return method.IsMoney(), nil
}

// PayableValue is the value to charge today
func (s *PaymentService) PayableValue(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment) (decimal.Decimal, error) {
	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return decimal.Zero, err
	}
	return p.GetPayableValue(method, c.Today())
}

func (s *PaymentService) saveWithHistory(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, from finance.PaymentStatus, reason string) error {
	if err := st.Payments().Save(ctx, p); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}
	if err := st.PaymentHistory().Save(ctx, finance.NewStatusChange(p.ID, from, p.Status, c.Now(), reason)); err != nil {
		return fmt.Errorf("save payment history: %w", err)
	}
	return nil
}

// postTransaction books the paid value. Incoming money leaves the imbalance
// account into the till or bank account; outgoing money goes the other way.
func (s *PaymentService) postTransaction(ctx context.Context, st store.Store, p *finance.Payment, method *finance.PaymentMethod, opts PayOptions) error {
	imbalance, err := FindOrCreateAccount(ctx, st, AccountImbalance, finance.AccountTypeImbalance)
	if err != nil {
		return err
	}
	var assetID uuid.UUID
	switch {
	case method.DestinationAccountID != nil:
		assetID = *method.DestinationAccountID
	case method.IsMoney():
		account, err := FindOrCreateAccount(ctx, st, AccountTills, finance.AccountTypeCash)
		if err != nil {
			return err
		}
		assetID = account.ID
	default:
		account, err := FindOrCreateAccount(ctx, st, AccountBanks, finance.AccountTypeBank)
		if err != nil {
			return err
		}
		assetID = account.ID
	}

	source, destination := imbalance.ID, assetID
	if p.IsOutpayment() {
		source, destination = assetID, imbalance.ID
	}
	if opts.SourceAccountID != nil {
		source = *opts.SourceAccountID
	}
	if opts.DestinationAccountID != nil {
		destination = *opts.DestinationAccountID
	}

	tx, err := finance.NewAccountTransaction(source, destination, p, opts.TransactionNumber)
	if err != nil {
		return err
	}
	if err := st.AccountTransactions().Save(ctx, tx); err != nil {
		return fmt.Errorf("save account transaction: %w", err)
	}
	return nil
}

// undoPaid reverses what Pay booked
func (s *PaymentService) undoPaid(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment) error {
	txs, err := st.AccountTransactions().FindAll(ctx, shared.Where("payment_id", p.ID))
	if err != nil {
		return fmt.Errorf("find account transactions: %w", err)
	}
	reversed := make(map[uuid.UUID]bool)
	for _, tx := range txs {
		if tx.ReversalOfID != nil {
			reversed[*tx.ReversalOfID] = true
		}
	}
	for i := range txs {
		tx := &txs[i]
		if tx.IsReversal() || reversed[tx.ID] {
			continue
		}
		if err := st.AccountTransactions().Save(ctx, tx.Reverse(c.Now())); err != nil {
			return fmt.Errorf("save reversal transaction: %w", err)
		}
	}

	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return err
	}
	if method.MethodName == finance.MethodCredit {
		return s.moveClientCredit(ctx, st, p, true)
	}
	return nil
}

// moveClientCredit applies a credit method payment to the client credit
// balance. Incoming credit payments spend the balance, outgoing ones (a
// return refunded as credit) add to it.
func (s *PaymentService) moveClientCredit(ctx context.Context, st store.Store, p *finance.Payment, undo bool) error {
	group, err := st.PaymentGroups().FindByID(ctx, p.GroupID)
	if err != nil {
		return fmt.Errorf("load payment group: %w", err)
	}
	personID := group.PayerID
	if p.IsOutpayment() {
		personID = group.RecipientID
	}
	if personID == nil {
		return shared.NewDomainError(shared.CodePaymentMethodError, "credit payments need a client")
	}
	client, err := partner.FindFacet(ctx, st.Clients(), *personID)
	if err != nil {
		return err
	}
	if client == nil {
		return shared.NewDomainError(shared.CodePaymentMethodError, "credit payments need a client")
	}

	delta := p.PaidValue
	if p.IsInpayment() {
		delta = delta.Neg()
	}
	if undo {
		delta = delta.Neg()
	}
	client.CreditBalance = client.CreditBalance.Add(delta)
	if client.CreditBalance.IsNegative() {
		return shared.NewDomainError(shared.CodePaymentMethodError,
			fmt.Sprintf("client credit is not enough for %s", p.PaidValue))
	}
	return st.Clients().Save(ctx, client)
}

func (s *PaymentService) notify(ctx context.Context, st store.Store, c shared.Context, p *finance.Payment, paid bool) error {
	if len(s.observers) == 0 {
		return nil
	}
	group, err := st.PaymentGroups().FindByID(ctx, p.GroupID)
	if err != nil {
		return fmt.Errorf("load payment group: %w", err)
	}
	if group.IsLonely() {
		return nil
	}
	for _, o := range s.observers {
		if paid {
			err = o.PaymentPaid(ctx, st, c, p, group)
		} else {
			err = o.PaymentUnpaid(ctx, st, c, p, group)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
