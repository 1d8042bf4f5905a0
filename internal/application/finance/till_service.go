package finance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultStationLockTTL bounds how long a crashed opener can block a station
const defaultStationLockTTL = 30 * time.Second

// TillService manages the cash register sessions of stations
type TillService struct {
	payments *PaymentService
	methods  *MethodService
	locker   StationLocker
	lockTTL  time.Duration
	logger   *zap.Logger
}

// NewTillService creates a TillService. locker may be nil for single process
// deployments.
func NewTillService(payments *PaymentService, methods *MethodService, locker StationLocker, logger *zap.Logger) *TillService {
	return &TillService{payments: payments, methods: methods, locker: locker, lockTTL: defaultStationLockTTL, logger: logger}
}

// SetLockTTL changes how long the station lock is held at most. Non-positive
// values keep the default.
func (s *TillService) SetLockTTL(ttl time.Duration) {
	if ttl > 0 {
		s.lockTTL = ttl
	}
}

// OpenTill opens a session on the context station carrying forward the cash
// the last session closed with. A station opens at most one session per day.
func (s *TillService) OpenTill(ctx context.Context, st store.Store, c shared.Context) (*finance.Till, error) {
	if s.locker != nil {
		token, err := s.locker.Acquire(ctx, c.StationID, s.lockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := s.locker.Release(ctx, c.StationID, token); err != nil {
				s.logger.Warn("failed to release station lock", zap.String("station_id", c.StationID.String()), zap.Error(err))
			}
		}()
	}

	tills, err := st.Tills().FindAll(ctx, shared.Where("station_id", c.StationID))
	if err != nil {
		return nil, fmt.Errorf("find station tills: %w", err)
	}
	for i := range tills {
		if tills[i].IsOpen() {
			return nil, shared.InvalidStatef("station already has the open till %d", tills[i].Identifier)
		}
	}
	initial := decimal.Zero
	if last := lastClosed(tills); last != nil {
		if !last.ClosingDate.Before(c.Today()) {
			return nil, shared.InvalidStatef("till %d was already closed today", last.Identifier)
		}
		initial = last.CarriedAmount()
	}

	till := finance.NewTill(c.StationID, c.BranchID)
	if till.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierTill, c.BranchID); err != nil {
		return nil, fmt.Errorf("allocate till identifier: %w", err)
	}
	if err := till.Open(initial, c.Now(), c.UserID); err != nil {
		return nil, err
	}
	if err := st.Tills().Save(ctx, till); err != nil {
		return nil, fmt.Errorf("save till: %w", err)
	}
	if err := LogEvent(ctx, st, c, finance.EventTypeSystem, "Till %d opened with %s",
		till.Identifier, FormatMoney(c, initial)); err != nil {
		return nil, err
	}

	s.logger.Info("till opened",
		zap.String("till_id", till.ID.String()),
		zap.String("station_id", c.StationID.String()),
		zap.String("initial_cash_amount", initial.String()),
	)
	return till, nil
}

// GetCurrent returns the open till of a station or TILL_CLOSED
func (s *TillService) GetCurrent(ctx context.Context, st store.Store, stationID uuid.UUID) (*finance.Till, error) {
	till, err := st.Tills().FindOne(ctx, shared.Where("station_id", stationID, "status", string(finance.TillStatusOpen)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrTillClosed
		}
		return nil, err
	}
	return till, nil
}

// GetLastClosed returns the most recently closed till of a station
func (s *TillService) GetLastClosed(ctx context.Context, st store.Store, stationID uuid.UUID) (*finance.Till, error) {
	tills, err := st.Tills().FindAll(ctx, shared.Where("station_id", stationID))
	if err != nil {
		return nil, err
	}
	last := lastClosed(tills)
	if last == nil {
		return nil, shared.ErrNotFound
	}
	return last, nil
}

func lastClosed(tills []finance.Till) *finance.Till {
	var last *finance.Till
	for i := range tills {
		t := &tills[i]
		if t.ClosingDate == nil {
			continue
		}
		if last == nil || t.ClosingDate.After(*last.ClosingDate) {
			last = t
		}
	}
	return last
}

// AddEntry registers payment in till. Incoming payments and, unless the
// parameter relaxes it, outgoing money need an open till that does not
// await closing.
func (s *TillService) AddEntry(ctx context.Context, st store.Store, c shared.Context, till *finance.Till, p *finance.Payment) (*finance.TillEntry, error) {
	method, err := loadMethod(ctx, st, p)
	if err != nil {
		return nil, err
	}
	needsOpen := p.IsInpayment() || method.IsMoney() && requireOpenTillForOutMoney(c)
	if needsOpen {
		if err := s.checkUsable(c, till); err != nil {
			return nil, err
		}
	}

	entry := finance.NewTillEntry(till, p, c.Now())
	if err := st.TillEntries().Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("save till entry: %w", err)
	}
	if p.StationID == nil {
		station := till.StationID
		p.StationID = &station
		if err := st.Payments().Save(ctx, p); err != nil {
			return nil, fmt.Errorf("save payment: %w", err)
		}
	}
	return entry, nil
}

func requireOpenTillForOutMoney(c shared.Context) bool {
	return c.Params == nil || c.Params.Bool(param.RequireOpenTillForOutMoney)
}

func (s *TillService) checkUsable(c shared.Context, till *finance.Till) error {
	if !till.IsOpen() {
		return shared.NewDomainError(shared.CodeTillClosed, fmt.Sprintf("till %d is %s", till.Identifier, till.Status))
	}
	if s.NeedsClosing(c, till) && (c.Params == nil || !c.Params.Bool(param.AllowOutdatedOperations)) {
		return shared.NewDomainError(shared.CodeTillClosed,
			fmt.Sprintf("till %d was opened on %s and must be closed first", till.Identifier, till.OpeningDate.Format("2006-01-02")))
	}
	return nil
}

// AddCredit puts cash into the till through a paid money inpayment
func (s *TillService) AddCredit(ctx context.Context, st store.Store, c shared.Context, till *finance.Till, value decimal.Decimal, reason string) (*finance.TillEntry, error) {
	return s.addCash(ctx, st, c, till, finance.PaymentTypeIn, value, reason)
}

// AddDebit takes cash out of the till through a paid money outpayment
func (s *TillService) AddDebit(ctx context.Context, st store.Store, c shared.Context, till *finance.Till, value decimal.Decimal, reason string) (*finance.TillEntry, error) {
	return s.addCash(ctx, st, c, till, finance.PaymentTypeOut, value, reason)
}

func (s *TillService) addCash(ctx context.Context, st store.Store, c shared.Context, till *finance.Till, paymentType finance.PaymentType, value decimal.Decimal, reason string) (*finance.TillEntry, error) {
	if err := s.checkUsable(c, till); err != nil {
		return nil, err
	}
	money, err := FindMethod(ctx, st, finance.MethodMoney)
	if err != nil {
		return nil, err
	}
	group := finance.NewPaymentGroup(nil, nil)
	if err := st.PaymentGroups().Save(ctx, group); err != nil {
		return nil, fmt.Errorf("save payment group: %w", err)
	}
	station := till.StationID
	p, err := s.methods.CreatePayment(ctx, st, c, money, PaymentRequest{
		Type:        paymentType,
		GroupID:     group.ID,
		BranchID:    till.BranchID,
		Value:       value,
		Description: reason,
		StationID:   &station,
	})
	if err != nil {
		return nil, err
	}
	if err := s.payments.SetPending(ctx, st, c, p); err != nil {
		return nil, err
	}
	entry, err := s.AddEntry(ctx, st, c, till, p)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Pay(ctx, st, c, p, PayOptions{}); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetCashAmount sums the entries that count as cash
func (s *TillService) GetCashAmount(ctx context.Context, st store.Store, till *finance.Till) (decimal.Decimal, error) {
	entries, err := st.TillEntries().FindAll(ctx, shared.Where("till_id", till.ID))
	if err != nil {
		return decimal.Zero, fmt.Errorf("find till entries: %w", err)
	}
	methods := make(map[uuid.UUID]*finance.PaymentMethod)
	total := decimal.Zero
	for _, entry := range entries {
		var p *finance.Payment
		var method *finance.PaymentMethod
		if entry.PaymentID != nil {
			if p, err = st.Payments().FindByID(ctx, *entry.PaymentID); err != nil {
				return decimal.Zero, fmt.Errorf("load payment of till entry: %w", err)
			}
			method = methods[p.MethodID]
			if method == nil {
				if method, err = loadMethod(ctx, st, p); err != nil {
					return decimal.Zero, err
				}
				methods[p.MethodID] = method
			}
		}
		if finance.EntryCountsAsCash(p, method) {
			total = total.Add(entry.Value)
		}
	}
	return total, nil
}

// GetBalance is the initial cash amount plus the cash entries
func (s *TillService) GetBalance(ctx context.Context, st store.Store, till *finance.Till) (decimal.Decimal, error) {
	cash, err := s.GetCashAmount(ctx, st, till)
	if err != nil {
		return decimal.Zero, err
	}
	return till.InitialCashAmount.Add(cash), nil
}

// CloseTill closes the session. removeCash, when positive, is withdrawn as a
// debit first. A negative final amount fails and the store must roll back.
func (s *TillService) CloseTill(ctx context.Context, st store.Store, c shared.Context, till *finance.Till, removeCash decimal.Decimal) error {
	if !till.IsOpen() {
		return shared.InvalidStatef("till %d is %s, only open tills can be closed", till.Identifier, till.Status)
	}
	if removeCash.IsNegative() {
		return shared.OutOfRangef("removed cash cannot be negative: %s", removeCash)
	}
	if removeCash.IsPositive() {
		if _, err := s.withdraw(ctx, st, c, till, removeCash); err != nil {
			return err
		}
	}

	final, err := s.GetBalance(ctx, st, till)
	if err != nil {
		return err
	}
	if err := till.Close(final, c.Now(), c.UserID); err != nil {
		return err
	}
	if err := st.Tills().Save(ctx, till); err != nil {
		return fmt.Errorf("save till: %w", err)
	}
	if err := LogEvent(ctx, st, c, finance.EventTypeSystem, "Till %d closed with %s",
		till.Identifier, FormatMoney(c, final)); err != nil {
		return err
	}

	s.logger.Info("till closed",
		zap.String("till_id", till.ID.String()),
		zap.String("final_cash_amount", final.String()),
	)
	return nil
}

func (s *TillService) withdraw(ctx context.Context, st store.Store, c shared.Context, till *finance.Till, value decimal.Decimal) (*finance.TillEntry, error) {
	// closing is how an outdated till stops being outdated
	relaxed := c
	if s.NeedsClosing(c, till) {
		params := c.Params
		if params == nil {
			params = param.Defaults()
		}
		relaxed.Params = allowOutdated{params}
	}
	return s.AddDebit(ctx, st, relaxed, till, value, "Cash removed on closing")
}

// Verify marks a closed till as checked
func (s *TillService) Verify(ctx context.Context, st store.Store, till *finance.Till, observations string) error {
	if err := till.Verify(observations); err != nil {
		return err
	}
	return st.Tills().Save(ctx, till)
}

// NeedsClosing reports whether till was opened before today minus the
// closing tolerance
func (s *TillService) NeedsClosing(c shared.Context, till *finance.Till) bool {
	tolerance := 0
	if c.Params != nil {
		tolerance = c.Params.Int(param.TillToleranceForClosing)
	}
	return till.NeedsClosing(c.Now(), tolerance)
}

// allowOutdated overrides ALLOW_OUTDATED_OPERATIONS
type allowOutdated struct {
	shared.Parameters
}

func (p allowOutdated) Bool(name string) bool {
	if name == param.AllowOutdatedOperations {
		return true
	}
	return p.Parameters.Bool(name)
}
