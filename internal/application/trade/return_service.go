package trade

import (
	"context"
	"fmt"
	"sort"
	"time"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// returnCfop is the CFOP of a sale return entry
const returnCfop = "1.202"

// Refund policies of the RETURN_POLICY_ON_SALE parameter
const (
	RefundPolicyMoney         = "money"
	RefundPolicyCredit        = "credit"
	RefundPolicyClientDecides = "client_decides"
)

// ReturnAdapter is a return being prepared: one item per sale item that can
// still be returned, all with a zero quantity
type ReturnAdapter struct {
	Returned *trade.ReturnedSale
	Items    []*trade.ReturnedSaleItem
	// Credit refunds the client as store credit when the policy lets the
	// client decide
	Credit bool
}

// Item returns the returned item mirroring saleItemID
func (a *ReturnAdapter) Item(saleItemID uuid.UUID) *trade.ReturnedSaleItem {
	for _, item := range a.Items {
		if item.SaleItemID == saleItemID {
			return item
		}
	}
	return nil
}

// SetQuantity sets the returned quantity of a sale item. Package children
// follow their parent in proportion.
func (a *ReturnAdapter) SetQuantity(saleItemID uuid.UUID, qty decimal.Decimal) error {
	item := a.Item(saleItemID)
	if item == nil {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("sale item %s cannot be returned", saleItemID))
	}
	if err := item.SetQuantity(qty); err != nil {
		return err
	}
	for _, child := range a.Items {
		if child.ParentItemID == nil || *child.ParentItemID != item.ID || item.MaxQuantity.IsZero() {
			continue
		}
		if err := child.SetQuantity(child.MaxQuantity.Mul(qty).Div(item.MaxQuantity)); err != nil {
			return err
		}
	}
	return nil
}

// ReturnService returns sales, fully or partially, and undoes those returns
type ReturnService struct {
	sales  *SaleService
	logger *zap.Logger
}

// NewReturnService creates a ReturnService and plugs it into sales
func NewReturnService(sales *SaleService, logger *zap.Logger) *ReturnService {
	r := &ReturnService{sales: sales, logger: logger}
	sales.returns = r
	return r
}

// CreateReturnAdapter prepares a return of sale. Nothing is saved until
// Return or CreatePending.
func (s *ReturnService) CreateReturnAdapter(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale) (*ReturnAdapter, error) {
	returned, err := trade.NewReturnedSale(sale, c.UserID, c.Now(), false)
	if err != nil {
		return nil, err
	}
	items, err := s.sales.Items(ctx, st, sale.ID)
	if err != nil {
		return nil, err
	}
	adapter := &ReturnAdapter{Returned: returned}
	mirrors := make(map[uuid.UUID]uuid.UUID, len(items))
	for i := range items {
		item := &items[i]
		if !item.ReturnableQuantity().IsPositive() {
			continue
		}
		mirror := trade.NewReturnedSaleItem(returned, item)
		mirrors[item.ID] = mirror.ID
		adapter.Items = append(adapter.Items, mirror)
	}
	for _, mirror := range adapter.Items {
		for i := range items {
			if items[i].ID != mirror.SaleItemID || items[i].ParentItemID == nil {
				continue
			}
			if parent, ok := mirrors[*items[i].ParentItemID]; ok {
				mirror.ParentItemID = &parent
			}
		}
	}
	return adapter, nil
}

// CreatePending saves the return waiting for a confirmation. Stock and money
// do not move until ConfirmPending.
func (s *ReturnService) CreatePending(ctx context.Context, st store.Store, c shared.Context, adapter *ReturnAdapter) error {
	adapter.Returned.Status = trade.ReturnedSaleStatusPending
	return s.save(ctx, st, c, adapter)
}

// ConfirmPending runs a pending return
func (s *ReturnService) ConfirmPending(ctx context.Context, st store.Store, c shared.Context, returnedID uuid.UUID) (*trade.ReturnedSale, error) {
	returned, err := st.ReturnedSales().FindByID(ctx, returnedID)
	if err != nil {
		return nil, fmt.Errorf("load returned sale: %w", err)
	}
	if err := returned.Confirm(c.Now(), c.UserID); err != nil {
		return nil, err
	}
	items, err := st.ReturnedSaleItems().FindAll(ctx, shared.Where("returned_sale_id", returned.ID))
	if err != nil {
		return nil, fmt.Errorf("load returned sale items: %w", err)
	}
	adapter := &ReturnAdapter{Returned: returned}
	for i := range items {
		adapter.Items = append(adapter.Items, &items[i])
	}
	if err := s.apply(ctx, st, c, adapter); err != nil {
		return nil, err
	}
	return returned, nil
}

// Return saves the return and applies it: the goods go back to stock, the
// fiscal book is reversed in proportion and the client is refunded up to
// what was paid
func (s *ReturnService) Return(ctx context.Context, st store.Store, c shared.Context, adapter *ReturnAdapter) error {
	if adapter.Returned.IsPending() {
		return shared.InvalidStatef("returned sale %d is pending, confirm it instead", adapter.Returned.Identifier)
	}
	if err := s.save(ctx, st, c, adapter); err != nil {
		return err
	}
	adapter.Returned.MarkConfirmed(c.Now())
	return s.apply(ctx, st, c, adapter)
}

func (s *ReturnService) save(ctx context.Context, st store.Store, c shared.Context, adapter *ReturnAdapter) error {
	returned := adapter.Returned
	total := decimal.Zero
	for _, item := range adapter.Items {
		total = total.Add(item.Quantity)
	}
	if !total.IsPositive() {
		return shared.NewDomainError(shared.CodeInvalidInput, "nothing to return")
	}
	var err error
	if returned.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierReturnedSale, returned.BranchID); err != nil {
		return fmt.Errorf("allocate returned sale identifier: %w", err)
	}
	if err := st.ReturnedSales().Save(ctx, returned); err != nil {
		return fmt.Errorf("save returned sale: %w", err)
	}
	kept := adapter.Items[:0]
	for _, item := range adapter.Items {
		if !item.Quantity.IsPositive() {
			continue
		}
		if err := st.ReturnedSaleItems().Save(ctx, item); err != nil {
			return fmt.Errorf("save returned sale item: %w", err)
		}
		kept = append(kept, item)
	}
	adapter.Items = kept
	return nil
}

func (s *ReturnService) apply(ctx context.Context, st store.Store, c shared.Context, adapter *ReturnAdapter) error {
	returned := adapter.Returned
	sale, err := st.Sales().FindByID(ctx, returned.SaleID)
	if err != nil {
		return fmt.Errorf("load returned sale origin: %w", err)
	}
	if !sale.CanReturn() {
		return shared.InvalidStatef("cannot return sale %d in status %s", sale.Identifier, sale.Status)
	}

	returnedValue := decimal.Zero
	for _, r := range adapter.Items {
		item, err := st.SaleItems().FindByID(ctx, r.SaleItemID)
		if err != nil {
			return fmt.Errorf("load sale item: %w", err)
		}
		if err := s.putBack(ctx, st, c, sale, item, r); err != nil {
			return err
		}
		returnedValue = returnedValue.Add(r.Total())
	}
	returnedValue = returnedValue.RoundBank(2)

	items, err := s.sales.Items(ctx, st, sale.ID)
	if err != nil {
		return err
	}
	ratio := returnedRatio(sale, items)
	if err := s.syncFiscalBook(ctx, st, c, sale, ratio); err != nil {
		return err
	}
	if sale.AllReturned(items) {
		if err := sale.Return(c.Now()); err != nil {
			return err
		}
		if err := st.Sales().Save(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
	}

	if err := s.settle(ctx, st, c, sale, adapter, returnedValue); err != nil {
		return err
	}
	if err := s.sales.commissions.Rebalance(ctx, st, sale, ratio); err != nil {
		return err
	}
	if err := st.ReturnedSales().Save(ctx, returned); err != nil {
		return fmt.Errorf("save returned sale: %w", err)
	}
	if err := publishPending(ctx, s.sales.publisher, sale); err != nil {
		return err
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Sale %d returned %s",
		sale.Identifier, financeapp.FormatMoney(c, returnedValue)); err != nil {
		return err
	}
	s.logger.Info("sale returned",
		zap.String("sale_id", sale.ID.String()),
		zap.Int64("returned_sale", returned.Identifier),
		zap.String("value", returnedValue.String()),
		zap.String("status", string(sale.Status)),
	)
	return nil
}

// putBack accounts r as returned on item and moves its stock back in
func (s *ReturnService) putBack(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, item *trade.SaleItem, r *trade.ReturnedSaleItem) error {
	if err := item.MarkReturned(r.Quantity); err != nil {
		return err
	}
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil {
		return err
	}
	if storable != nil && !item.IsPackage {
		if _, err := s.sales.ledger.IncreaseStock(ctx, st, c, inventoryapp.Movement{
			StorableID: storable.ID,
			BranchID:   sale.BranchID,
			BatchID:    item.BatchID,
			Quantity:   r.Quantity,
			Type:       inventory.HistoryTypeReturned,
			ObjectID:   r.ID,
		}); err != nil {
			return err
		}
		if err := item.MarkIncreased(decimal.Min(r.Quantity, item.QuantityDecreased)); err != nil {
			return err
		}
	}
	if err := st.SaleItems().Save(ctx, item); err != nil {
		return fmt.Errorf("save sale item: %w", err)
	}
	return nil
}

// returnedRatio is the returned share of the sale value, 1 once every item is back
func returnedRatio(sale *trade.Sale, items []trade.SaleItem) decimal.Decimal {
	if sale.AllReturned(items) {
		return decimal.NewFromInt(1)
	}
	subtotal := sale.Subtotal(items)
	if subtotal.IsZero() {
		return decimal.Zero
	}
	return sale.ReturnedTotal(items).Div(subtotal)
}

// syncFiscalBook brings the net fiscal amounts of sale to the original ones
// times (1 - ratio), reversing or re-booking the difference
func (s *ReturnService) syncFiscalBook(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, ratio decimal.Decimal) error {
	entries, err := st.FiscalEntries().FindAll(ctx, shared.Where("payment_group_id", sale.GroupID).OrderedBy("te_created", "asc"))
	if err != nil {
		return fmt.Errorf("load fiscal entries: %w", err)
	}
	byType := make(map[finance.FiscalEntryType][]finance.FiscalBookEntry)
	var types []finance.FiscalEntryType
	for _, e := range entries {
		if _, ok := byType[e.EntryType]; !ok {
			types = append(types, e.EntryType)
		}
		byType[e.EntryType] = append(byType[e.EntryType], e)
	}

	keep := decimal.NewFromInt(1).Sub(ratio)
	for _, t := range types {
		group := byType[t]
		original := firstRegular(group)
		if original == nil {
			continue
		}
		net := finance.NetFiscalTotals(group)
		excess := finance.FiscalTotals{
			Icms: net.Icms.Sub(original.IcmsValue.Mul(keep).RoundBank(2)),
			Iss:  net.Iss.Sub(original.IssValue.Mul(keep).RoundBank(2)),
			Ipi:  net.Ipi.Sub(original.IpiValue.Mul(keep).RoundBank(2)),
		}
		entry, err := balancingEntry(original, excess, c)
		if err != nil || entry == nil {
			return err
		}
		if err := st.FiscalEntries().Save(ctx, entry); err != nil {
			return fmt.Errorf("save fiscal entry: %w", err)
		}
	}
	return nil
}

func firstRegular(entries []finance.FiscalBookEntry) *finance.FiscalBookEntry {
	for i := range entries {
		if !entries[i].IsReversal {
			return &entries[i]
		}
	}
	return nil
}

// balancingEntry removes excess from the book: a reversal when positive, a
// regular entry when the book is short
func balancingEntry(original *finance.FiscalBookEntry, excess finance.FiscalTotals, c shared.Context) (*finance.FiscalBookEntry, error) {
	if excess.Icms.IsZero() && excess.Iss.IsZero() && excess.Ipi.IsZero() {
		return nil, nil
	}
	if excess.Icms.IsNegative() || excess.Iss.IsNegative() || excess.Ipi.IsNegative() {
		entry := *original
		entry.BaseEntity = shared.NewBaseEntity()
		entry.Date = c.Now()
		entry.IcmsValue = excess.Icms.Neg()
		entry.IssValue = excess.Iss.Neg()
		entry.IpiValue = excess.Ipi.Neg()
		return &entry, nil
	}
	rev, err := original.Reverse(decimal.NewFromInt(1), returnCfop, c.Now())
	if err != nil {
		return nil, err
	}
	rev.IcmsValue = excess.Icms
	rev.IssValue = excess.Iss
	rev.IpiValue = excess.Ipi
	return rev, nil
}

// settle refunds min(returned, refundable), where refundable is what the
// client paid minus refunds already owed, and writes off the rest of the
// returned value from the pending inpayments. A sale returned in full keeps no
// pending inpayment.
func (s *ReturnService) settle(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, adapter *ReturnAdapter, returnedValue decimal.Decimal) error {
	payments, err := s.sales.groups.GetPayments(ctx, st, sale.GroupID)
	if err != nil {
		return err
	}
	refund := decimal.Min(returnedValue, decimal.Max(payments.Refundable(), decimal.Zero))
	if refund.IsPositive() {
		p, err := s.refund(ctx, st, c, sale, adapter, refund)
		if err != nil {
			return err
		}
		adapter.Returned.RefundPaymentID = &p.ID
	}
	rest := returnedValue.Sub(refund)
	if sale.Status == trade.SaleStatusReturned {
		rest = decimal.NewFromInt(-1)
	}
	return s.writeOff(ctx, st, c, sale, adapter.Returned, rest)
}

func (s *ReturnService) refund(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, adapter *ReturnAdapter, value decimal.Decimal) (*finance.Payment, error) {
	methodName := finance.MethodMoney
	if s.refundAsCredit(c, adapter) {
		methodName = finance.MethodCredit
	}
	method, err := financeapp.FindMethod(ctx, st, methodName)
	if err != nil {
		return nil, err
	}
	p, err := s.sales.methods.CreatePayment(ctx, st, c, method, financeapp.PaymentRequest{
		Type:        finance.PaymentTypeOut,
		GroupID:     sale.GroupID,
		BranchID:    sale.BranchID,
		Value:       value,
		Description: fmt.Sprintf("Refund of returned sale %d", adapter.Returned.Identifier),
	})
	if err != nil {
		return nil, err
	}
	if err := s.sales.payments.SetPending(ctx, st, c, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ReturnService) refundAsCredit(c shared.Context, adapter *ReturnAdapter) bool {
	if c.Params == nil || adapter.Returned.ClientID == nil {
		return false
	}
	switch c.Params.String(param.ReturnPolicyOnSale) {
	case RefundPolicyCredit:
		return true
	case RefundPolicyClientDecides:
		return adapter.Credit
	}
	return false
}

// writeOff cancels pending inpayments, latest due first, until amount is
// covered. The last one touched only takes a discount for the rest. A
// negative amount cancels every pending inpayment. Each change is recorded
// against returned.
func (s *ReturnService) writeOff(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, returned *trade.ReturnedSale, amount decimal.Decimal) error {
	all := amount.IsNegative()
	if amount.IsZero() {
		return nil
	}
	pending, err := s.sales.groups.GetPendingPayments(ctx, st, sale.GroupID)
	if err != nil {
		return err
	}
	inpayments := pending.OfType(finance.PaymentTypeIn)
	sort.SliceStable(inpayments, func(i, j int) bool { return inpayments[i].DueDate.After(inpayments[j].DueDate) })
	for i := range inpayments {
		if !all && !amount.IsPositive() {
			break
		}
		p := &inpayments[i]
		open := p.Value.Sub(p.Discount)
		if all || open.LessThanOrEqual(amount) {
			if err := s.sales.payments.Cancel(ctx, st, c, p, "sale returned"); err != nil {
				return err
			}
			if err := st.ReturnedSaleWriteOffs().Save(ctx, trade.NewCancelWriteOff(returned, p.ID)); err != nil {
				return fmt.Errorf("save write-off: %w", err)
			}
			amount = amount.Sub(open)
			continue
		}
		if err := p.SetDiscount(p.Discount.Add(amount)); err != nil {
			return err
		}
		if err := st.Payments().Save(ctx, p); err != nil {
			return fmt.Errorf("save payment: %w", err)
		}
		if err := st.ReturnedSaleWriteOffs().Save(ctx, trade.NewDiscountWriteOff(returned, p.ID, amount)); err != nil {
			return fmt.Errorf("save write-off: %w", err)
		}
		amount = decimal.Zero
	}
	return nil
}

// restoreWriteOffs reverts what returned wrote off. A cancelled inpayment is
// reissued as a new pending one, since cancelled payments stay cancelled, and
// the write-offs of other returns follow it. A discount comes off the payment
// while it is pending; once paid, the missing amount is billed again.
func (s *ReturnService) restoreWriteOffs(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, returned *trade.ReturnedSale) error {
	rows, err := st.ReturnedSaleWriteOffs().FindAll(ctx, shared.Where("returned_sale_id", returned.ID))
	if err != nil {
		return fmt.Errorf("load write-offs: %w", err)
	}
	for _, row := range rows {
		p, err := st.Payments().FindByID(ctx, row.PaymentID)
		if err != nil {
			return fmt.Errorf("load written off payment: %w", err)
		}
		switch {
		case row.Cancelled:
			reissued, err := s.reissue(ctx, st, c, sale, p, p.Value, p.Discount, p.DueDate)
			if err != nil {
				return err
			}
			if err := s.followReissue(ctx, st, p.ID, reissued.ID); err != nil {
				return err
			}
		case p.IsPending():
			if err := p.SetDiscount(p.Discount.Sub(row.Discount)); err != nil {
				return err
			}
			if err := st.Payments().Save(ctx, p); err != nil {
				return fmt.Errorf("save payment: %w", err)
			}
		case p.IsPaid():
			if _, err := s.reissue(ctx, st, c, sale, p, row.Discount, decimal.Zero, c.Today()); err != nil {
				return err
			}
		default:
			s.logger.Warn("written off payment is no longer open",
				zap.String("payment_id", p.ID.String()),
				zap.String("status", string(p.Status)),
			)
		}
		if err := st.ReturnedSaleWriteOffs().Delete(ctx, row.ID); err != nil {
			return fmt.Errorf("delete write-off: %w", err)
		}
	}
	return nil
}

// reissue creates a pending inpayment of value with the method of p
func (s *ReturnService) reissue(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, p *finance.Payment, value, discount decimal.Decimal, due time.Time) (*finance.Payment, error) {
	method, err := st.PaymentMethods().FindByID(ctx, p.MethodID)
	if err != nil {
		return nil, fmt.Errorf("load payment method: %w", err)
	}
	reissued, err := s.sales.methods.CreatePayment(ctx, st, c, method, financeapp.PaymentRequest{
		Type:        finance.PaymentTypeIn,
		GroupID:     sale.GroupID,
		BranchID:    sale.BranchID,
		Value:       value,
		DueDate:     &due,
		Description: p.Description,
	})
	if err != nil {
		return nil, err
	}
	if err := reissued.SetDiscount(discount); err != nil {
		return nil, err
	}
	if err := s.sales.payments.SetPending(ctx, st, c, reissued); err != nil {
		return nil, err
	}
	return reissued, nil
}

// followReissue points the write-offs of other returns at the reissued payment
func (s *ReturnService) followReissue(ctx context.Context, st store.Store, from, to uuid.UUID) error {
	rows, err := st.ReturnedSaleWriteOffs().FindAll(ctx, shared.Where("payment_id", from))
	if err != nil {
		return fmt.Errorf("load write-offs: %w", err)
	}
	for i := range rows {
		if rows[i].Cancelled {
			continue
		}
		rows[i].PaymentID = to
		if err := st.ReturnedSaleWriteOffs().Save(ctx, &rows[i]); err != nil {
			return fmt.Errorf("save write-off: %w", err)
		}
	}
	return nil
}

// Trade uses the refund of a return to pay part of newSale: the refund is
// paid and the same value enters the new sale group as a paid trade payment
func (s *ReturnService) Trade(ctx context.Context, st store.Store, c shared.Context, returned *trade.ReturnedSale, newSale *trade.Sale) (*finance.Payment, error) {
	if newSale == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "a trade needs the new sale")
	}
	if returned.RefundPaymentID == nil {
		return nil, shared.InvalidStatef("returned sale %d has nothing to trade", returned.Identifier)
	}
	refund, err := st.Payments().FindByID(ctx, *returned.RefundPaymentID)
	if err != nil {
		return nil, fmt.Errorf("load refund payment: %w", err)
	}
	if !refund.IsPending() {
		return nil, shared.InvalidStatef("refund of returned sale %d is %s", returned.Identifier, refund.Status)
	}
	if err := s.sales.payments.Pay(ctx, st, c, refund, financeapp.PayOptions{}); err != nil {
		return nil, err
	}

	method, err := financeapp.FindMethod(ctx, st, finance.MethodTrade)
	if err != nil {
		return nil, err
	}
	credit, err := s.sales.methods.CreatePayment(ctx, st, c, method, financeapp.PaymentRequest{
		Type:        finance.PaymentTypeIn,
		GroupID:     newSale.GroupID,
		BranchID:    newSale.BranchID,
		Value:       refund.Value,
		Description: fmt.Sprintf("Traded from returned sale %d", returned.Identifier),
	})
	if err != nil {
		return nil, err
	}
	if err := s.sales.payments.SetPending(ctx, st, c, credit); err != nil {
		return nil, err
	}
	if err := s.sales.payments.Pay(ctx, st, c, credit, financeapp.PayOptions{}); err != nil {
		return nil, err
	}

	returned.NewSaleID = &newSale.ID
	if err := st.ReturnedSales().Save(ctx, returned); err != nil {
		return nil, fmt.Errorf("save returned sale: %w", err)
	}
	return credit, nil
}

// Undo cancels a confirmed return. The returned goods leave stock again,
// which fails when they are no longer there. A refund already paid out, or
// traded, cannot be taken back.
func (s *ReturnService) Undo(ctx context.Context, st store.Store, c shared.Context, returned *trade.ReturnedSale, reason string) error {
	var refund *finance.Payment
	if returned.RefundPaymentID != nil {
		p, err := st.Payments().FindByID(ctx, *returned.RefundPaymentID)
		if err != nil {
			return fmt.Errorf("load refund payment: %w", err)
		}
		if p.IsPaid() {
			return shared.InvalidStatef("refund of returned sale %d was already paid", returned.Identifier)
		}
		refund = p
	}
	if err := returned.Undo(reason, c.Now()); err != nil {
		return err
	}
	sale, err := st.Sales().FindByID(ctx, returned.SaleID)
	if err != nil {
		return fmt.Errorf("load returned sale origin: %w", err)
	}
	rows, err := st.ReturnedSaleItems().FindAll(ctx, shared.Where("returned_sale_id", returned.ID))
	if err != nil {
		return fmt.Errorf("load returned sale items: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		item, err := st.SaleItems().FindByID(ctx, r.SaleItemID)
		if err != nil {
			return fmt.Errorf("load sale item: %w", err)
		}
		if err := item.UnmarkReturned(r.Quantity); err != nil {
			return err
		}
		storable, err := storableOf(ctx, st, item.SellableID)
		if err != nil {
			return err
		}
		if storable != nil && !item.IsPackage {
			if _, err := s.sales.ledger.DecreaseStock(ctx, st, c, inventoryapp.Movement{
				StorableID: storable.ID,
				BranchID:   sale.BranchID,
				BatchID:    item.BatchID,
				Quantity:   r.Quantity,
				Type:       inventory.HistoryTypeReturnedSaleUndo,
				ObjectID:   r.ID,
			}); err != nil {
				return err
			}
			if err := item.MarkDecreased(decimal.Min(r.Quantity, item.PendingDecrease())); err != nil {
				return err
			}
		}
		if err := st.SaleItems().Save(ctx, item); err != nil {
			return fmt.Errorf("save sale item: %w", err)
		}
	}

	if sale.Status == trade.SaleStatusReturned {
		if err := sale.SetNotReturned(); err != nil {
			return err
		}
		if err := st.Sales().Save(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
	}
	items, err := s.sales.Items(ctx, st, sale.ID)
	if err != nil {
		return err
	}
	ratio := returnedRatio(sale, items)
	if err := s.syncFiscalBook(ctx, st, c, sale, ratio); err != nil {
		return err
	}

	if refund != nil && (refund.IsPending() || refund.IsPreview()) {
		if err := s.sales.payments.Cancel(ctx, st, c, refund, "return undone"); err != nil {
			return err
		}
	}
	if err := s.restoreWriteOffs(ctx, st, c, sale, returned); err != nil {
		return err
	}
	if err := s.sales.commissions.Rebalance(ctx, st, sale, ratio); err != nil {
		return err
	}
	if err := st.ReturnedSales().Save(ctx, returned); err != nil {
		return fmt.Errorf("save returned sale: %w", err)
	}
	if err := publishPending(ctx, s.sales.publisher, sale); err != nil {
		return err
	}
	return financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Return %d of sale %d undone: %s",
		returned.Identifier, sale.Identifier, reason)
}
