package trade

import (
	"context"
	"errors"
	"fmt"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleService handles the sale lifecycle. It observes the payments of the
// groups it owns so a sale flags itself paid once its last payment is paid.
type SaleService struct {
	groups      *financeapp.GroupService
	methods     *financeapp.MethodService
	payments    *financeapp.PaymentService
	ledger      *inventoryapp.StockLedger
	commissions *CommissionService
	returns     *ReturnService
	publisher   shared.EventPublisher
	logger      *zap.Logger
}

// NewSaleService creates a new SaleService and registers it as payment observer
func NewSaleService(
	groups *financeapp.GroupService,
	methods *financeapp.MethodService,
	payments *financeapp.PaymentService,
	ledger *inventoryapp.StockLedger,
	commissions *CommissionService,
	logger *zap.Logger,
) *SaleService {
	s := &SaleService{
		groups:      groups,
		methods:     methods,
		payments:    payments,
		ledger:      ledger,
		commissions: commissions,
		logger:      logger,
	}
	payments.AddObserver(s)
	return s
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *SaleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// CreateSale opens a sale on the context branch. The client, when given,
// pays the sale payment group.
func (s *SaleService) CreateSale(ctx context.Context, st store.Store, c shared.Context, clientID, salesPersonID *uuid.UUID) (*trade.Sale, error) {
	client, err := loadClient(ctx, st, clientID)
	if err != nil {
		return nil, err
	}
	var payer *uuid.UUID
	if client != nil {
		payer = &client.PersonID
	}
	group, err := s.groups.CreateGroup(ctx, st, payer, nil)
	if err != nil {
		return nil, err
	}

	sale := trade.NewSale(c.BranchID, group.ID, c.Now())
	sale.ClientID = clientID
	sale.SalesPersonID = salesPersonID
	if sale.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierSale, c.BranchID); err != nil {
		return nil, fmt.Errorf("allocate sale identifier: %w", err)
	}
	if err := group.AttachTo(finance.OwnerSale, sale.ID); err != nil {
		return nil, err
	}
	if err := st.PaymentGroups().Save(ctx, group); err != nil {
		return nil, fmt.Errorf("save payment group: %w", err)
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return nil, fmt.Errorf("save sale: %w", err)
	}
	return sale, nil
}

// Items returns the items of a sale in insertion order
func (s *SaleService) Items(ctx context.Context, st store.Store, saleID uuid.UUID) ([]trade.SaleItem, error) {
	items, err := st.SaleItems().FindAll(ctx, shared.Where("sale_id", saleID).OrderedBy("te_created", "asc"))
	if err != nil {
		return nil, fmt.Errorf("load sale items: %w", err)
	}
	return items, nil
}

// AddSellableRequest describes a sellable added to a sale
type AddSellableRequest struct {
	SellableID uuid.UUID
	Quantity   decimal.Decimal
	// Price defaults to the sellable price of the day
	Price   *decimal.Decimal
	BatchID *uuid.UUID
}

// AddSellable adds req to an open sale. A package adds a parent item priced
// through its children, one per component at the component price.
func (s *SaleService) AddSellable(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, req AddSellableRequest) ([]*trade.SaleItem, error) {
	if !sale.CanOrder() && sale.Status != trade.SaleStatusOrdered {
		return nil, shared.InvalidStatef("cannot add items to sale %d in status %s", sale.Identifier, sale.Status)
	}
	sellable, err := st.Sellables().FindByID(ctx, req.SellableID)
	if err != nil {
		return nil, fmt.Errorf("load sellable: %w", err)
	}
	price := sellable.Price(c.Today())
	if req.Price != nil {
		price = *req.Price
	}
	components, isPackage, err := packageComponents(ctx, st, req.SellableID)
	if err != nil {
		return nil, err
	}
	if isPackage {
		price = decimal.Zero
	}
	parent, err := trade.NewSaleItem(sale, sellable, req.Quantity, price, c.Today())
	if err != nil {
		return nil, err
	}
	parent.IsPackage = isPackage
	if req.BatchID != nil {
		storable, err := storableOf(ctx, st, req.SellableID)
		if err != nil {
			return nil, err
		}
		if storable == nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, "only stocked products take a batch")
		}
		if err := storable.ValidateBatch(req.BatchID); err != nil {
			return nil, err
		}
		parent.BatchID = req.BatchID
	}

	added := []*trade.SaleItem{parent}
	for i := range components {
		comp := &components[i]
		child, err := s.componentItem(ctx, st, c, sale, parent, comp.ComponentID, comp.ChildQuantity(req.Quantity), comp.Price)
		if err != nil {
			return nil, err
		}
		added = append(added, child)
	}
	for _, item := range added {
		if err := st.SaleItems().Save(ctx, item); err != nil {
			return nil, fmt.Errorf("save sale item: %w", err)
		}
	}
	return added, nil
}

func (s *SaleService) componentItem(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, parent *trade.SaleItem, componentID uuid.UUID, quantity, price decimal.Decimal) (*trade.SaleItem, error) {
	sellable, err := st.Sellables().FindByID(ctx, componentID)
	if err != nil {
		return nil, fmt.Errorf("load component sellable: %w", err)
	}
	child, err := trade.NewSaleItem(sale, sellable, quantity, price, c.Today())
	if err != nil {
		return nil, err
	}
	child.BasePrice = price
	child.ParentItemID = &parent.ID
	return child, nil
}

// ValidateComposition checks that every package child item holds
// parent.quantity x component.quantity units
func (s *SaleService) ValidateComposition(ctx context.Context, st store.Store, saleID uuid.UUID) error {
	items, err := s.Items(ctx, st, saleID)
	if err != nil {
		return err
	}
	lines := make([]compositionLine, len(items))
	for i, item := range items {
		lines[i] = compositionLine{ID: item.ID, SellableID: item.SellableID, ParentID: item.ParentItemID, Quantity: item.Quantity}
	}
	return validateComposition(ctx, st, lines)
}

// ApplyDiscount reprices the items from their base price so the subtotal
// drops by percentage. It returns the new subtotal.
func (s *SaleService) ApplyDiscount(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, percentage decimal.Decimal) (decimal.Decimal, error) {
	if sale.IsConfirmedOrPaid() {
		return decimal.Zero, shared.InvalidStatef("cannot discount sale %d in status %s", sale.Identifier, sale.Status)
	}
	items, err := s.Items(ctx, st, sale.ID)
	if err != nil {
		return decimal.Zero, err
	}
	lines := make([]trade.DiscountLine, len(items))
	for i := range items {
		item := &items[i]
		lines[i] = trade.DiscountLine{
			Base:      item.BasePrice,
			Quantity:  item.Quantity,
			IsPackage: item.IsPackage,
			Set:       func(price decimal.Decimal) { item.Price = price },
		}
	}
	total, err := trade.RedistributeDiscount(lines, percentage, pricePlaces(c))
	if err != nil {
		return decimal.Zero, err
	}
	for i := range items {
		if err := st.SaleItems().Save(ctx, &items[i]); err != nil {
			return decimal.Zero, fmt.Errorf("save sale item: %w", err)
		}
	}
	return total, nil
}

// Order moves the sale to ordered
func (s *SaleService) Order(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale) error {
	count, err := st.SaleItems().Count(ctx, shared.Where("sale_id", sale.ID))
	if err != nil {
		return fmt.Errorf("count sale items: %w", err)
	}
	client, err := loadClient(ctx, st, sale.ClientID)
	if err != nil {
		return err
	}
	if err := sale.Order(int(count), client != nil && client.IsActive()); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return publishPending(ctx, s.publisher, sale)
}

// SetQuote marks an initial sale as a quote
func (s *SaleService) SetQuote(ctx context.Context, st store.Store, sale *trade.Sale) error {
	if err := sale.SetQuote(); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return publishPending(ctx, s.publisher, sale)
}

// Confirm takes the goods out of stock, books the fiscal entry and makes the
// payments pending. Given a till, money payments are paid at once, which may
// flag the sale as paid.
func (s *SaleService) Confirm(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, till *finance.Till) error {
	if !sale.CanConfirm() {
		return shared.InvalidStatef("cannot confirm sale %d in status %s", sale.Identifier, sale.Status)
	}
	items, err := s.Items(ctx, st, sale.ID)
	if err != nil {
		return err
	}
	for i := range items {
		item := &items[i]
		if item.IsService || item.IsPackage {
			continue
		}
		if err := s.Sell(ctx, st, c, sale, item); err != nil {
			return err
		}
	}
	if err := s.bookFiscalEntries(ctx, st, c, sale, items); err != nil {
		return err
	}
	if err := s.setGroupParties(ctx, st, sale); err != nil {
		return err
	}
	if err := s.releaseToken(ctx, st, sale); err != nil {
		return err
	}

	if err := sale.Confirm(c.Now(), c.UserID); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	if err := publishPending(ctx, s.publisher, sale); err != nil {
		return err
	}

	if err := s.groups.Confirm(ctx, st, c, sale.GroupID); err != nil {
		return err
	}
	if commissionOnConfirm(c) {
		if _, err := s.commissions.CreateForSale(ctx, st, sale); err != nil {
			return err
		}
	}
	if till != nil {
		if _, err := s.groups.PayMoneyPayments(ctx, st, c, sale.GroupID, till); err != nil {
			return err
		}
	}
	if err := s.reload(ctx, st, sale); err != nil {
		return err
	}

	total, err := s.GetTotalSalePrice(ctx, st, sale)
	if err != nil {
		return err
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Sale %d, total value %s was confirmed",
		sale.Identifier, financeapp.FormatMoney(c, total)); err != nil {
		return err
	}
	s.logger.Info("sale confirmed",
		zap.String("sale_id", sale.ID.String()),
		zap.Int64("identifier", sale.Identifier),
		zap.String("total", total.String()),
		zap.Bool("paid", sale.Paid),
	)
	return nil
}

// reload refreshes sale from the store, payment observers may have saved it
func (s *SaleService) reload(ctx context.Context, st store.Store, sale *trade.Sale) error {
	fresh, err := st.Sales().FindByID(ctx, sale.ID)
	if err != nil {
		return fmt.Errorf("reload sale: %w", err)
	}
	*sale = *fresh
	return nil
}

func (s *SaleService) setGroupParties(ctx context.Context, st store.Store, sale *trade.Sale) error {
	client, err := loadClient(ctx, st, sale.ClientID)
	if err != nil || client == nil {
		return err
	}
	group, err := st.PaymentGroups().FindByID(ctx, sale.GroupID)
	if err != nil {
		return fmt.Errorf("load payment group: %w", err)
	}
	changed := false
	if group.PayerID == nil {
		group.PayerID = &client.PersonID
		changed = true
	}
	if group.RecipientID == nil {
		group.RecipientID = &client.PersonID
		changed = true
	}
	if !changed {
		return nil
	}
	return st.PaymentGroups().Save(ctx, group)
}

func (s *SaleService) releaseToken(ctx context.Context, st store.Store, sale *trade.Sale) error {
	if sale.SaleTokenID == nil {
		return nil
	}
	token, err := st.SaleTokens().FindByID(ctx, *sale.SaleTokenID)
	if err != nil {
		return fmt.Errorf("load sale token: %w", err)
	}
	token.Release()
	return st.SaleTokens().Save(ctx, token)
}

// AttachToken occupies token with sale until the sale is confirmed
func (s *SaleService) AttachToken(ctx context.Context, st store.Store, sale *trade.Sale, token *trade.SaleToken) error {
	if err := token.Occupy(sale.ID); err != nil {
		return err
	}
	if err := st.SaleTokens().Save(ctx, token); err != nil {
		return fmt.Errorf("save sale token: %w", err)
	}
	sale.SaleTokenID = &token.ID
	return st.Sales().Save(ctx, sale)
}

// bookFiscalEntries computes the ICMS of product items and the ISS of
// service items and appends the matching fiscal book entries
func (s *SaleService) bookFiscalEntries(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, items []trade.SaleItem) error {
	icms, ipi, iss := decimal.Zero, decimal.Zero, decimal.Zero
	var products, services bool
	for i := range items {
		item := &items[i]
		if item.IsPackage {
			continue
		}
		rate, err := s.taxRate(ctx, st, c, item)
		if err != nil {
			return err
		}
		if item.IsService {
			services = true
			iss = iss.Add(item.Total().Mul(rate).Div(valueobject.Hundred))
			continue
		}
		products = true
		item.ApplyIcms(rate)
		if err := st.SaleItems().Save(ctx, item); err != nil {
			return fmt.Errorf("save sale item: %w", err)
		}
		icms = icms.Add(item.IcmsValue)
		ipi = ipi.Add(item.IpiValue)
	}

	var drawee *uuid.UUID
	if client, err := loadClient(ctx, st, sale.ClientID); err != nil {
		return err
	} else if client != nil {
		drawee = &client.PersonID
	}
	var entries []*finance.FiscalBookEntry
	if products {
		entries = append(entries, finance.NewProductEntry(sale.BranchID, sale.GroupID, sale.Cfop, icms, ipi, c.Now()))
	}
	if services {
		entries = append(entries, finance.NewServiceEntry(sale.BranchID, sale.GroupID, sale.Cfop, iss.RoundBank(2), c.Now()))
	}
	for _, e := range entries {
		e.DraweeID = drawee
		if sale.InvoiceNumber != nil {
			e.InvoiceNumber = *sale.InvoiceNumber
		}
		if err := st.FiscalEntries().Save(ctx, e); err != nil {
			return fmt.Errorf("save fiscal entry: %w", err)
		}
	}
	return nil
}

// taxRate is the rate of the sellable tax constant. Products without one
// use the default ICMS rate, services without one pay no ISS.
func (s *SaleService) taxRate(ctx context.Context, st store.Store, c shared.Context, item *trade.SaleItem) (decimal.Decimal, error) {
	sellable, err := st.Sellables().FindByID(ctx, item.SellableID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load sellable: %w", err)
	}
	if sellable.TaxConstantID != nil {
		tax, err := st.TaxConstants().FindByID(ctx, *sellable.TaxConstantID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("load tax constant: %w", err)
		}
		return tax.Rate(), nil
	}
	if item.IsService || c.Params == nil {
		return decimal.Zero, nil
	}
	return c.Params.Decimal(param.DefaultICMSRate), nil
}

// pairedItem returns the work order item sharing stock with item, if any
func (s *SaleService) pairedItem(ctx context.Context, st store.Store, item *trade.SaleItem) (*trade.WorkOrderItem, error) {
	wo, err := st.WorkOrderItems().FindOne(ctx, shared.Where("sale_item_id", item.ID))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load paired work order item: %w", err)
	}
	return wo, nil
}

func (s *SaleService) saveDecreased(ctx context.Context, st store.Store, item *trade.SaleItem, wo *trade.WorkOrderItem) error {
	if err := st.SaleItems().Save(ctx, item); err != nil {
		return fmt.Errorf("save sale item: %w", err)
	}
	if wo == nil {
		return nil
	}
	wo.QuantityDecreased = item.QuantityDecreased
	if err := st.WorkOrderItems().Save(ctx, wo); err != nil {
		return fmt.Errorf("save work order item: %w", err)
	}
	return nil
}

// Sell tops the decreased quantity of item up to its quantity. Stock already
// taken by a paired work order item is not taken twice.
func (s *SaleService) Sell(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, item *trade.SaleItem) error {
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil || storable == nil {
		return err
	}
	wo, err := s.pairedItem(ctx, st, item)
	if err != nil {
		return err
	}
	done := trade.PairedDecreased(item, wo)
	pending := item.Quantity.Sub(done)
	if !pending.IsPositive() {
		if item.QuantityDecreased.LessThan(item.Quantity) {
			if err := item.MarkDecreased(item.PendingDecrease()); err != nil {
				return err
			}
			return s.saveDecreased(ctx, st, item, wo)
		}
		return nil
	}
	if _, err := s.ledger.DecreaseStock(ctx, st, c, inventoryapp.Movement{
		StorableID: storable.ID,
		BranchID:   sale.BranchID,
		BatchID:    item.BatchID,
		Quantity:   pending,
		Type:       inventory.HistoryTypeSold,
		ObjectID:   item.ID,
	}); err != nil {
		return err
	}
	if err := item.MarkDecreased(item.PendingDecrease()); err != nil {
		return err
	}
	return s.saveDecreased(ctx, st, item, wo)
}

// Reserve takes qty units of item out of stock before the sale is confirmed
func (s *SaleService) Reserve(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, item *trade.SaleItem, qty decimal.Decimal) error {
	if sale.IsConfirmedOrPaid() || sale.Status == trade.SaleStatusCancelled {
		return shared.InvalidStatef("cannot reserve items of sale %d in status %s", sale.Identifier, sale.Status)
	}
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil {
		return err
	}
	if storable == nil {
		return shared.InvalidStatef("item %s has no stock to reserve", item.ID)
	}
	if err := item.MarkDecreased(qty); err != nil {
		return err
	}
	if _, err := s.ledger.DecreaseStock(ctx, st, c, inventoryapp.Movement{
		StorableID: storable.ID,
		BranchID:   sale.BranchID,
		BatchID:    item.BatchID,
		Quantity:   qty,
		Type:       inventory.HistoryTypeSaleReserved,
		ObjectID:   item.ID,
	}); err != nil {
		return err
	}
	wo, err := s.pairedItem(ctx, st, item)
	if err != nil {
		return err
	}
	return s.saveDecreased(ctx, st, item, wo)
}

// ReturnToStock puts qty previously decreased units of item back into stock
func (s *SaleService) ReturnToStock(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, item *trade.SaleItem, qty decimal.Decimal) error {
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil {
		return err
	}
	if err := item.MarkIncreased(qty); err != nil {
		return err
	}
	if storable != nil && qty.IsPositive() {
		if _, err := s.ledger.IncreaseStock(ctx, st, c, inventoryapp.Movement{
			StorableID: storable.ID,
			BranchID:   sale.BranchID,
			BatchID:    item.BatchID,
			Quantity:   qty,
			Type:       inventory.HistoryTypeSaleReservedReturned,
			ObjectID:   item.ID,
		}); err != nil {
			return err
		}
	}
	wo, err := s.pairedItem(ctx, st, item)
	if err != nil {
		return err
	}
	return s.saveDecreased(ctx, st, item, wo)
}

// restock puts back everything item and its paired work order item took
func (s *SaleService) restock(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, item *trade.SaleItem) error {
	wo, err := s.pairedItem(ctx, st, item)
	if err != nil {
		return err
	}
	qty := trade.PairedDecreased(item, wo)
	if !qty.IsPositive() {
		return nil
	}
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil {
		return err
	}
	if storable != nil {
		if _, err := s.ledger.IncreaseStock(ctx, st, c, inventoryapp.Movement{
			StorableID: storable.ID,
			BranchID:   sale.BranchID,
			BatchID:    item.BatchID,
			Quantity:   qty,
			Type:       inventory.HistoryTypeCancelledSale,
			ObjectID:   item.ID,
		}); err != nil {
			return err
		}
	}
	item.QuantityDecreased = decimal.Zero
	return s.saveDecreased(ctx, st, item, wo)
}

// PaymentPaid creates the commission of the payment in on-pay mode and flags
// the sale paid once every payment is paid
func (s *SaleService) PaymentPaid(ctx context.Context, st store.Store, c shared.Context, payment *finance.Payment, group *finance.PaymentGroup) error {
	sale, err := s.ownerOf(ctx, st, group)
	if err != nil || sale == nil || !sale.IsConfirmedOrPaid() {
		return err
	}
	if !commissionOnConfirm(c) {
		if _, err := s.commissions.CreateForPayment(ctx, st, sale, payment); err != nil {
			return err
		}
	}
	if !sale.CanSetPaid() {
		return nil
	}
	payments, err := s.groups.GetPayments(ctx, st, sale.GroupID)
	if err != nil {
		return err
	}
	if !payments.InpaymentsPaid() {
		return nil
	}
	return s.markPaid(ctx, st, c, sale)
}

// PaymentUnpaid clears the paid flag and drops the on-pay commission
func (s *SaleService) PaymentUnpaid(ctx context.Context, st store.Store, c shared.Context, payment *finance.Payment, group *finance.PaymentGroup) error {
	sale, err := s.ownerOf(ctx, st, group)
	if err != nil || sale == nil || !sale.IsConfirmedOrPaid() {
		return err
	}
	if !commissionOnConfirm(c) {
		commission, err := st.Commissions().FindOne(ctx, shared.Where("payment_id", payment.ID))
		switch {
		case err == nil:
			if err := st.Commissions().Delete(ctx, commission.ID); err != nil {
				return fmt.Errorf("delete commission: %w", err)
			}
		case !errors.Is(err, shared.ErrNotFound):
			return fmt.Errorf("load commission: %w", err)
		}
	}
	if !sale.Paid {
		return nil
	}
	if err := sale.SetNotPaid(); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return publishPending(ctx, s.publisher, sale)
}

func (s *SaleService) ownerOf(ctx context.Context, st store.Store, group *finance.PaymentGroup) (*trade.Sale, error) {
	if !group.IsOwnedBy(finance.OwnerSale) {
		return nil, nil
	}
	sale, err := st.Sales().FindByID(ctx, *group.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("load sale of payment group: %w", err)
	}
	return sale, nil
}

// SetPaid flags a confirmed sale whose valid inpayments are all paid
func (s *SaleService) SetPaid(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale) error {
	payments, err := s.groups.GetPayments(ctx, st, sale.GroupID)
	if err != nil {
		return err
	}
	if !payments.InpaymentsPaid() {
		return shared.InvalidStatef("sale %d still has payments to be paid", sale.Identifier)
	}
	return s.markPaid(ctx, st, c, sale)
}

func (s *SaleService) markPaid(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale) error {
	if err := sale.SetPaid(c.Now()); err != nil {
		return err
	}
	if _, err := s.commissions.CreateForSale(ctx, st, sale); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Sale %d was paid", sale.Identifier); err != nil {
		return err
	}
	s.logger.Info("sale paid", zap.String("sale_id", sale.ID.String()), zap.Int64("identifier", sale.Identifier))
	return nil
}

// SetNotPaid clears the paid flag of a sale
func (s *SaleService) SetNotPaid(ctx context.Context, st store.Store, sale *trade.Sale) error {
	if err := sale.SetNotPaid(); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return publishPending(ctx, s.publisher, sale)
}

// CanCancel combines the status rules with the answer of SaleCanCancel
// subscribers, any of which may veto
func (s *SaleService) CanCancel(ctx context.Context, c shared.Context, sale *trade.Sale) (bool, error) {
	can := sale.CanCancel(allowCancelConfirmed(c))
	if s.publisher == nil {
		return can, nil
	}
	event := trade.NewSaleCanCancelEvent(sale, can)
	if err := s.publisher.Publish(ctx, event); err != nil {
		return false, err
	}
	return can && event.CanCancel, nil
}

// IsExternal asks SaleIsExternal subscribers whether sale was made outside the store
func (s *SaleService) IsExternal(ctx context.Context, sale *trade.Sale) (bool, error) {
	if s.publisher == nil {
		return false, nil
	}
	event := trade.NewSaleIsExternalEvent(sale)
	if err := s.publisher.Publish(ctx, event); err != nil {
		return false, err
	}
	return event.IsExternal, nil
}

// Cancel cancels the sale: its work order is cancelled, the goods go back to
// stock and the payments not yet paid are cancelled. When
// ALLOW_CANCEL_CONFIRMED_SALES is set, a confirmed sale also pays back what
// the client paid. Force skips the cancel policy, not the payback rule.
func (s *SaleService) Cancel(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, reason string, force bool) error {
	if !force {
		can, err := s.CanCancel(ctx, c, sale)
		if err != nil {
			return err
		}
		if !can {
			return shared.InvalidStatef("cannot cancel sale %d in status %s", sale.Identifier, sale.Status)
		}
	}
	wasConfirmed := sale.IsConfirmedOrPaid()
	paysBack := wasConfirmed && allowCancelConfirmed(c)

	orders, err := st.WorkOrders().FindAll(ctx, shared.Where("sale_id", sale.ID))
	if err != nil {
		return fmt.Errorf("load work orders: %w", err)
	}
	for i := range orders {
		if !orders[i].CanCancel() {
			continue
		}
		if err := orders[i].Cancel(reason, c.Now()); err != nil {
			return err
		}
		if err := st.WorkOrders().Save(ctx, &orders[i]); err != nil {
			return fmt.Errorf("save work order: %w", err)
		}
	}

	if err := sale.Cancel(c.Now(), reason, allowCancelConfirmed(c), force); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}

	items, err := s.Items(ctx, st, sale.ID)
	if err != nil {
		return err
	}
	for i := range items {
		if err := s.restock(ctx, st, c, sale, &items[i]); err != nil {
			return err
		}
	}

	if paysBack {
		paid, err := s.groups.GetTotalPaid(ctx, st, sale.GroupID)
		if err != nil {
			return err
		}
		if paid.IsPositive() {
			if _, err := s.payback(ctx, st, c, sale, paid); err != nil {
				return err
			}
		}
	}
	if err := s.groups.Cancel(ctx, st, c, sale.GroupID, reason); err != nil {
		return err
	}
	if err := publishPending(ctx, s.publisher, sale); err != nil {
		return err
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Sale %d was cancelled: %s", sale.Identifier, reason); err != nil {
		return err
	}
	s.logger.Info("sale cancelled",
		zap.String("sale_id", sale.ID.String()),
		zap.Bool("was_confirmed", wasConfirmed),
		zap.Bool("payback", paysBack),
	)
	return nil
}

// payback gives paid back to the client through a paid money outpayment
func (s *SaleService) payback(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale, paid decimal.Decimal) (*finance.Payment, error) {
	money, err := financeapp.FindMethod(ctx, st, finance.MethodMoney)
	if err != nil {
		return nil, err
	}
	p, err := s.methods.CreatePayment(ctx, st, c, money, financeapp.PaymentRequest{
		Type:        finance.PaymentTypeOut,
		GroupID:     sale.GroupID,
		BranchID:    sale.BranchID,
		Value:       paid,
		Description: fmt.Sprintf("Money returned for sale %d", sale.Identifier),
	})
	if err != nil {
		return nil, err
	}
	if err := s.payments.SetPending(ctx, st, c, p); err != nil {
		return nil, err
	}
	if err := s.payments.Pay(ctx, st, c, p, financeapp.PayOptions{}); err != nil {
		return nil, err
	}
	return p, nil
}

// Return applies a return built with ReturnService.CreateReturnAdapter
func (s *SaleService) Return(ctx context.Context, st store.Store, c shared.Context, adapter *ReturnAdapter) error {
	if s.returns == nil {
		return shared.InvalidStatef("returns are not configured")
	}
	return s.returns.Return(ctx, st, c, adapter)
}

// SetNotReturned brings a returned sale back to confirmed
func (s *SaleService) SetNotReturned(ctx context.Context, st store.Store, sale *trade.Sale) error {
	if err := sale.SetNotReturned(); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return publishPending(ctx, s.publisher, sale)
}

// Renegotiate marks a confirmed sale as renegotiated and cancels the payments
// not paid yet, the new terms live in another group
func (s *SaleService) Renegotiate(ctx context.Context, st store.Store, c shared.Context, sale *trade.Sale) error {
	if err := sale.Renegotiate(); err != nil {
		return err
	}
	if err := s.groups.Cancel(ctx, st, c, sale.GroupID, "renegotiated"); err != nil {
		return err
	}
	if err := st.Sales().Save(ctx, sale); err != nil {
		return fmt.Errorf("save sale: %w", err)
	}
	return publishPending(ctx, s.publisher, sale)
}

// GetSaleSubtotal sums the items
func (s *SaleService) GetSaleSubtotal(ctx context.Context, st store.Store, sale *trade.Sale) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, sale.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return sale.Subtotal(items), nil
}

// GetTotalSalePrice is the subtotal plus surcharge minus discount
func (s *SaleService) GetTotalSalePrice(ctx context.Context, st store.Store, sale *trade.Sale) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, sale.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return sale.Total(items), nil
}

// GetTotalPaid is what the client paid, refunds subtracted
func (s *SaleService) GetTotalPaid(ctx context.Context, st store.Store, sale *trade.Sale) (decimal.Decimal, error) {
	return s.groups.GetTotalPaid(ctx, st, sale.GroupID)
}

// GetReturnedTotal is the value of the returned quantities
func (s *SaleService) GetReturnedTotal(ctx context.Context, st store.Store, sale *trade.Sale) (decimal.Decimal, error) {
	items, err := s.Items(ctx, st, sale.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return sale.ReturnedTotal(items), nil
}
