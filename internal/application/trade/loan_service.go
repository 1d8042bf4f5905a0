package trade

import (
	"context"
	"fmt"

	financeapp "github.com/erp/retail/internal/application/finance"
	inventoryapp "github.com/erp/retail/internal/application/inventory"
	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/trade"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LoanLine is a sellable lent when opening a loan
type LoanLine struct {
	SellableID uuid.UUID
	Quantity   decimal.Decimal
	// Price defaults to the sellable price of the day
	Price   *decimal.Decimal
	BatchID *uuid.UUID
}

// LoanService lends goods and settles what comes back, what is sold and
// what is lost
type LoanService struct {
	sales     *SaleService
	ledger    *inventoryapp.StockLedger
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewLoanService creates a new LoanService
func NewLoanService(sales *SaleService, ledger *inventoryapp.StockLedger, logger *zap.Logger) *LoanService {
	return &LoanService{sales: sales, ledger: ledger, logger: logger}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *LoanService) SetEventPublisher(publisher shared.EventPublisher) {
	s.publisher = publisher
}

// Items returns the items of a loan
func (s *LoanService) Items(ctx context.Context, st store.Store, loanID uuid.UUID) ([]trade.LoanItem, error) {
	items, err := st.LoanItems().FindAll(ctx, shared.Where("loan_id", loanID).OrderedBy("te_created", "asc"))
	if err != nil {
		return nil, fmt.Errorf("load loan items: %w", err)
	}
	return items, nil
}

// Open lends lines to a client, taking them out of stock
func (s *LoanService) Open(ctx context.Context, st store.Store, c shared.Context, clientID *uuid.UUID, lines []LoanLine) (*trade.Loan, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "a loan needs at least one item")
	}
	loan := trade.NewLoan(c.BranchID, c.UserID, clientID, c.Now())
	var err error
	if loan.Identifier, err = shared.AllocateIdentifier(ctx, st.Identifiers(), c, shared.IdentifierLoan, c.BranchID); err != nil {
		return nil, fmt.Errorf("allocate loan identifier: %w", err)
	}
	if err := st.Loans().Save(ctx, loan); err != nil {
		return nil, fmt.Errorf("save loan: %w", err)
	}

	for _, line := range lines {
		sellable, err := st.Sellables().FindByID(ctx, line.SellableID)
		if err != nil {
			return nil, fmt.Errorf("load sellable: %w", err)
		}
		price := sellable.Price(c.Today())
		if line.Price != nil {
			price = *line.Price
		}
		item, err := trade.NewLoanItem(loan.ID, sellable.ID, line.Quantity, price)
		if err != nil {
			return nil, err
		}
		item.BasePrice = sellable.Price(c.Today())
		item.BatchID = line.BatchID
		if err := s.move(ctx, st, c, loan, item, item.Quantity, inventory.HistoryTypeLoaned); err != nil {
			return nil, err
		}
		if err := st.LoanItems().Save(ctx, item); err != nil {
			return nil, fmt.Errorf("save loan item: %w", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, trade.NewNewLoanWizardFinishEvent(loan)); err != nil {
			return nil, err
		}
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Loan %d opened with %d items", loan.Identifier, len(lines)); err != nil {
		return nil, err
	}
	return loan, nil
}

// move takes qty of item out of stock for loaned, puts it back otherwise.
// Sellables without stock control are skipped.
func (s *LoanService) move(ctx context.Context, st store.Store, c shared.Context, loan *trade.Loan, item *trade.LoanItem, qty decimal.Decimal, kind inventory.HistoryType) error {
	if !qty.IsPositive() {
		return nil
	}
	storable, err := storableOf(ctx, st, item.SellableID)
	if err != nil || storable == nil {
		return err
	}
	m := inventoryapp.Movement{
		StorableID: storable.ID,
		BranchID:   loan.BranchID,
		BatchID:    item.BatchID,
		Quantity:   qty,
		Type:       kind,
		ObjectID:   item.ID,
	}
	if kind == inventory.HistoryTypeLoaned {
		_, err = s.ledger.DecreaseStock(ctx, st, c, m)
	} else {
		_, err = s.ledger.IncreaseStock(ctx, st, c, m)
	}
	return err
}

// Close settles an open loan. Every item needs a split: the returned part
// goes back to stock, the sold part becomes an ordered sale and the lost
// part stays out of stock. The sale is returned when anything was sold.
func (s *LoanService) Close(ctx context.Context, st store.Store, c shared.Context, loan *trade.Loan, splits []trade.LoanSplit) (*trade.Sale, error) {
	if loan.Status != trade.LoanStatusOpen {
		return nil, shared.InvalidStatef("cannot close loan %d in status %s", loan.Identifier, loan.Status)
	}
	items, err := s.Items(ctx, st, loan.ID)
	if err != nil {
		return nil, err
	}
	byItem := make(map[uuid.UUID]trade.LoanSplit, len(splits))
	for _, split := range splits {
		byItem[split.ItemID] = split
	}

	var sold []*trade.LoanItem
	lost := decimal.Zero
	for i := range items {
		item := &items[i]
		split, ok := byItem[item.ID]
		if !ok {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("loan item %s has no split", item.ID))
		}
		if err := item.ApplySplit(split); err != nil {
			return nil, err
		}
		if err := s.move(ctx, st, c, loan, item, item.ReturnQuantity, inventory.HistoryTypeReturnedLoan); err != nil {
			return nil, err
		}
		if err := st.LoanItems().Save(ctx, item); err != nil {
			return nil, fmt.Errorf("save loan item: %w", err)
		}
		if item.SaleQuantity.IsPositive() {
			sold = append(sold, item)
		}
		lost = lost.Add(item.LostQuantity)
	}

	var sale *trade.Sale
	if len(sold) > 0 {
		if sale, err = s.sellLoaned(ctx, st, c, loan, sold); err != nil {
			return nil, err
		}
		loan.SaleID = &sale.ID
	}
	if err := loan.Close(c.Now()); err != nil {
		return nil, err
	}
	if err := st.Loans().Save(ctx, loan); err != nil {
		return nil, fmt.Errorf("save loan: %w", err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, trade.NewCloseLoanWizardFinishEvent(loan, loan.SaleID)); err != nil {
			return nil, err
		}
	}
	if err := financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Loan %d closed", loan.Identifier); err != nil {
		return nil, err
	}
	s.logger.Info("loan closed",
		zap.String("loan_id", loan.ID.String()),
		zap.Int("sold_items", len(sold)),
		zap.String("lost", lost.String()),
	)
	return sale, nil
}

// sellLoaned creates an ordered sale for the sold parts. The goods left
// stock with the loan, so the items start fully decreased.
func (s *LoanService) sellLoaned(ctx context.Context, st store.Store, c shared.Context, loan *trade.Loan, sold []*trade.LoanItem) (*trade.Sale, error) {
	sale, err := s.sales.CreateSale(ctx, st, c, loan.ClientID, nil)
	if err != nil {
		return nil, err
	}
	sale.Notes = fmt.Sprintf("Sold from loan %d", loan.Identifier)
	for _, loaned := range sold {
		sellable, err := st.Sellables().FindByID(ctx, loaned.SellableID)
		if err != nil {
			return nil, fmt.Errorf("load sellable: %w", err)
		}
		item, err := trade.NewSaleItem(sale, sellable, loaned.SaleQuantity, loaned.Price, c.Today())
		if err != nil {
			return nil, err
		}
		item.BatchID = loaned.BatchID
		if storable, err := storableOf(ctx, st, loaned.SellableID); err != nil {
			return nil, err
		} else if storable != nil {
			item.QuantityDecreased = item.Quantity
		}
		if err := st.SaleItems().Save(ctx, item); err != nil {
			return nil, fmt.Errorf("save sale item: %w", err)
		}
	}
	if err := s.sales.Order(ctx, st, c, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

// Cancel cancels an open loan putting every lent unit back into stock
func (s *LoanService) Cancel(ctx context.Context, st store.Store, c shared.Context, loan *trade.Loan) error {
	if err := loan.Cancel(c.Now()); err != nil {
		return err
	}
	items, err := s.Items(ctx, st, loan.ID)
	if err != nil {
		return err
	}
	for i := range items {
		if err := s.move(ctx, st, c, loan, &items[i], items[i].Quantity, inventory.HistoryTypeReturnedLoan); err != nil {
			return err
		}
	}
	if err := st.Loans().Save(ctx, loan); err != nil {
		return fmt.Errorf("save loan: %w", err)
	}
	return financeapp.LogEvent(ctx, st, c, finance.EventTypeSale, "Loan %d cancelled", loan.Identifier)
}
