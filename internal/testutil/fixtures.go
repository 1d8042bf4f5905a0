package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/inventory"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Now is the fixed instant every fixture context reports
var Now = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC)

// D parses a decimal literal
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// NewTestUUID generates a deterministic UUID from seed
func NewTestUUID(seed string) uuid.UUID {
	namespace := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	return uuid.NewSHA1(namespace, []byte(seed))
}

// Fixture holds the branch, user and payment methods most scenarios need
type Fixture struct {
	Store   *TestStore
	Ctx     shared.Context
	Params  *param.Snapshot
	Branch  *partner.Branch
	Methods map[finance.MethodName]*finance.PaymentMethod
}

// Goods is a stocked product with its sellable and storable
type Goods struct {
	Sellable *catalog.Sellable
	Product  *catalog.Product
	Storable *catalog.Storable
}

// NewFixture seeds a branch, a user and every payment method
func NewFixture(t *testing.T, ts *TestStore) *Fixture {
	t.Helper()

	f := &Fixture{
		Store:   ts,
		Params:  param.Defaults(),
		Methods: make(map[finance.MethodName]*finance.PaymentMethod),
	}
	ts.Run(t, func(ctx context.Context, st store.Store) error {
		person, err := partner.NewPerson("Main Branch")
		if err != nil {
			return err
		}
		if err := st.Persons().Save(ctx, person); err != nil {
			return err
		}
		f.Branch = partner.NewBranch(person.ID, "MB")
		if err := st.Branches().Save(ctx, f.Branch); err != nil {
			return err
		}
		for _, name := range finance.MethodNames() {
			method, err := finance.NewPaymentMethod(name)
			if err != nil {
				return err
			}
			if err := st.PaymentMethods().Save(ctx, method); err != nil {
				return err
			}
			f.Methods[name] = method
		}
		return nil
	})
	f.Ctx = shared.Context{
		BranchID:  f.Branch.ID,
		UserID:    NewTestUUID("test-user"),
		StationID: NewTestUUID("test-station"),
		Params:    f.Params,
		Clock:     func() time.Time { return Now },
	}
	return f
}

// SetParam overrides a business parameter for the rest of the test
func (f *Fixture) SetParam(name string, value any) {
	f.Params = f.Params.With(name, value)
	f.Ctx.Params = f.Params
}

// At moves the fixture clock
func (f *Fixture) At(now time.Time) {
	f.Ctx.Clock = func() time.Time { return now }
}

// Method returns the seeded method
func (f *Fixture) Method(name finance.MethodName) *finance.PaymentMethod {
	return f.Methods[name]
}

// Product creates a stocked product priced at price with reference cost cost
func (f *Fixture) Product(t *testing.T, code, price, cost string, isBatch bool) *Goods {
	t.Helper()

	g := &Goods{}
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		sellable, err := catalog.NewSellable(code, "Product "+code, D(price))
		if err != nil {
			return err
		}
		if err := sellable.SetCost(D(cost)); err != nil {
			return err
		}
		g.Sellable = sellable
		g.Product = catalog.NewProduct(sellable)
		g.Storable = catalog.NewStorable(g.Product, isBatch)
		if err := st.Sellables().Save(ctx, g.Sellable); err != nil {
			return err
		}
		if err := st.Products().Save(ctx, g.Product); err != nil {
			return err
		}
		return st.Storables().Save(ctx, g.Storable)
	})
	return g
}

// Package creates a package product made of components, each given as
// (goods, quantity, price)
func (f *Fixture) Package(t *testing.T, code, price string, components ...Component) *Goods {
	t.Helper()

	g := &Goods{}
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		sellable, err := catalog.NewSellable(code, "Package "+code, D(price))
		if err != nil {
			return err
		}
		g.Sellable = sellable
		g.Product = catalog.NewProduct(sellable)
		g.Product.IsPackage = true
		g.Product.ManageStock = false
		if err := st.Sellables().Save(ctx, sellable); err != nil {
			return err
		}
		if err := st.Products().Save(ctx, g.Product); err != nil {
			return err
		}
		for _, c := range components {
			pc, err := catalog.NewProductComponent(g.Product.ID, c.Goods.Product.ID, D(c.Quantity), D(c.Price))
			if err != nil {
				return err
			}
			if err := st.Components().Save(ctx, pc); err != nil {
				return err
			}
		}
		return nil
	})
	return g
}

// Component describes one part of a package fixture
type Component struct {
	Goods    *Goods
	Quantity string
	Price    string
}

// Service creates a service sellable
func (f *Fixture) Service(t *testing.T, code, price string) *catalog.Sellable {
	t.Helper()

	var sellable *catalog.Sellable
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		var err error
		sellable, err = catalog.NewSellable(code, "Service "+code, D(price))
		if err != nil {
			return err
		}
		service := catalog.NewService(sellable)
		if err := st.Sellables().Save(ctx, sellable); err != nil {
			return err
		}
		return st.Services().Save(ctx, service)
	})
	return sellable
}

// Batch creates a lot of a batch controlled storable
func (f *Fixture) Batch(t *testing.T, g *Goods, number string) *catalog.StorableBatch {
	t.Helper()

	batch, err := catalog.NewStorableBatch(g.Storable, number)
	require.NoError(t, err)
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		return st.Batches().Save(ctx, batch)
	})
	return batch
}

// Stock seeds an initial balance, writing the matching history row
func (f *Fixture) Stock(t *testing.T, g *Goods, qty, cost string, batch *catalog.StorableBatch) {
	t.Helper()

	var batchID *uuid.UUID
	if batch != nil {
		batchID = &batch.ID
	}
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		item := inventory.NewProductStockItem(g.Storable.ID, f.Branch.ID, batchID)
		unitCost := D(cost)
		if err := item.Increase(D(qty), &unitCost, 2); err != nil {
			return err
		}
		if err := st.StockItems().Save(ctx, item); err != nil {
			return err
		}
		entry := inventory.NewStockTransactionHistory(item, D(qty), inventory.HistoryTypeInitial, f.Ctx.UserID, Now).
			WithUnitCost(&unitCost)
		return st.StockHistory().Append(ctx, entry)
	})
}

// Client creates a person with an active client facet
func (f *Fixture) Client(t *testing.T, name string) *partner.Client {
	t.Helper()

	var client *partner.Client
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		person, err := savePerson(ctx, st, name)
		if err != nil {
			return err
		}
		client = partner.NewClient(person.ID)
		return st.Clients().Save(ctx, client)
	})
	return client
}

// Supplier creates a person with a supplier facet
func (f *Fixture) Supplier(t *testing.T, name string) *partner.Supplier {
	t.Helper()

	var supplier *partner.Supplier
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		person, err := savePerson(ctx, st, name)
		if err != nil {
			return err
		}
		supplier = partner.NewSupplier(person.ID)
		return st.Suppliers().Save(ctx, supplier)
	})
	return supplier
}

// SalesPerson creates a person with a salesperson facet
func (f *Fixture) SalesPerson(t *testing.T, name string) *partner.SalesPerson {
	t.Helper()

	var sp *partner.SalesPerson
	f.Store.Run(t, func(ctx context.Context, st store.Store) error {
		person, err := savePerson(ctx, st, name)
		if err != nil {
			return err
		}
		sp = partner.NewSalesPerson(person.ID)
		return st.SalesPersons().Save(ctx, sp)
	})
	return sp
}

func savePerson(ctx context.Context, st store.Store, name string) (*partner.Person, error) {
	person, err := partner.NewPerson(name)
	if err != nil {
		return nil, err
	}
	return person, st.Persons().Save(ctx, person)
}

// AssertDecimal compares decimals by value, ignoring the exponent
func AssertDecimal(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	require.Truef(t, D(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}
