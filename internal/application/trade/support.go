// Package trade holds the purchase, receiving, quote, sale, return, loan and
// delivery services. Like the finance services they run inside the caller's
// store and never open one themselves.
package trade

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/catalog"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/partner"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// publishPending publishes and clears the events an aggregate collected
func publishPending(ctx context.Context, publisher shared.EventPublisher, src eventSource) error {
	events := src.GetDomainEvents()
	if len(events) == 0 {
		return nil
	}
	src.ClearDomainEvents()
	if publisher == nil {
		return nil
	}
	return publisher.Publish(ctx, events...)
}

// storableOf returns the storable of a sellable, nil for services, packages
// and products without stock control
func storableOf(ctx context.Context, st store.Store, sellableID uuid.UUID) (*catalog.Storable, error) {
	storable, err := st.Storables().FindByID(ctx, sellableID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load storable: %w", err)
	}
	return storable, nil
}

// packageComponents returns the components of sellable when it is a package
func packageComponents(ctx context.Context, st store.Store, sellableID uuid.UUID) ([]catalog.ProductComponent, bool, error) {
	product, err := st.Products().FindByID(ctx, sellableID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load product: %w", err)
	}
	if !product.IsPackage {
		return nil, false, nil
	}
	components, err := st.Components().FindAll(ctx, shared.Where("product_id", product.ID))
	if err != nil {
		return nil, false, fmt.Errorf("load package components: %w", err)
	}
	return components, true, nil
}

func personName(ctx context.Context, st store.Store, personID uuid.UUID) string {
	person, err := st.Persons().FindByID(ctx, personID)
	if err != nil {
		return ""
	}
	return person.Name
}

func branchPersonID(ctx context.Context, st store.Store, branchID uuid.UUID) (*uuid.UUID, error) {
	branch, err := st.Branches().FindByID(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("load branch: %w", err)
	}
	return &branch.PersonID, nil
}

func loadClient(ctx context.Context, st store.Store, clientID *uuid.UUID) (*partner.Client, error) {
	if clientID == nil {
		return nil, nil
	}
	client, err := st.Clients().FindByID(ctx, *clientID)
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	return client, nil
}

func pricePlaces(c shared.Context) int32 {
	if c.Params == nil {
		return valueobject.MoneyPrecision
	}
	return int32(c.Params.Int(param.DefaultPaymentCurrencyPrecision))
}

func allowCancelConfirmed(c shared.Context) bool {
	return c.Params != nil && c.Params.Bool(param.AllowCancelConfirmedSales)
}

func commissionOnConfirm(c shared.Context) bool {
	return c.Params != nil && c.Params.Bool(param.SalePayCommissionWhenConfirmed)
}
