package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/retail/internal/application/store"
	"github.com/erp/retail/internal/domain/finance"
	"github.com/erp/retail/internal/domain/param"
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Default accounts money is booked against when the caller names none
const (
	AccountImbalance = "Imbalance"
	AccountTills     = "Tills"
	AccountBanks     = "Banks"
)

// FindOrCreateAccount returns the account described as description, creating it
func FindOrCreateAccount(ctx context.Context, st store.Store, description string, accountType finance.AccountType) (*finance.Account, error) {
	account, err := st.Accounts().FindOne(ctx, shared.Where("description", description))
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	account = finance.NewAccount(description, accountType)
	if err := st.Accounts().Save(ctx, account); err != nil {
		return nil, fmt.Errorf("create account %s: %w", description, err)
	}
	return account, nil
}

// LogEvent appends a row to the business event log
func LogEvent(ctx context.Context, st store.Store, c shared.Context, eventType finance.EventType, format string, args ...any) error {
	e := finance.NewEvent(eventType, fmt.Sprintf(format, args...), c.Now())
	if err := st.Events().Save(ctx, e); err != nil {
		return fmt.Errorf("append event log: %w", err)
	}
	return nil
}

// FormatMoney renders amount in the configured currency
func FormatMoney(c shared.Context, amount decimal.Decimal) string {
	code := "BRL"
	if c.Params != nil {
		code = c.Params.String(param.DefaultCurrency)
	}
	return valueobject.Format(amount, code, language.BrazilianPortuguese)
}

func currencyPlaces(c shared.Context) int32 {
	if c.Params == nil {
		return valueobject.MoneyPrecision
	}
	return int32(c.Params.Int(param.DefaultPaymentCurrencyPrecision))
}

func loadMethod(ctx context.Context, st store.Store, p *finance.Payment) (*finance.PaymentMethod, error) {
	method, err := st.PaymentMethods().FindByID(ctx, p.MethodID)
	if err != nil {
		return nil, fmt.Errorf("load payment method of payment %d: %w", p.Identifier, err)
	}
	return method, nil
}

// FindMethod returns the method registered under name
func FindMethod(ctx context.Context, st store.Store, name finance.MethodName) (*finance.PaymentMethod, error) {
	method, err := st.PaymentMethods().FindOne(ctx, shared.Where("method_name", string(name)))
	if err != nil {
		return nil, fmt.Errorf("find payment method %s: %w", name, err)
	}
	return method, nil
}
