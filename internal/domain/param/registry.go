// Package param holds the business parameter registry.
//
// Every parameter is declared once with a name, a type and a default. A
// Snapshot freezes the registry defaults plus configured overrides and is
// what lifecycle operations read through shared.Context.
package param

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/erp/retail/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Type is the value type of a parameter
type Type string

const (
	TypeBool    Type = "bool"
	TypeInt     Type = "int"
	TypeDecimal Type = "decimal"
	TypeString  Type = "string"
)

// Parameter names
const (
	AllowCancelConfirmedSales       = "ALLOW_CANCEL_CONFIRMED_SALES"
	SalePayCommissionWhenConfirmed  = "SALE_PAY_COMMISSION_WHEN_CONFIRMED"
	TillToleranceForClosing         = "TILL_TOLERANCE_FOR_CLOSING"
	RequireOpenTillForOutMoney      = "REQUIRE_OPEN_TILL_FOR_OUT_MONEY"
	SynchronizedMode                = shared.SynchronizedModeParam
	DefaultPaymentCurrencyPrecision = "DEFAULT_PAYMENT_CURRENCY_PRECISION"
	CostPrecisionDigits             = "COST_PRECISION_DIGITS"
	DefaultICMSRate                 = "DEFAULT_ICMS_RATE"
	ReturnPolicyOnSale              = "RETURN_POLICY_ON_SALE"
	AllowOutdatedOperations         = "ALLOW_OUTDATED_OPERATIONS"
	DefaultCurrency                 = "DEFAULT_CURRENCY"
)

// Definition describes one parameter
type Definition struct {
	Name        string
	Type        Type
	Default     string
	Description string
}

// Registry maps parameter names to their definitions
type Registry struct {
	defs map[string]Definition
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// DefaultRegistry returns the registry with every parameter the core reads
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Definition{AllowCancelConfirmedSales, TypeBool, "false", "Allow cancelling sales after confirmation"})
	r.MustRegister(Definition{SalePayCommissionWhenConfirmed, TypeBool, "false", "Create commissions when the sale is confirmed instead of when each payment is paid"})
	r.MustRegister(Definition{TillToleranceForClosing, TypeInt, "0", "Hours after midnight an open till of a previous day may still be used"})
	r.MustRegister(Definition{RequireOpenTillForOutMoney, TypeBool, "true", "Outgoing money payments require an open till"})
	r.MustRegister(Definition{SynchronizedMode, TypeBool, "false", "Multi-site mode using temporary identifiers"})
	r.MustRegister(Definition{DefaultPaymentCurrencyPrecision, TypeInt, "2", "Digits of payment values"})
	r.MustRegister(Definition{CostPrecisionDigits, TypeInt, "2", "Digits of product costs (up to 8)"})
	r.MustRegister(Definition{DefaultICMSRate, TypeDecimal, "18", "ICMS rate used when a sellable has no tax constant"})
	r.MustRegister(Definition{ReturnPolicyOnSale, TypeString, "client_decides", "What to do with the money of a returned sale"})
	r.MustRegister(Definition{AllowOutdatedOperations, TypeBool, "false", "Allow operations on a till that needs closing"})
	r.MustRegister(Definition{DefaultCurrency, TypeString, "BRL", "ISO code used when formatting amounts"})
	return r
}

// Register adds a definition. The default must parse as the declared type.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "parameter name cannot be empty")
	}
	if _, exists := r.defs[def.Name]; exists {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("parameter %s already registered", def.Name))
	}
	if err := validate(def.Type, def.Default); err != nil {
		return shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("parameter %s: %v", def.Name, err))
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is Register for static declarations
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Lookup returns the definition of name
func (r *Registry) Lookup(name string) (Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns every registered name in lexical order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot freezes the registry with the given overrides. Unknown names and
// values that do not parse as the declared type are rejected.
func (r *Registry) Snapshot(overrides map[string]string) (*Snapshot, error) {
	values := make(map[string]string, len(r.defs))
	for name, def := range r.defs {
		values[name] = def.Default
	}
	for name, raw := range overrides {
		key := strings.ToUpper(name)
		def, ok := r.defs[key]
		if !ok {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown parameter %s", name))
		}
		if err := validate(def.Type, raw); err != nil {
			return nil, shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("parameter %s: %v", key, err))
		}
		values[key] = raw
	}
	return &Snapshot{registry: r, values: values}, nil
}

func validate(t Type, raw string) error {
	var err error
	switch t {
	case TypeBool:
		_, err = strconv.ParseBool(raw)
	case TypeInt:
		_, err = strconv.Atoi(raw)
	case TypeDecimal:
		_, err = decimal.NewFromString(raw)
	case TypeString:
	default:
		err = fmt.Errorf("unsupported type %q", t)
	}
	return err
}
