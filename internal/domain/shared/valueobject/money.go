package valueobject

import (
	"errors"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Precision settings for stored fixed-point values
const (
	// MoneyPrecision is the number of fractional digits of prices and payments
	MoneyPrecision int32 = 2
	// MaxCostPrecision bounds the configurable precision of costs
	MaxCostPrecision int32 = 8
	// QuantityPrecision is used for units that allow fractions
	QuantityPrecision int32 = 3
)

var (
	// Hundred is used for percentage conversions
	Hundred = decimal.NewFromInt(100)

	errNoInstallments = errors.New("at least one installment is required")
)

// Epsilon returns the smallest representable amount at the given precision
// (0.01 for two digits).
func Epsilon(places int32) decimal.Decimal {
	return decimal.New(1, -places)
}

// Quantize rounds d to places digits using banker's rounding
func Quantize(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

// QuantizeMoney rounds d to MoneyPrecision
func QuantizeMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(MoneyPrecision)
}

// QuantizeQuantity rounds a quantity. Units that do not allow fractions keep
// integers only.
func QuantizeQuantity(d decimal.Decimal, allowFraction bool) decimal.Decimal {
	if !allowFraction {
		return d.RoundBank(0)
	}
	return d.RoundBank(QuantityPrecision)
}

// ClampCostPrecision keeps a configured cost precision inside [MoneyPrecision, MaxCostPrecision]
func ClampCostPrecision(places int) int32 {
	p := int32(places)
	if p < MoneyPrecision {
		return MoneyPrecision
	}
	if p > MaxCostPrecision {
		return MaxCostPrecision
	}
	return p
}

// PercentageOf converts a percentage into an absolute amount of value
func PercentageOf(value, percentage decimal.Decimal) decimal.Decimal {
	return value.Mul(percentage).Div(Hundred)
}

// ToPercentage returns part as a percentage of total. A zero total yields zero.
func ToPercentage(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Mul(Hundred).Div(total)
}

// Split divides value into n installments quantized to places digits. The last
// installment absorbs the rounding residual so the parts sum to value exactly.
func Split(value decimal.Decimal, n int, places int32) ([]decimal.Decimal, error) {
	if n <= 0 {
		return nil, errNoInstallments
	}
	part := value.Div(decimal.NewFromInt(int64(n))).RoundBank(places)
	parts := make([]decimal.Decimal, n)
	total := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = part
		total = total.Add(part)
	}
	parts[n-1] = value.Sub(total)
	return parts, nil
}

// Sum adds every value
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Format renders an amount for human readable descriptions, for instance the
// Event rows describing order totals.
func Format(amount decimal.Decimal, currencyCode string, tag language.Tag) string {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		unit = currency.USD
	}
	p := message.NewPrinter(tag)
	return p.Sprint(currency.Symbol(unit.Amount(amount.RoundBank(MoneyPrecision).InexactFloat64())))
}
