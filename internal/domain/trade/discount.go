package trade

import (
	"github.com/erp/retail/internal/domain/shared"
	"github.com/erp/retail/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// DiscountLine is one priced line taking part in a discount redistribution
type DiscountLine struct {
	Base     decimal.Decimal
	Quantity decimal.Decimal
	// Package parents are priced through their children and are skipped
	IsPackage bool
	Set       func(price decimal.Decimal)
}

// RedistributeDiscount reprices lines so the total equals the base total minus
// percentage. Prices are quantized to places digits and never drop below one
// epsilon; the rounding residual goes to the last non-package line priced
// above epsilon. It returns the resulting total.
func RedistributeDiscount(lines []DiscountLine, percentage decimal.Decimal, places int32) (decimal.Decimal, error) {
	if percentage.IsNegative() || percentage.GreaterThan(valueobject.Hundred) {
		return decimal.Zero, shared.OutOfRangef("discount percentage must be within [0, 100]: %s", percentage)
	}
	eps := valueobject.Epsilon(places)
	factor := valueobject.Hundred.Sub(percentage).Div(valueobject.Hundred)

	baseTotal := decimal.Zero
	for _, l := range lines {
		if !l.IsPackage {
			baseTotal = baseTotal.Add(l.Base.Mul(l.Quantity))
		}
	}
	target := baseTotal.Mul(factor).RoundBank(places)

	prices := make([]decimal.Decimal, len(lines))
	total := decimal.Zero
	last := -1
	for i, l := range lines {
		if l.IsPackage {
			continue
		}
		p := l.Base.Mul(factor).RoundBank(places)
		if p.LessThan(eps) {
			p = eps
		}
		prices[i] = p
		total = total.Add(p.Mul(l.Quantity))
		if p.GreaterThan(eps) && l.Quantity.IsPositive() {
			last = i
		}
	}

	if residual := target.Sub(total); !residual.IsZero() && last >= 0 {
		l := lines[last]
		adjusted := prices[last].Add(residual.Div(l.Quantity)).RoundBank(places)
		if adjusted.LessThan(eps) {
			adjusted = eps
		}
		total = total.Sub(prices[last].Mul(l.Quantity)).Add(adjusted.Mul(l.Quantity))
		prices[last] = adjusted
	}

	for i, l := range lines {
		if !l.IsPackage && l.Set != nil {
			l.Set(prices[i])
		}
	}
	return total, nil
}
