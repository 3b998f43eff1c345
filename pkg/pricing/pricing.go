// Package pricing owns the grand-total arithmetic shared by the cart view,
// the order payload and the payment-order amount.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// DefaultShippingFee and DefaultHandlingFee are the fixed charges added to every order.
	DefaultShippingFee = decimal.NewFromInt(50)
	DefaultHandlingFee = decimal.NewFromInt(20)
)

// Line is one priced cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the breakdown shown to the buyer and sent to the payment provider.
type Totals struct {
	Items    decimal.Decimal `json:"items"`
	Shipping decimal.Decimal `json:"shipping"`
	Handling decimal.Decimal `json:"handling"`
	Grand    decimal.Decimal `json:"grand"`
}

// Calculator applies the fixed charges to an items total.
type Calculator struct {
	shipping decimal.Decimal
	handling decimal.Decimal
}

// NewCalculator returns a Calculator with the supplied fixed charges.
func NewCalculator(shipping, handling decimal.Decimal) Calculator {
	return Calculator{shipping: shipping, handling: handling}
}

// DefaultCalculator uses shipping 50 and handling 20.
func DefaultCalculator() Calculator {
	return NewCalculator(DefaultShippingFee, DefaultHandlingFee)
}

// LineSubtotal is unit price times quantity.
func LineSubtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// SumLines adds the subtotals of every line.
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(LineSubtotal(line.UnitPrice, line.Quantity))
	}
	return total
}

// FromItemsTotal derives the full breakdown from an items total.
func (c Calculator) FromItemsTotal(items decimal.Decimal) Totals {
	return Totals{
		Items:    items,
		Shipping: c.shipping,
		Handling: c.handling,
		Grand:    items.Add(c.shipping).Add(c.handling),
	}
}

// Compute prefers the server aggregate when present and falls back to the
// sum of the lines.
func (c Calculator) Compute(lines []Line, serverItemsTotal *decimal.Decimal) Totals {
	if serverItemsTotal != nil {
		return c.FromItemsTotal(*serverItemsTotal)
	}
	return c.FromItemsTotal(SumLines(lines))
}

// ToMinorUnits converts an amount into the smallest currency unit (paise for
// INR), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", amount)
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}
