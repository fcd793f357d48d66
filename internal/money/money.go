package money

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a single cart or order line may hold.
const MaxQuantity = 20

// Places is the number of decimal places every amount is rendered with.
const Places = 2

// Totals is the subtotal/tax/total triple shared by carts and orders.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// TaxPolicy computes the tax owed on a subtotal.
type TaxPolicy func(subtotal decimal.Decimal) decimal.Decimal

// NoTax is the current policy: nothing is charged on top of the subtotal.
func NoTax(decimal.Decimal) decimal.Decimal { return decimal.Zero }

// Parse coerces a stored or user supplied amount into a decimal.
// Empty or malformed input coerces to zero.
func Parse(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// LineTotal is unitPrice × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Compute sums the line totals and applies the tax policy. A nil policy means NoTax.
func Compute(lines []decimal.Decimal, tax TaxPolicy) Totals {
	if tax == nil {
		tax = NoTax
	}
	subtotal := decimal.Sum(decimal.Zero, lines...)
	t := tax(subtotal)
	return Totals{
		Subtotal: subtotal,
		Tax:      t,
		Total:    subtotal.Add(t),
	}
}

// JSON renders an amount as a JSON number fixed to two places.
func JSON(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(Places))
}

// TotalsJSON is the wire shape of Totals.
type TotalsJSON struct {
	Subtotal json.Number `json:"subtotal"`
	Tax      json.Number `json:"tax"`
	Total    json.Number `json:"total"`
}

// JSON converts the totals to their wire shape.
func (t Totals) JSON() TotalsJSON {
	return TotalsJSON{
		Subtotal: JSON(t.Subtotal),
		Tax:      JSON(t.Tax),
		Total:    JSON(t.Total),
	}
}
