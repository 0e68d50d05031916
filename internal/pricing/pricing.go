// Package pricing derives order and cart totals from line items. All amounts
// are USD cents.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// FreeShippingThreshold is the items total above which shipping is free.
	FreeShippingThreshold int64 = 10000
	// ShippingFee applies at or below FreeShippingThreshold.
	ShippingFee int64 = 1000
)

var taxRate = decimal.RequireFromString("0.15")

// Line is anything priced per unit.
type Line interface {
	UnitPrice() int64
	Quantity() int
}

// Totals is the price breakdown of a set of lines.
type Totals struct {
	ItemsPrice    int64 `json:"items_price"`
	ShippingPrice int64 `json:"shipping_price"`
	TaxPrice      int64 `json:"tax_price"`
	TotalPrice    int64 `json:"total_price"`
}

// ComputeTotals prices items. The result depends only on the lines, so it can
// be recomputed from a stored order at any time. No lines means all zeros.
func ComputeTotals[T Line](items []T) Totals {
	if len(items) == 0 {
		return Totals{}
	}

	var itemsPrice int64
	for _, it := range items {
		itemsPrice += it.UnitPrice() * int64(it.Quantity())
	}

	t := Totals{
		ItemsPrice:    itemsPrice,
		ShippingPrice: Shipping(itemsPrice),
		TaxPrice:      Tax(itemsPrice),
	}
	t.TotalPrice = t.ItemsPrice + t.ShippingPrice + t.TaxPrice
	return t
}

// Shipping returns the shipping charge for an items total.
func Shipping(itemsPrice int64) int64 {
	if itemsPrice > FreeShippingThreshold {
		return 0
	}
	return ShippingFee
}

// Tax is 15% of itemsPrice rounded half away from zero to the cent.
func Tax(itemsPrice int64) int64 {
	return decimal.NewFromInt(itemsPrice).Mul(taxRate).Round(0).IntPart()
}

// FormatAmount renders cents as a decimal string ("73.25").
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParseAmount parses a non-negative decimal amount with at most two
// fractional digits into cents. "73.25", "73.2" and "73" are accepted.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", s)
	}
	cents := d.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("parse amount %q: more than two decimal places", s)
	}
	return cents.IntPart(), nil
}
