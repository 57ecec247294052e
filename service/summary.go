package service

import (
	"github.com/shopspring/decimal"

	models "storefront/model"
)

var taxRate = decimal.RequireFromString("0.18")

type CartSummary struct {
	Items    int    `json:"items"`
	Units    int    `json:"units"`
	Subtotal string `json:"subtotal"`
	Shipping string `json:"shipping"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

func lineTotal(e models.CartEntry) decimal.Decimal {
	return decimal.NewFromFloat(e.Price).Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// LineTotal formats price times quantity with two decimals.
func LineTotal(e models.CartEntry) string {
	return lineTotal(e).StringFixed(2)
}

// Summarize prices the cart at the snapshotted prices. Shipping is free and
// tax is a flat 18%.
func Summarize(entries []models.CartEntry) CartSummary {
	subtotal := decimal.Zero
	units := 0
	for _, e := range entries {
		subtotal = subtotal.Add(lineTotal(e))
		units += e.Quantity
	}
	tax := subtotal.Mul(taxRate).Round(2)
	return CartSummary{
		Items:    len(entries),
		Units:    units,
		Subtotal: subtotal.StringFixed(2),
		Shipping: "Free",
		Tax:      tax.StringFixed(2),
		Total:    subtotal.Add(tax).StringFixed(2),
	}
}
