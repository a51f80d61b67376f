package order

import "github.com/shopspring/decimal"

// Pricing holds the checkout charges applied on top of the item subtotal.
type Pricing struct {
	DeliveryFee decimal.Decimal
	TaxRate     decimal.Decimal
}

type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	Total       decimal.Decimal
}

// NewLineItem computes the line total from the unit price.
func NewLineItem(li LineItem) LineItem {
	li.LineTotal = li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
	return li
}

// Compute sums the lines and rounds tax once on the subtotal, half away from zero.
func (p Pricing) Compute(lines []LineItem) Totals {
	subtotal := decimal.Zero
	for _, li := range lines {
		subtotal = subtotal.Add(li.LineTotal)
	}
	tax := subtotal.Mul(p.TaxRate).Round(0)
	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: p.DeliveryFee,
		Tax:         tax,
		Total:       subtotal.Add(p.DeliveryFee).Add(tax),
	}
}
