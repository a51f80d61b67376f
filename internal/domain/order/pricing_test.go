package order

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPricing_Compute(t *testing.T) {
	p := Pricing{DeliveryFee: decimal.NewFromInt(50), TaxRate: decimal.RequireFromString("0.13")}

	lines := []LineItem{
		NewLineItem(LineItem{ProductID: "a", Quantity: 3, UnitPrice: decimal.NewFromInt(50)}),
	}
	got := p.Compute(lines)

	assert.Equal(t, "150", lines[0].LineTotal.String())
	assert.Equal(t, "150", got.Subtotal.String())
	assert.Equal(t, "20", got.Tax.String())
	assert.Equal(t, "220", got.Total.String())
	assert.True(t, got.Total.Equal(got.Subtotal.Add(got.DeliveryFee).Add(got.Tax)))
}

func TestPricing_TaxRoundsHalfAwayFromZero(t *testing.T) {
	p := Pricing{DeliveryFee: decimal.Zero, TaxRate: decimal.RequireFromString("0.13")}

	// 50 * 0.13 = 6.5
	got := p.Compute([]LineItem{NewLineItem(LineItem{Quantity: 1, UnitPrice: decimal.NewFromInt(50)})})
	assert.Equal(t, "7", got.Tax.String())

	// rounding happens once on the subtotal, not per line: 2 * (10*0.13=1.3) would give 2
	got = p.Compute([]LineItem{
		NewLineItem(LineItem{Quantity: 1, UnitPrice: decimal.NewFromInt(10)}),
		NewLineItem(LineItem{Quantity: 1, UnitPrice: decimal.NewFromInt(10)}),
	})
	assert.Equal(t, "3", got.Tax.String())
}

func TestNumberGenerator_Format(t *testing.T) {
	gen := NewNumberGenerator()
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)

	n := gen.Next(now)

	assert.Regexp(t, regexp.MustCompile(`^TS260309\d{6}$`), n)
}
