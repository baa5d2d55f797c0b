package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeCartTotalsSingleLine(t *testing.T) {
	items := []CartItem{
		{BookID: 1, Quantity: 2, Price: 299, OriginalPrice: 299},
	}

	totals := ComputeCartTotals(items, 0, 0)

	assert.Equal(t, 598.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.ItemSavings)
	assert.Equal(t, 598.0, totals.Total)
	assert.Equal(t, 2, totals.ItemCount)
}

func TestComputeCartTotalsItemSavings(t *testing.T) {
	items := []CartItem{
		{BookID: 1, Quantity: 2, Price: 80, OriginalPrice: 100},
		{BookID: 2, Quantity: 1, Price: 50, OriginalPrice: 50},
	}

	totals := ComputeCartTotals(items, 0, 10)

	// 2x80 + 1x50 = 210, savings 2x20 = 40
	assert.Equal(t, 210.0, totals.Subtotal)
	assert.Equal(t, 40.0, totals.ItemSavings)
	assert.Equal(t, 10.0, totals.ShippingCost)
	assert.Equal(t, 180.0, totals.Total)
	assert.Equal(t, 3, totals.ItemCount)
}

func TestComputeCartTotalsCouponDiscount(t *testing.T) {
	items := []CartItem{
		{BookID: 1, Quantity: 1, Price: 500, OriginalPrice: 500},
	}

	totals := ComputeCartTotals(items, 50, 25)

	assert.Equal(t, 500.0, totals.Subtotal)
	assert.Equal(t, 50.0, totals.CouponDiscount)
	assert.Equal(t, 475.0, totals.Total)
}

func TestComputeCartTotalsNegativeTotalNotClamped(t *testing.T) {
	items := []CartItem{
		{BookID: 1, Quantity: 1, Price: 30, OriginalPrice: 30},
	}

	// An oversized fixed discount drives the total below zero and the
	// computation reports it as-is.
	totals := ComputeCartTotals(items, 100, 0)

	assert.Equal(t, -70.0, totals.Total)
}

func TestComputeCartTotalsEmptyCart(t *testing.T) {
	totals := ComputeCartTotals(nil, 0, 0)

	assert.Equal(t, 0.0, totals.Subtotal)
	assert.Equal(t, 0.0, totals.Total)
	assert.Equal(t, 0, totals.ItemCount)
}

func TestComputeCartTotalsIgnoresInflatedPrice(t *testing.T) {
	// OriginalPrice below the selling price never counts as savings.
	items := []CartItem{
		{BookID: 1, Quantity: 1, Price: 120, OriginalPrice: 100},
	}

	totals := ComputeCartTotals(items, 0, 0)

	assert.Equal(t, 0.0, totals.ItemSavings)
	assert.Equal(t, 120.0, totals.Total)
}
