package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCoupon() *Coupon {
	now := time.Now()
	return &Coupon{
		Code:          "SAVE10",
		DiscountType:  DiscountPercentage,
		DiscountValue: 10,
		ValidFrom:     now.Add(-time.Hour),
		ValidUntil:    now.Add(time.Hour),
		IsActive:      true,
	}
}

func TestIsCurrentlyValid(t *testing.T) {
	now := time.Now()

	t.Run("active inside window", func(t *testing.T) {
		cp := activeCoupon()
		assert.True(t, cp.IsCurrentlyValid(now))
	})

	t.Run("inactive", func(t *testing.T) {
		cp := activeCoupon()
		cp.IsActive = false
		assert.False(t, cp.IsCurrentlyValid(now))
	})

	t.Run("before window", func(t *testing.T) {
		cp := activeCoupon()
		cp.ValidFrom = now.Add(time.Minute)
		assert.False(t, cp.IsCurrentlyValid(now))
	})

	t.Run("after window", func(t *testing.T) {
		cp := activeCoupon()
		cp.ValidUntil = now.Add(-time.Minute)
		assert.False(t, cp.IsCurrentlyValid(now))
	})

	t.Run("global cap reached", func(t *testing.T) {
		cp := activeCoupon()
		cp.MaxUses = 100
		cp.UsedCount = 100
		assert.False(t, cp.IsCurrentlyValid(now))
	})

	t.Run("zero max uses means unlimited", func(t *testing.T) {
		cp := activeCoupon()
		cp.MaxUses = 0
		cp.UsedCount = 100000
		assert.True(t, cp.IsCurrentlyValid(now))
	})
}

func TestValidateForOrderMinimum(t *testing.T) {
	now := time.Now()
	cp := activeCoupon()
	cp.MinimumOrderAmount = 500

	err := cp.ValidateForOrder(now, 1, 499.99, nil, 0)
	assert.ErrorIs(t, err, ErrCouponMinimumNotMet)

	err = cp.ValidateForOrder(now, 1, 500, nil, 0)
	assert.NoError(t, err)
}

func TestValidateForOrderPerUserCap(t *testing.T) {
	now := time.Now()
	cp := activeCoupon()
	cp.MaxUsesPerUser = 1

	// One prior usage exhausts a cap of one.
	err := cp.ValidateForOrder(now, 1, 100, nil, 1)
	assert.ErrorIs(t, err, ErrCouponPerUserLimit)

	// No prior usage passes.
	err = cp.ValidateForOrder(now, 1, 100, nil, 0)
	assert.NoError(t, err)
}

func TestValidateForOrderUserAllowlist(t *testing.T) {
	now := time.Now()
	cp := activeCoupon()
	cp.ApplicableUsers = []int64{7, 8}

	assert.ErrorIs(t, cp.ValidateForOrder(now, 9, 100, nil, 0), ErrCouponUserNotEligible)
	assert.NoError(t, cp.ValidateForOrder(now, 8, 100, nil, 0))
}

func TestValidateForOrderItemEligibility(t *testing.T) {
	now := time.Now()

	t.Run("excluded books disqualify their lines", func(t *testing.T) {
		cp := activeCoupon()
		cp.ExcludedBooks = []int64{42}

		items := []CouponItem{{BookID: 42, Category: "fiction"}}
		assert.ErrorIs(t, cp.ValidateForOrder(now, 1, 100, items, 0), ErrCouponItemsNotEligible)

		items = append(items, CouponItem{BookID: 43, Category: "fiction"})
		assert.NoError(t, cp.ValidateForOrder(now, 1, 100, items, 0))
	})

	t.Run("category list needs at least one match", func(t *testing.T) {
		cp := activeCoupon()
		cp.ApplicableCategories = []string{"fiction"}

		items := []CouponItem{{BookID: 1, Category: "history"}}
		assert.ErrorIs(t, cp.ValidateForOrder(now, 1, 100, items, 0), ErrCouponItemsNotEligible)

		items = []CouponItem{{BookID: 1, Category: "Fiction"}} // case-insensitive
		assert.NoError(t, cp.ValidateForOrder(now, 1, 100, items, 0))
	})

	t.Run("no restrictions means any items pass", func(t *testing.T) {
		cp := activeCoupon()
		items := []CouponItem{{BookID: 1, Category: "anything"}}
		assert.NoError(t, cp.ValidateForOrder(now, 1, 100, items, 0))
	})
}

func TestValidateForOrderExpiredBeatsEverything(t *testing.T) {
	now := time.Now()
	cp := activeCoupon()
	cp.ValidUntil = now.Add(-time.Minute)
	cp.MinimumOrderAmount = 500

	// Basic validity is checked first, so an expired coupon reports
	// ErrCouponNotValid even when the minimum is also unmet.
	assert.ErrorIs(t, cp.ValidateForOrder(now, 1, 1, nil, 0), ErrCouponNotValid)
}

func TestCalculateDiscountPercentage(t *testing.T) {
	cp := activeCoupon()
	assert.Equal(t, 100.0, cp.CalculateDiscount(1000))
}

func TestCalculateDiscountPercentageCapped(t *testing.T) {
	cp := activeCoupon()
	cap := 50.0
	cp.MaximumDiscountAmount = &cap

	// 10% of 1000 would be 100, the cap holds it at 50.
	assert.Equal(t, 50.0, cp.CalculateDiscount(1000))
}

func TestCalculateDiscountFixed(t *testing.T) {
	cp := activeCoupon()
	cp.DiscountType = DiscountFixed
	cp.DiscountValue = 75

	assert.Equal(t, 75.0, cp.CalculateDiscount(200))

	// A fixed discount never exceeds the order amount.
	assert.Equal(t, 30.0, cp.CalculateDiscount(30))
}

func TestCalculateDiscountFreeShipping(t *testing.T) {
	cp := activeCoupon()
	cp.DiscountType = DiscountFreeShipped
	cp.DiscountValue = 100

	// Free shipping has no merchandise value; the fee is waived where
	// shipping is computed.
	assert.Equal(t, 0.0, cp.CalculateDiscount(1000))
}

func TestCalculateDiscountUnknownType(t *testing.T) {
	cp := activeCoupon()
	cp.DiscountType = "bogo"
	assert.Equal(t, 0.0, cp.CalculateDiscount(1000))
}

func TestDecodeIDList(t *testing.T) {
	ids, err := DecodeIDList([]byte("[1, 2, 3]"))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	ids, err = DecodeIDList(nil)
	require.NoError(t, err)
	assert.Nil(t, ids)

	_, err = DecodeIDList([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeStringList(t *testing.T) {
	list, err := DecodeStringList([]byte(`["fiction", "history"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"fiction", "history"}, list)

	list, err = DecodeStringList([]byte(""))
	require.NoError(t, err)
	assert.Nil(t, list)
}
