package models

import "time"

// MaxItemQuantity is the upper bound for a single cart line.
const MaxItemQuantity = 100

// Cart defines the struct for the 'carts' table.
// At most one coupon can be applied to a cart at a time; the coupon
// fields are reset when the cart is cleared or the coupon removed.
type Cart struct {
	ID             int64     `json:"id" db:"id"`
	UserID         int64     `json:"userId" db:"user_id"`
	CouponCode     *string   `json:"couponCode,omitempty" db:"coupon_code"`
	CouponDiscount float64   `json:"couponDiscount" db:"coupon_discount"`
	CouponType     *string   `json:"couponType,omitempty" db:"coupon_type"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// CartItem defines the struct for the 'cart_items' table.
// Price, OriginalPrice and DiscountPercent are snapshots of the book
// at the time the line was last touched: adding more of the same book
// refreshes them to the book's current values.
type CartItem struct {
	ID              int64     `json:"id" db:"id"`
	CartID          int64     `json:"cartId" db:"cart_id"`
	BookID          int64     `json:"bookId" db:"book_id"`
	Quantity        int       `json:"quantity" db:"quantity"`
	Price           float64   `json:"price" db:"price"`
	OriginalPrice   float64   `json:"originalPrice" db:"original_price"`
	DiscountPercent float64   `json:"discountPercent" db:"discount_percent"`
	AddedAt         time.Time `json:"addedAt" db:"added_at"`
}

// CartTotals holds the derived (never stored) money fields of a cart.
type CartTotals struct {
	Subtotal       float64 `json:"subtotal"`
	ItemSavings    float64 `json:"itemSavings"`
	CouponDiscount float64 `json:"couponDiscount"`
	ShippingCost   float64 `json:"shippingCost"`
	Total          float64 `json:"total"`
	ItemCount      int     `json:"itemCount"`
}

// ComputeCartTotals derives the cart money fields from its items.
//
//	subtotal    = sum(price * qty)
//	itemSavings = sum((originalPrice - price) * qty) where originalPrice > price
//	total       = subtotal - itemSavings - couponDiscount + shippingCost
//
// Total is NOT clamped at zero: an oversized fixed coupon can drive it
// negative, which callers must cope with.
func ComputeCartTotals(items []CartItem, couponDiscount, shippingCost float64) CartTotals {
	t := CartTotals{
		CouponDiscount: couponDiscount,
		ShippingCost:   shippingCost,
	}

	for _, item := range items {
		t.Subtotal += item.Price * float64(item.Quantity)
		if item.OriginalPrice > item.Price {
			t.ItemSavings += (item.OriginalPrice - item.Price) * float64(item.Quantity)
		}
		t.ItemCount += item.Quantity
	}

	t.Total = t.Subtotal - t.ItemSavings - couponDiscount + shippingCost
	return t
}
