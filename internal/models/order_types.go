package models

import (
	"fmt"
	"math/rand"
	"time"
)

// Order-level lifecycle. This axis is deliberately independent of the
// per-item states below: admins move the order through shipping while
// individual lines get fulfilled or refunded on their own.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
)

// Per-item fulfillment state.
const (
	ItemStatusPending   = "pending"
	ItemStatusFulfilled = "fulfilled"
	ItemStatusRefunded  = "refunded"
	ItemStatusCancelled = "cancelled"
)

// Per-item payment state, tracked independently of fulfillment.
// "requested" marks an advisory extra-payment request.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusPaid      = "paid"
	PaymentStatusRefunded  = "refunded"
	PaymentStatusRequested = "requested"
)

// ValidOrderStatus reports whether s is a known order-level status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
		OrderStatusReturned:
		return true
	}
	return false
}

// Order is the model for the 'orders' table. The money fields and the
// item snapshots are immutable after creation; status, tracking and
// the per-item sub-states are the mutable part.
type Order struct {
	ID              int64          `json:"id" db:"id"`
	OrderNumber     string         `json:"orderNumber" db:"order_number"`
	UserID          int64          `json:"userId" db:"user_id"`
	Status          string         `json:"status" db:"status"`
	Subtotal        float64        `json:"subtotal" db:"subtotal"`
	CouponCode      *string        `json:"couponCode,omitempty" db:"coupon_code"`
	CouponDiscount  float64        `json:"couponDiscount" db:"coupon_discount"`
	ShippingCost    float64        `json:"shippingCost" db:"shipping_cost"`
	Total           float64        `json:"total" db:"total"`
	ShippingAddress string         `json:"shippingAddress" db:"shipping_address"` // JSON blob
	PaymentMethod   string         `json:"paymentMethod" db:"payment_method"`
	Tracking        *string        `json:"tracking,omitempty" db:"tracking"`
	AffiliateCode   *string        `json:"affiliateCode,omitempty" db:"affiliate_code"`
	CreatedAt       time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time      `json:"updatedAt" db:"updated_at"`
}

// OrderItem is the model for the 'order_items' table. Title, author,
// cover and prices are point-in-time snapshots of the book, so the
// order stays stable when the catalog changes later.
type OrderItem struct {
	ID                    int64     `json:"id" db:"id"`
	OrderID               int64     `json:"orderId" db:"order_id"`
	BookID                int64     `json:"bookId" db:"book_id"`
	Title                 string    `json:"title" db:"title"`
	Author                string    `json:"author" db:"author"`
	CoverImage            string    `json:"coverImage" db:"cover_image"`
	Price                 float64   `json:"price" db:"price"`
	OriginalPrice         float64   `json:"originalPrice" db:"original_price"`
	Quantity              int       `json:"quantity" db:"quantity"`
	Status                string    `json:"status" db:"status"`
	PaymentStatus         string    `json:"paymentStatus" db:"payment_status"`
	RefundAmount          *float64  `json:"refundAmount,omitempty" db:"refund_amount"`
	ExtraPaymentRequested *float64  `json:"extraPaymentRequested,omitempty" db:"extra_payment_requested"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time `json:"updatedAt" db:"updated_at"`
}

// LineTotal is the snapshot price times quantity.
func (i *OrderItem) LineTotal() float64 {
	return i.Price * float64(i.Quantity)
}

// DefaultRefundAmount is the refund applied when an admin refunds an
// item without specifying an amount: the full line total
// (unit price x quantity). The system this replaces refunded only the
// unit price regardless of quantity; that was judged a defect and the
// default here is the line total.
func DefaultRefundAmount(item *OrderItem) float64 {
	return item.LineTotal()
}

// NewOrderNumber generates an order number in the established
// "ORD" + epoch-millis + 3-digit-random format. The format alone does
// not guarantee uniqueness under concurrency; the 'order_number'
// column carries a UNIQUE index and callers retry on conflict.
func NewOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%d%03d", now.UnixMilli(), rand.Intn(1000))
}

// ItemStateSummary is the computed roll-up of an order's per-item
// states, exposed to consumers alongside the independent order-level
// status.
type ItemStateSummary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Fulfilled int `json:"fulfilled"`
	Refunded  int `json:"refunded"`
	Cancelled int `json:"cancelled"`
}

// AllFulfilled reports whether every line reached a terminal fulfilled
// state.
func (s ItemStateSummary) AllFulfilled() bool {
	return s.Total > 0 && s.Fulfilled == s.Total
}

// SummarizeItems rolls item states up into counts.
func SummarizeItems(items []OrderItem) ItemStateSummary {
	var s ItemStateSummary
	s.Total = len(items)
	for _, item := range items {
		switch item.Status {
		case ItemStatusFulfilled:
			s.Fulfilled++
		case ItemStatusRefunded:
			s.Refunded++
		case ItemStatusCancelled:
			s.Cancelled++
		default:
			s.Pending++
		}
	}
	return s
}

// AffiliateReferral is the model for the 'affiliate_referrals' table.
// order_id carries a UNIQUE index so a retried accrual for the same
// order is a no-op instead of a double payout.
type AffiliateReferral struct {
	ID              int64     `json:"id" db:"id"`
	OrderID         int64     `json:"orderId" db:"order_id"`
	AffiliateUserID int64     `json:"affiliateUserId" db:"affiliate_user_id"`
	Commission      float64   `json:"commission" db:"commission"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
