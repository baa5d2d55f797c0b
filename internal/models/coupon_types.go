package models

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Discount types supported by the 'coupons' table.
const (
	DiscountPercentage  = "percentage"
	DiscountFixed       = "fixed"
	DiscountFreeShipped = "free_shipping"
)

// Rule errors returned by ValidateForOrder. The HTTP layer maps all of
// them to 400 with the error text as the message.
var (
	ErrCouponNotValid         = errors.New("coupon is not valid or has expired")
	ErrCouponMinimumNotMet    = errors.New("order amount does not meet the coupon minimum")
	ErrCouponPerUserLimit     = errors.New("you have already used this coupon the maximum number of times")
	ErrCouponUserNotEligible  = errors.New("this coupon is not available for your account")
	ErrCouponItemsNotEligible = errors.New("this coupon does not apply to the items in your order")
)

// Coupon is the model for the 'coupons' table.
// The JSON list columns (applicable users/categories, excluded books)
// are stored as JSON text and decoded on scan; empty means "no
// restriction".
type Coupon struct {
	ID                    int64     `json:"id" db:"id"`
	Code                  string    `json:"code" db:"code"` // unique, uppercase
	Description           string    `json:"description" db:"description"`
	DiscountType          string    `json:"discountType" db:"discount_type"`
	DiscountValue         float64   `json:"discountValue" db:"discount_value"`
	MinimumOrderAmount    float64   `json:"minimumOrderAmount" db:"minimum_order_amount"`
	MaximumDiscountAmount *float64  `json:"maximumDiscountAmount,omitempty" db:"maximum_discount_amount"`
	MaxUses               int       `json:"maxUses" db:"max_uses"` // 0 = unlimited
	UsedCount             int       `json:"usedCount" db:"used_count"`
	MaxUsesPerUser        int       `json:"maxUsesPerUser" db:"max_uses_per_user"` // 0 = unlimited
	ValidFrom             time.Time `json:"validFrom" db:"valid_from"`
	ValidUntil            time.Time `json:"validUntil" db:"valid_until"`
	IsActive              bool      `json:"isActive" db:"is_active"`
	IsPublic              bool      `json:"isPublic" db:"is_public"`

	ApplicableUsers      []int64  `json:"applicableUsers,omitempty" db:"applicable_users"`
	ApplicableCategories []string `json:"applicableCategories,omitempty" db:"applicable_categories"`
	ExcludedBooks        []int64  `json:"excludedBooks,omitempty" db:"excluded_books"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CouponUsage is one row of the append-only 'coupon_usages' audit
// trail. Per-user caps are enforced by counting these rows.
type CouponUsage struct {
	ID             int64     `json:"id" db:"id"`
	CouponID       int64     `json:"couponId" db:"coupon_id"`
	UserID         int64     `json:"userId" db:"user_id"`
	OrderID        int64     `json:"orderId" db:"order_id"`
	DiscountAmount float64   `json:"discountAmount" db:"discount_amount"`
	UsedAt         time.Time `json:"usedAt" db:"used_at"`
}

// CouponItem is the slice of an order line the validator needs to
// cross-check category and book eligibility.
type CouponItem struct {
	BookID   int64
	Category string
}

// DecodeIDList unmarshals a JSON array column into an int64 slice.
// NULL or empty text decodes to nil.
func DecodeIDList(raw []byte) ([]int64, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DecodeStringList unmarshals a JSON array column into a string slice.
func DecodeStringList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// IsCurrentlyValid reports whether the coupon can be redeemed at all:
// active, inside its validity window, and under its global usage cap.
func (cp *Coupon) IsCurrentlyValid(now time.Time) bool {
	if !cp.IsActive {
		return false
	}
	if now.Before(cp.ValidFrom) || now.After(cp.ValidUntil) {
		return false
	}
	if cp.MaxUses > 0 && cp.UsedCount >= cp.MaxUses {
		return false
	}
	return true
}

// ValidateForOrder runs the full rule chain for a specific user and
// order. userUsageCount is the number of 'coupon_usages' rows this
// user already has for this coupon; the caller is expected to have
// counted them under the same lock that will record the redemption.
func (cp *Coupon) ValidateForOrder(now time.Time, userID int64, orderAmount float64, items []CouponItem, userUsageCount int) error {
	// 1. Basic validity (active, window, global cap)
	if !cp.IsCurrentlyValid(now) {
		return ErrCouponNotValid
	}

	// 2. Minimum order amount
	if orderAmount < cp.MinimumOrderAmount {
		return ErrCouponMinimumNotMet
	}

	// 3. Per-user cap
	if cp.MaxUsesPerUser > 0 && userUsageCount >= cp.MaxUsesPerUser {
		return ErrCouponPerUserLimit
	}

	// 4. User allowlist
	if len(cp.ApplicableUsers) > 0 {
		allowed := false
		for _, id := range cp.ApplicableUsers {
			if id == userID {
				allowed = true
				break
			}
		}
		if !allowed {
			return ErrCouponUserNotEligible
		}
	}

	// 5. Item eligibility: every excluded book disqualifies its line,
	// and when a category list is set at least one line must match it.
	// An order left with no eligible line cannot use the coupon.
	if len(items) > 0 && (len(cp.ApplicableCategories) > 0 || len(cp.ExcludedBooks) > 0) {
		eligible := 0
		for _, item := range items {
			if cp.isBookExcluded(item.BookID) {
				continue
			}
			if len(cp.ApplicableCategories) > 0 && !cp.isCategoryApplicable(item.Category) {
				continue
			}
			eligible++
		}
		if eligible == 0 {
			return ErrCouponItemsNotEligible
		}
	}

	return nil
}

func (cp *Coupon) isBookExcluded(bookID int64) bool {
	for _, id := range cp.ExcludedBooks {
		if id == bookID {
			return true
		}
	}
	return false
}

func (cp *Coupon) isCategoryApplicable(category string) bool {
	for _, c := range cp.ApplicableCategories {
		if strings.EqualFold(c, category) {
			return true
		}
	}
	return false
}

// CalculateDiscount computes the money value of the coupon against an
// order amount. Free-shipping coupons return 0 here; the shipping fee
// is waived where shipping is computed. The result is capped at
// MaximumDiscountAmount when set and never exceeds the order amount.
func (cp *Coupon) CalculateDiscount(orderAmount float64) float64 {
	var discount float64

	switch cp.DiscountType {
	case DiscountPercentage:
		discount = orderAmount * cp.DiscountValue / 100
	case DiscountFixed:
		discount = cp.DiscountValue
	case DiscountFreeShipped:
		return 0
	default:
		return 0
	}

	if cp.MaximumDiscountAmount != nil && discount > *cp.MaximumDiscountAmount {
		discount = *cp.MaximumDiscountAmount
	}
	if discount > orderAmount {
		discount = orderAmount
	}
	return discount
}
