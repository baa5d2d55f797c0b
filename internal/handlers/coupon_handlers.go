package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Coupon Handlers ---
//

const (
	couponListCacheKey = "coupons:public"
	couponListCacheTTL = 2 * time.Minute
)

const couponColumns = `id, code, description, discount_type, discount_value, minimum_order_amount,
	maximum_discount_amount, max_uses, used_count, max_uses_per_user, valid_from, valid_until,
	is_active, is_public, applicable_users, applicable_categories, excluded_books, created_at, updated_at`

// scanCoupon reads one coupon row including the JSON list columns.
func scanCoupon(scan func(dest ...interface{}) error) (*models.Coupon, error) {
	var cp models.Coupon
	var rawUsers, rawCategories, rawExcluded []byte

	err := scan(
		&cp.ID, &cp.Code, &cp.Description, &cp.DiscountType, &cp.DiscountValue,
		&cp.MinimumOrderAmount, &cp.MaximumDiscountAmount, &cp.MaxUses, &cp.UsedCount,
		&cp.MaxUsesPerUser, &cp.ValidFrom, &cp.ValidUntil, &cp.IsActive, &cp.IsPublic,
		&rawUsers, &rawCategories, &rawExcluded, &cp.CreatedAt, &cp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cp.ApplicableUsers, err = models.DecodeIDList(rawUsers); err != nil {
		return nil, err
	}
	if cp.ApplicableCategories, err = models.DecodeStringList(rawCategories); err != nil {
		return nil, err
	}
	if cp.ExcludedBooks, err = models.DecodeIDList(rawExcluded); err != nil {
		return nil, err
	}
	return &cp, nil
}

// findCouponByCode looks a coupon up by its (uppercase) code.
// forUpdate locks the row for the caller's transaction; checkout uses
// this so the usage-cap check and the redemption are atomic.
func (h *Handlers) findCouponByCode(q Querier, code string, forUpdate bool) (*models.Coupon, error) {
	query := "SELECT " + couponColumns + " FROM coupons WHERE code = ?"
	if forUpdate {
		query += " FOR UPDATE"
	}
	row := q.QueryRow(query, strings.ToUpper(strings.TrimSpace(code)))
	return scanCoupon(row.Scan)
}

// countCouponUsage counts this user's entries in the usage audit
// trail, the only enforcement mechanism for per-user caps.
func (h *Handlers) countCouponUsage(q Querier, couponID, userID int64) (int, error) {
	var count int
	err := q.QueryRow(
		"SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?",
		couponID, userID,
	).Scan(&count)
	return count, err
}

// ListPublicCoupons is the handler for GET /coupons: every coupon that
// is active, public, inside its window and under its global cap.
// The listing is cached; admin writes invalidate it.
func (h *Handlers) ListPublicCoupons(c *gin.Context) {
	var coupons []models.Coupon
	if h.Cache != nil && h.Cache.GetJSON(c, couponListCacheKey, &coupons) {
		c.JSON(http.StatusOK, gin.H{"success": true, "coupons": coupons})
		return
	}

	query := "SELECT " + couponColumns + ` FROM coupons
		WHERE is_active = TRUE AND is_public = TRUE
		  AND valid_from <= NOW() AND valid_until >= NOW()
		  AND (max_uses = 0 OR used_count < max_uses)
		ORDER BY valid_until ASC`

	rows, err := h.DB.Query(query)
	if err != nil {
		serverError(c, "Failed to fetch coupons")
		return
	}
	defer rows.Close()

	for rows.Next() {
		cp, err := scanCoupon(rows.Scan)
		if err != nil {
			serverError(c, "Failed to scan coupon")
			return
		}
		coupons = append(coupons, *cp)
	}
	if err = rows.Err(); err != nil {
		serverError(c, "Error iterating coupons")
		return
	}

	if coupons == nil {
		coupons = []models.Coupon{}
	}
	if h.Cache != nil {
		h.Cache.SetJSON(c, couponListCacheKey, coupons, couponListCacheTTL)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "coupons": coupons})
}

// ValidateCouponInput defines the JSON for POST /coupons/validate.
// Items are optional; when present they enable the category/exclusion
// checks against what is actually being bought.
type ValidateCouponInput struct {
	Code        string  `json:"code" binding:"required"`
	OrderAmount float64 `json:"orderAmount" binding:"required,gt=0"`
	Items       []struct {
		BookID   int64 `json:"bookId" binding:"required"`
		Quantity int   `json:"quantity"`
	} `json:"items"`
}

// ValidateCoupon is the handler for POST /coupons/validate. This is a
// pure preview: no usage is recorded here. The checkout transaction is
// the only writer of redemptions.
func (h *Handlers) ValidateCoupon(c *gin.Context) {
	userID := currentUserID(c)

	var input ValidateCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	coupon, err := h.findCouponByCode(h.DB, input.Code, false)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Coupon not found")
			return
		}
		serverError(c, "Failed to look up coupon")
		return
	}

	// Resolve categories for the submitted items.
	couponItems := make([]models.CouponItem, 0, len(input.Items))
	for _, item := range input.Items {
		ci := models.CouponItem{BookID: item.BookID}
		err := h.DB.QueryRow("SELECT category FROM books WHERE id = ?", item.BookID).Scan(&ci.Category)
		if err != nil && err != sql.ErrNoRows {
			serverError(c, "Failed to check coupon eligibility")
			return
		}
		couponItems = append(couponItems, ci)
	}

	usageCount, err := h.countCouponUsage(h.DB, coupon.ID, userID)
	if err != nil {
		serverError(c, "Failed to check coupon usage")
		return
	}

	if err := coupon.ValidateForOrder(time.Now(), userID, input.OrderAmount, couponItems, usageCount); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	discount := coupon.CalculateDiscount(input.OrderAmount)
	freeShipping := coupon.DiscountType == models.DiscountFreeShipped

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"coupon": gin.H{
			"code":         coupon.Code,
			"description":  coupon.Description,
			"discountType": coupon.DiscountType,
		},
		"orderSummary": gin.H{
			"orderAmount":  input.OrderAmount,
			"discount":     discount,
			"freeShipping": freeShipping,
			"total":        input.OrderAmount - discount,
		},
	})
}

//
// --- Coupon Admin Handlers ---
//

// CouponInput defines the JSON for the admin create/update endpoints.
type CouponInput struct {
	Code                  string    `json:"code" binding:"required"`
	Description           string    `json:"description"`
	DiscountType          string    `json:"discountType" binding:"required,oneof=percentage fixed free_shipping"`
	DiscountValue         float64   `json:"discountValue" binding:"omitempty,gte=0"`
	MinimumOrderAmount    float64   `json:"minimumOrderAmount" binding:"omitempty,gte=0"`
	MaximumDiscountAmount *float64  `json:"maximumDiscountAmount" binding:"omitempty,gt=0"`
	MaxUses               int       `json:"maxUses" binding:"omitempty,gte=0"`
	MaxUsesPerUser        int       `json:"maxUsesPerUser" binding:"omitempty,gte=0"`
	ValidFrom             time.Time `json:"validFrom" binding:"required"`
	ValidUntil            time.Time `json:"validUntil" binding:"required,gtfield=ValidFrom"`
	IsActive              *bool     `json:"isActive"`
	IsPublic              *bool     `json:"isPublic"`
	ApplicableUsers       []int64   `json:"applicableUsers"`
	ApplicableCategories  []string  `json:"applicableCategories"`
	ExcludedBooks         []int64   `json:"excludedBooks"`
}

func encodeList(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// CreateCoupon is the handler for POST /admin/coupons.
func (h *Handlers) CreateCoupon(c *gin.Context) {
	var input CouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	rawUsers, err1 := encodeList(input.ApplicableUsers)
	rawCategories, err2 := encodeList(input.ApplicableCategories)
	rawExcluded, err3 := encodeList(input.ExcludedBooks)
	if err1 != nil || err2 != nil || err3 != nil {
		serverError(c, "Failed to encode coupon restrictions")
		return
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	now := time.Now()
	query := `
		INSERT INTO coupons (code, description, discount_type, discount_value, minimum_order_amount,
			maximum_discount_amount, max_uses, used_count, max_uses_per_user, valid_from, valid_until,
			is_active, is_public, applicable_users, applicable_categories, excluded_books, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := h.DB.Exec(query,
		strings.ToUpper(strings.TrimSpace(input.Code)), input.Description, input.DiscountType,
		input.DiscountValue, input.MinimumOrderAmount, input.MaximumDiscountAmount,
		input.MaxUses, input.MaxUsesPerUser, input.ValidFrom, input.ValidUntil,
		isActive, isPublic, rawUsers, rawCategories, rawExcluded, now, now,
	)
	if err != nil {
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
			fail(c, http.StatusBadRequest, "A coupon with this code already exists")
			return
		}
		serverError(c, "Failed to create coupon")
		return
	}
	couponID, _ := result.LastInsertId()

	if h.Cache != nil {
		h.Cache.Delete(c, couponListCacheKey)
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "couponId": couponID})
}

// UpdateCoupon is the handler for PUT /admin/coupons/:id.
// used_count is never writable here: only checkout moves it.
func (h *Handlers) UpdateCoupon(c *gin.Context) {
	couponID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	var input CouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	rawUsers, err1 := encodeList(input.ApplicableUsers)
	rawCategories, err2 := encodeList(input.ApplicableCategories)
	rawExcluded, err3 := encodeList(input.ExcludedBooks)
	if err1 != nil || err2 != nil || err3 != nil {
		serverError(c, "Failed to encode coupon restrictions")
		return
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}
	isPublic := true
	if input.IsPublic != nil {
		isPublic = *input.IsPublic
	}

	query := `
		UPDATE coupons
		SET code = ?, description = ?, discount_type = ?, discount_value = ?, minimum_order_amount = ?,
			maximum_discount_amount = ?, max_uses = ?, max_uses_per_user = ?, valid_from = ?, valid_until = ?,
			is_active = ?, is_public = ?, applicable_users = ?, applicable_categories = ?, excluded_books = ?,
			updated_at = ?
		WHERE id = ?`
	result, err := h.DB.Exec(query,
		strings.ToUpper(strings.TrimSpace(input.Code)), input.Description, input.DiscountType,
		input.DiscountValue, input.MinimumOrderAmount, input.MaximumDiscountAmount,
		input.MaxUses, input.MaxUsesPerUser, input.ValidFrom, input.ValidUntil,
		isActive, isPublic, rawUsers, rawCategories, rawExcluded, time.Now(), couponID,
	)
	if err != nil {
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
			fail(c, http.StatusBadRequest, "A coupon with this code already exists")
			return
		}
		serverError(c, "Failed to update coupon")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Coupon not found")
		return
	}

	if h.Cache != nil {
		h.Cache.Delete(c, couponListCacheKey)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Coupon updated"})
}

// DeleteCoupon is the handler for DELETE /admin/coupons/:id.
// Deactivation, not deletion: the usage audit trail must survive.
func (h *Handlers) DeleteCoupon(c *gin.Context) {
	couponID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	result, err := h.DB.Exec("UPDATE coupons SET is_active = FALSE, updated_at = ? WHERE id = ?", time.Now(), couponID)
	if err != nil {
		serverError(c, "Failed to delete coupon")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Coupon not found")
		return
	}

	if h.Cache != nil {
		h.Cache.Delete(c, couponListCacheKey)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Coupon deactivated"})
}

// ListAllCoupons is the handler for GET /admin/coupons. Includes
// inactive and private coupons, newest first.
func (h *Handlers) ListAllCoupons(c *gin.Context) {
	rows, err := h.DB.Query("SELECT " + couponColumns + " FROM coupons ORDER BY created_at DESC")
	if err != nil {
		serverError(c, "Failed to fetch coupons")
		return
	}
	defer rows.Close()

	var coupons []models.Coupon
	for rows.Next() {
		cp, err := scanCoupon(rows.Scan)
		if err != nil {
			serverError(c, "Failed to scan coupon")
			return
		}
		coupons = append(coupons, *cp)
	}
	if err = rows.Err(); err != nil {
		serverError(c, "Error iterating coupons")
		return
	}

	if coupons == nil {
		coupons = []models.Coupon{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "coupons": coupons})
}

// DeactivateExpiredCoupons flips is_active off for coupons past their
// window. Run by the background worker, so listings stay honest even
// if nobody touches an expired coupon.
func (h *Handlers) DeactivateExpiredCoupons() {
	result, err := h.DB.Exec("UPDATE coupons SET is_active = FALSE, updated_at = ? WHERE is_active = TRUE AND valid_until < NOW()", time.Now())
	if err != nil {
		h.Logger.Error().Err(err).Msg("expired coupon sweep failed")
		return
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		h.Logger.Info().Int64("deactivated", rows).Msg("expired coupon sweep")
		if h.Cache != nil {
			h.Cache.Delete(context.Background(), couponListCacheKey)
		}
	}
}
