package handlers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Affiliate Handlers ---
//

// generateAffiliateCode returns an 8-hex-char code. Uniqueness is
// ultimately enforced by the UNIQUE index on users.affiliate_code.
func generateAffiliateCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// extractAffiliateCode resolves the referral code from its three
// equivalent carriers: request body field, "ref" query parameter,
// X-Affiliate-Code header. First non-empty wins, in that order.
func extractAffiliateCode(c *gin.Context, bodyCode string) string {
	if bodyCode != "" {
		return bodyCode
	}
	if code := c.Query("ref"); code != "" {
		return code
	}
	return c.GetHeader("X-Affiliate-Code")
}

// RegisterAffiliate is the handler for POST /affiliate/register.
func (h *Handlers) RegisterAffiliate(c *gin.Context) {
	userID := currentUserID(c)

	// 1. --- Reject Double Registration ---
	var existing sql.NullString
	err := h.DB.QueryRow("SELECT affiliate_code FROM users WHERE id = ?", userID).Scan(&existing)
	if err != nil {
		serverError(c, "Failed to look up account")
		return
	}
	if existing.Valid && existing.String != "" {
		fail(c, http.StatusBadRequest, "You are already registered as an affiliate")
		return
	}

	// 2. --- Generate a Unique Code ---
	// The UNIQUE index turns the rare collision into a retry.
	var code string
	for attempt := 0; ; attempt++ {
		code, err = generateAffiliateCode()
		if err != nil {
			serverError(c, "Failed to generate affiliate code")
			return
		}

		_, err = h.DB.Exec(`
			UPDATE users
			SET affiliate_code = ?, affiliate_active = TRUE, commission_rate = ?, total_earnings = 0, updated_at = ?
			WHERE id = ?`,
			code, models.DefaultCommissionRate, time.Now(), userID,
		)
		if err != nil {
			if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 && attempt < 5 {
				continue
			}
			serverError(c, "Failed to register affiliate")
			return
		}
		break
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":        true,
		"affiliateCode":  code,
		"commissionRate": models.DefaultCommissionRate,
	})
}

// GetAffiliateStats is the handler for GET /affiliate/me.
func (h *Handlers) GetAffiliateStats(c *gin.Context) {
	userID := currentUserID(c)

	var code sql.NullString
	var active bool
	var rate, earnings float64
	err := h.DB.QueryRow(
		"SELECT affiliate_code, affiliate_active, commission_rate, total_earnings FROM users WHERE id = ?",
		userID,
	).Scan(&code, &active, &rate, &earnings)
	if err != nil {
		serverError(c, "Failed to load affiliate account")
		return
	}
	if !code.Valid || code.String == "" {
		fail(c, http.StatusNotFound, "You are not registered as an affiliate")
		return
	}

	var referredOrders int
	err = h.DB.QueryRow("SELECT COUNT(*) FROM affiliate_referrals WHERE affiliate_user_id = ?", userID).Scan(&referredOrders)
	if err != nil {
		serverError(c, "Failed to count referred orders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"affiliate": gin.H{
			"code":           code.String,
			"active":         active,
			"commissionRate": rate,
			"totalEarnings":  earnings,
			"referredOrders": referredOrders,
		},
	})
}

// accrueAffiliate attributes an order to the affiliate owning the code
// and credits the commission. Runs off the request path after the
// order commit; every failure is logged, none reaches the buyer.
//
// The UNIQUE index on affiliate_referrals.order_id makes a repeated
// accrual for the same order a no-op, so retries (and the audit job
// below) cannot double-pay.
func (h *Handlers) accrueAffiliate(code string, orderID int64, orderTotal float64) {
	var affiliateUserID int64
	var rate float64
	err := h.DB.QueryRow(
		"SELECT id, commission_rate FROM users WHERE affiliate_code = ? AND affiliate_active = TRUE",
		code,
	).Scan(&affiliateUserID, &rate)
	if err != nil {
		if err == sql.ErrNoRows {
			h.Logger.Warn().Str("affiliateCode", code).Int64("orderId", orderID).Msg("affiliate code does not match an active affiliate")
		} else {
			h.Logger.Error().Err(err).Int64("orderId", orderID).Msg("affiliate lookup failed")
		}
		return
	}

	commission := rate * orderTotal

	tx, err := h.DB.Begin()
	if err != nil {
		h.Logger.Error().Err(err).Int64("orderId", orderID).Msg("affiliate accrual transaction failed to start")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO affiliate_referrals (order_id, affiliate_user_id, commission, created_at) VALUES (?, ?, ?, ?)",
		orderID, affiliateUserID, commission, time.Now(),
	)
	if err != nil {
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
			// Already accrued for this order.
			return
		}
		h.Logger.Error().Err(err).Int64("orderId", orderID).Msg("affiliate referral insert failed")
		return
	}

	_, err = tx.Exec(
		"UPDATE users SET total_earnings = total_earnings + ?, updated_at = ? WHERE id = ?",
		commission, time.Now(), affiliateUserID,
	)
	if err != nil {
		h.Logger.Error().Err(err).Int64("orderId", orderID).Msg("affiliate earnings update failed")
		return
	}

	if err := tx.Commit(); err != nil {
		h.Logger.Error().Err(err).Int64("orderId", orderID).Msg("affiliate accrual commit failed")
		return
	}

	h.Logger.Info().
		Int64("orderId", orderID).
		Int64("affiliateUserId", affiliateUserID).
		Float64("commission", commission).
		Msg("affiliate commission accrued")
}

// ReconcileAffiliateAccruals re-runs accrual for orders that carry an
// affiliate code but never got a referral row, e.g. the process died
// between the order commit and the async accrual. Run periodically by
// the background worker; idempotent thanks to the unique referral
// index.
func (h *Handlers) ReconcileAffiliateAccruals() {
	rows, err := h.DB.Query(`
		SELECT o.id, o.affiliate_code, o.total
		FROM orders o
		LEFT JOIN affiliate_referrals r ON r.order_id = o.id
		WHERE o.affiliate_code IS NOT NULL AND r.id IS NULL`)
	if err != nil {
		h.Logger.Error().Err(err).Msg("affiliate reconciliation query failed")
		return
	}
	defer rows.Close()

	type pending struct {
		orderID int64
		code    string
		total   float64
	}
	var missed []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.orderID, &p.code, &p.total); err != nil {
			h.Logger.Error().Err(err).Msg("affiliate reconciliation scan failed")
			return
		}
		missed = append(missed, p)
	}
	if err := rows.Err(); err != nil {
		h.Logger.Error().Err(err).Msg("affiliate reconciliation iteration failed")
		return
	}

	for _, p := range missed {
		h.accrueAffiliate(p.code, p.orderID, p.total)
	}
	if len(missed) > 0 {
		h.Logger.Info().Int("orders", len(missed)).Msg("affiliate reconciliation pass finished")
	}
}
