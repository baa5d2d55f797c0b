package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Order Handlers ---
//

// ShippingAddressInput is the delivery address snapshotted onto the
// order as a JSON blob.
type ShippingAddressInput struct {
	FullName string `json:"fullName" binding:"required"`
	Line1    string `json:"line1" binding:"required"`
	Line2    string `json:"line2"`
	City     string `json:"city" binding:"required"`
	State    string `json:"state"`
	Postcode string `json:"postcode" binding:"required"`
	Phone    string `json:"phone"`
}

// CreateOrderInput defines the JSON for POST /orders. The items come
// from the server-side cart, never from the client. CouponCode
// overrides a coupon already applied to the cart; AffiliateCode can
// also arrive via the "ref" query parameter or the X-Affiliate-Code
// header (first non-empty wins, body first).
type CreateOrderInput struct {
	ShippingAddress ShippingAddressInput `json:"shippingAddress" binding:"required"`
	PaymentMethod   string               `json:"paymentMethod" binding:"required"`
	CouponCode      string               `json:"couponCode"`
	AffiliateCode   string               `json:"affiliateCode"`
}

// orderLine is a cart line joined with the book's display fields,
// ready to be frozen into an order item snapshot.
type orderLine struct {
	BookID        int64
	Quantity      int
	Price         float64
	OriginalPrice float64
	Title         string
	Author        string
	CoverImage    string
	Active        bool
}

const maxOrderNumberAttempts = 5

// CreateOrder is the handler for POST /orders.
//
// Everything that must hold together (coupon redemption, the order
// row, item snapshots, cart clearing) happens in one transaction.
// Affiliate accrual and the confirmation email are secondary effects:
// they run after commit, their failures are logged and never surfaced.
func (h *Handlers) CreateOrder(c *gin.Context) {
	userID := currentUserID(c)

	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// Resolve the affiliate code up front; it is stored on the order so
	// a lost accrual can be reconciled later.
	affiliateCode := extractAffiliateCode(c, input.AffiliateCode)

	addressJSON, err := json.Marshal(input.ShippingAddress)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid shipping address")
		return
	}

	// 1. --- Begin Transaction ---
	tx, err := h.DB.BeginTx(c, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		serverError(c, "Failed to start transaction")
		return
	}
	defer tx.Rollback() // Safety net

	// 2. --- Load the Cart ---
	cart, err := h.findCart(tx, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusBadRequest, "Your cart is empty")
			return
		}
		serverError(c, "Failed to load cart")
		return
	}

	// Lines joined with current book display fields, rows locked for
	// the duration of the checkout.
	lines, err := h.loadOrderLines(tx, cart.ID)
	if err != nil {
		serverError(c, "Failed to load cart items")
		return
	}
	if len(lines) == 0 {
		fail(c, http.StatusBadRequest, "Your cart is empty")
		return
	}

	// The cart is authoritative: a book deactivated after it was added
	// must not vanish from the order silently. The shopper removes the
	// line or keeps the whole cart.
	for _, line := range lines {
		if !line.Active {
			fail(c, http.StatusBadRequest,
				fmt.Sprintf("%q is no longer available; remove it from your cart to continue", line.Title))
			return
		}
	}

	// 3. --- Compute Item Totals ---
	cartItems := make([]models.CartItem, 0, len(lines))
	couponItems := make([]models.CouponItem, 0, len(lines))
	for _, line := range lines {
		cartItems = append(cartItems, models.CartItem{
			BookID:        line.BookID,
			Quantity:      line.Quantity,
			Price:         line.Price,
			OriginalPrice: line.OriginalPrice,
		})
		couponItems = append(couponItems, models.CouponItem{BookID: line.BookID})
	}
	// Categories resolved inside the tx for the eligibility check.
	for i := range couponItems {
		err := tx.QueryRow("SELECT category FROM books WHERE id = ?", couponItems[i].BookID).Scan(&couponItems[i].Category)
		if err != nil && err != sql.ErrNoRows {
			serverError(c, "Failed to check coupon eligibility")
			return
		}
	}

	orderAmount := merchandiseTotal(cartItems)

	// 4. --- Redeem the Coupon (if any) ---
	// The explicit code wins over one already applied to the cart.
	couponCode := input.CouponCode
	if couponCode == "" && cart.CouponCode != nil {
		couponCode = *cart.CouponCode
	}

	var coupon *models.Coupon
	var couponDiscount float64
	if couponCode != "" {
		coupon, err = h.findCouponByCode(tx, couponCode, true) // FOR UPDATE
		if err != nil {
			if err == sql.ErrNoRows {
				fail(c, http.StatusNotFound, "Coupon not found")
				return
			}
			serverError(c, "Failed to look up coupon")
			return
		}

		usageCount, err := h.countCouponUsage(tx, coupon.ID, userID)
		if err != nil {
			serverError(c, "Failed to check coupon usage")
			return
		}

		if err := coupon.ValidateForOrder(time.Now(), userID, orderAmount, couponItems, usageCount); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		// Consume the global cap with a guarded update: zero rows
		// affected means another checkout took the last use while we
		// were validating.
		if coupon.MaxUses > 0 {
			result, err := tx.Exec(
				"UPDATE coupons SET used_count = used_count + 1, updated_at = ? WHERE id = ? AND used_count < max_uses",
				time.Now(), coupon.ID,
			)
			if err != nil {
				serverError(c, "Failed to redeem coupon")
				return
			}
			if rows, _ := result.RowsAffected(); rows == 0 {
				fail(c, http.StatusBadRequest, models.ErrCouponNotValid.Error())
				return
			}
		} else {
			if _, err := tx.Exec("UPDATE coupons SET used_count = used_count + 1, updated_at = ? WHERE id = ?", time.Now(), coupon.ID); err != nil {
				serverError(c, "Failed to redeem coupon")
				return
			}
		}

		couponDiscount = coupon.CalculateDiscount(orderAmount)
	}

	// 5. --- Final Totals ---
	var couponType *string
	if coupon != nil {
		couponType = &coupon.DiscountType
	}
	shipping := h.shippingCost(couponType)
	totals := models.ComputeCartTotals(cartItems, couponDiscount, shipping)

	// 6. --- Insert the Order (retrying order-number collisions) ---
	now := time.Now()
	var orderID int64
	var orderNumber string
	var couponCodeValue interface{}
	if coupon != nil {
		couponCodeValue = coupon.Code
	}
	var affiliateCodeValue interface{}
	if affiliateCode != "" {
		affiliateCodeValue = affiliateCode
	}

	for attempt := 0; ; attempt++ {
		orderNumber = models.NewOrderNumber(time.Now())
		result, err := tx.Exec(`
			INSERT INTO orders (order_number, user_id, status, subtotal, coupon_code, coupon_discount,
				shipping_cost, total, shipping_address, payment_method, affiliate_code, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			orderNumber, userID, models.OrderStatusPending, totals.Subtotal, couponCodeValue,
			couponDiscount, shipping, totals.Total, addressJSON, input.PaymentMethod,
			affiliateCodeValue, now, now,
		)
		if err != nil {
			// UNIQUE index on order_number turns a same-millisecond
			// collision into a retry instead of a corrupt order.
			if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 && attempt < maxOrderNumberAttempts {
				continue
			}
			serverError(c, "Failed to create order")
			return
		}
		orderID, err = result.LastInsertId()
		if err != nil {
			serverError(c, "Failed to create order")
			return
		}
		break
	}

	// 7. --- Record the Coupon Redemption ---
	if coupon != nil {
		_, err = tx.Exec(
			"INSERT INTO coupon_usages (coupon_id, user_id, order_id, discount_amount, used_at) VALUES (?, ?, ?, ?, ?)",
			coupon.ID, userID, orderID, couponDiscount, now,
		)
		if err != nil {
			serverError(c, "Failed to record coupon usage")
			return
		}
	}

	// 8. --- Freeze the Item Snapshots ---
	itemQuery := `
		INSERT INTO order_items (order_id, book_id, title, author, cover_image, price, original_price,
			quantity, status, payment_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for _, line := range lines {
		_, err := tx.Exec(itemQuery,
			orderID, line.BookID, line.Title, line.Author, line.CoverImage,
			line.Price, line.OriginalPrice, line.Quantity,
			models.ItemStatusPending, models.PaymentStatusPending, now, now,
		)
		if err != nil {
			serverError(c, "Failed to save order item")
			return
		}
	}

	// 9. --- Clear the Cart ---
	if err := h.clearCartContents(tx, cart.ID); err != nil {
		serverError(c, "Failed to clear cart")
		return
	}

	// 10. --- Commit ---
	if err := tx.Commit(); err != nil {
		serverError(c, "Failed to commit order")
		return
	}

	// 11. --- Secondary Effects (never block, never surface) ---
	if affiliateCode != "" {
		go h.accrueAffiliate(affiliateCode, orderID, totals.Total)
	}
	h.sendOrderConfirmation(userID, orderNumber, totals.Total)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"order": gin.H{
			"id":          orderID,
			"orderNumber": orderNumber,
			"status":      models.OrderStatusPending,
			"subtotal":    totals.Subtotal,
			"discount":    couponDiscount,
			"shipping":    shipping,
			"total":       totals.Total,
			"itemCount":   totals.ItemCount,
		},
	})
}

// loadOrderLines reads the cart lines joined with book display fields,
// locking the rows until the checkout transaction finishes. Deactivated
// books are included so the caller can reject them explicitly instead
// of dropping lines the shopper reviewed.
func (h *Handlers) loadOrderLines(tx *sql.Tx, cartID int64) ([]orderLine, error) {
	rows, err := tx.Query(`
		SELECT ci.book_id, ci.quantity, ci.price, ci.original_price, b.title, b.author, b.cover_image, b.is_active
		FROM cart_items ci
		JOIN books b ON ci.book_id = b.id
		WHERE ci.cart_id = ?
		FOR UPDATE`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []orderLine
	for rows.Next() {
		var line orderLine
		if err := rows.Scan(
			&line.BookID, &line.Quantity, &line.Price, &line.OriginalPrice,
			&line.Title, &line.Author, &line.CoverImage, &line.Active,
		); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// sendOrderConfirmation enqueues the confirmation email for the order
// owner. Lookup failures are logged, never surfaced.
func (h *Handlers) sendOrderConfirmation(userID int64, orderNumber string, total float64) {
	var email, fullName string
	err := h.DB.QueryRow("SELECT email, full_name FROM users WHERE id = ?", userID).Scan(&email, &fullName)
	if err != nil {
		h.Logger.Error().Err(err).Int64("userId", userID).Msg("could not load user for order confirmation mail")
		return
	}

	subject := fmt.Sprintf("Order %s confirmed", orderNumber)
	body := fmt.Sprintf("Hi %s,\n\nThanks for your order!\n\nOrder number: %s\nTotal: %.2f\n\nWe will let you know when your books ship.",
		fullName, orderNumber, total)
	h.Mailer.Enqueue(email, subject, body)
}

//
// --- Order Retrieval Handlers ---
//

// GetMyOrders is the handler for GET /orders.
func (h *Handlers) GetMyOrders(c *gin.Context) {
	userID := currentUserID(c)

	query := `
		SELECT id, order_number, user_id, status, subtotal, coupon_code, coupon_discount,
			shipping_cost, total, shipping_address, payment_method, tracking, affiliate_code,
			created_at, updated_at
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC`

	rows, err := h.DB.Query(query, userID)
	if err != nil {
		serverError(c, "Failed to fetch orders")
		return
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			serverError(c, "Failed to scan order")
			return
		}
		orders = append(orders, *o)
	}
	if err = rows.Err(); err != nil {
		serverError(c, "Error iterating orders")
		return
	}

	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

// GetOrderDetails is the handler for GET /orders/:id.
// Non-owners get the same 404 as a missing order.
func (h *Handlers) GetOrderDetails(c *gin.Context) {
	userID := currentUserID(c)
	orderID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	order, err := h.findOrder(h.DB, orderID, &userID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Order not found")
			return
		}
		serverError(c, "Failed to fetch order")
		return
	}

	items, err := h.loadOrderItems(h.DB, order.ID)
	if err != nil {
		serverError(c, "Failed to fetch order items")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"order":       order,
		"items":       items,
		"itemSummary": models.SummarizeItems(items),
	})
}

// scanOrder reads one full order row.
func scanOrder(scan func(dest ...interface{}) error) (*models.Order, error) {
	var o models.Order
	err := scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.Subtotal, &o.CouponCode,
		&o.CouponDiscount, &o.ShippingCost, &o.Total, &o.ShippingAddress, &o.PaymentMethod,
		&o.Tracking, &o.AffiliateCode, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// findOrder loads one order; when ownerID is non-nil the row must
// belong to that user.
func (h *Handlers) findOrder(q Querier, orderID int64, ownerID *int64) (*models.Order, error) {
	query := `
		SELECT id, order_number, user_id, status, subtotal, coupon_code, coupon_discount,
			shipping_cost, total, shipping_address, payment_method, tracking, affiliate_code,
			created_at, updated_at
		FROM orders
		WHERE id = ?`
	args := []interface{}{orderID}
	if ownerID != nil {
		query += " AND user_id = ?"
		args = append(args, *ownerID)
	}
	return scanOrder(q.QueryRow(query, args...).Scan)
}

// loadOrderItems reads every line of an order.
func (h *Handlers) loadOrderItems(q Querier, orderID int64) ([]models.OrderItem, error) {
	rows, err := q.Query(`
		SELECT id, order_id, book_id, title, author, cover_image, price, original_price,
			quantity, status, payment_status, refund_amount, extra_payment_requested,
			created_at, updated_at
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(
			&item.ID, &item.OrderID, &item.BookID, &item.Title, &item.Author, &item.CoverImage,
			&item.Price, &item.OriginalPrice, &item.Quantity, &item.Status, &item.PaymentStatus,
			&item.RefundAmount, &item.ExtraPaymentRequested, &item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
