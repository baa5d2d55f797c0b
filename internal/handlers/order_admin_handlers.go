package handlers

import (
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Order Admin Handlers ---
//
// Per-item fulfillment/payment sub-states live here, deliberately
// decoupled from the order-level status: a line can be refunded while
// the order as a whole is "shipped". Every transition emails the order
// owner; the email is a secondary effect and never blocks or reverts
// the state change.
//

// AdminListOrders is the handler for GET /order-admin/orders.
func (h *Handlers) AdminListOrders(c *gin.Context) {
	query := `
		SELECT id, order_number, user_id, status, subtotal, coupon_code, coupon_discount,
			shipping_cost, total, shipping_address, payment_method, tracking, affiliate_code,
			created_at, updated_at
		FROM orders
		ORDER BY created_at DESC`

	// Optional status filter: GET /order-admin/orders?status=pending
	args := []interface{}{}
	if status := c.Query("status"); status != "" {
		if !models.ValidOrderStatus(status) {
			fail(c, http.StatusBadRequest, "Unknown order status")
			return
		}
		query = `
			SELECT id, order_number, user_id, status, subtotal, coupon_code, coupon_discount,
				shipping_cost, total, shipping_address, payment_method, tracking, affiliate_code,
				created_at, updated_at
			FROM orders
			WHERE status = ?
			ORDER BY created_at DESC`
		args = append(args, status)
	}

	rows, err := h.DB.Query(query, args...)
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

// UpdateOrderStatusInput defines the JSON for the order-level status
// endpoint.
type UpdateOrderStatusInput struct {
	Status   string  `json:"status" binding:"required"`
	Tracking *string `json:"tracking"`
}

// UpdateOrderStatus is the handler for PUT /order-admin/:orderId/status.
// This axis is independent of the per-item states; the response
// includes the computed item roll-up so consumers can show both.
func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := paramInt64(c, "orderId")
	if !ok {
		return
	}

	var input UpdateOrderStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if !models.ValidOrderStatus(input.Status) {
		fail(c, http.StatusBadRequest, "Unknown order status")
		return
	}

	var result sql.Result
	var err error
	if input.Tracking != nil {
		result, err = h.DB.Exec("UPDATE orders SET status = ?, tracking = ?, updated_at = ? WHERE id = ?",
			input.Status, *input.Tracking, time.Now(), orderID)
	} else {
		result, err = h.DB.Exec("UPDATE orders SET status = ?, updated_at = ? WHERE id = ?",
			input.Status, time.Now(), orderID)
	}
	if err != nil {
		serverError(c, "Failed to update order status")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Order not found")
		return
	}

	order, err := h.findOrder(h.DB, orderID, nil)
	if err != nil {
		serverError(c, "Failed to reload order")
		return
	}
	items, err := h.loadOrderItems(h.DB, orderID)
	if err != nil {
		serverError(c, "Failed to load order items")
		return
	}

	h.notifyOrderOwner(order,
		fmt.Sprintf("Order %s is now %s", order.OrderNumber, order.Status),
		fmt.Sprintf("Your order %s has been updated to: %s.", order.OrderNumber, order.Status),
	)

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"order":       order,
		"itemSummary": models.SummarizeItems(items),
	})
}

// loadAdminOrderItem fetches one item of one order, plus its parent
// order for ownership/notification purposes.
func (h *Handlers) loadAdminOrderItem(c *gin.Context) (*models.Order, *models.OrderItem, bool) {
	orderID, ok := paramInt64(c, "orderId")
	if !ok {
		return nil, nil, false
	}
	itemID, ok := paramInt64(c, "itemId")
	if !ok {
		return nil, nil, false
	}

	order, err := h.findOrder(h.DB, orderID, nil)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Order not found")
			return nil, nil, false
		}
		serverError(c, "Failed to fetch order")
		return nil, nil, false
	}

	var item models.OrderItem
	err = h.DB.QueryRow(`
		SELECT id, order_id, book_id, title, author, cover_image, price, original_price,
			quantity, status, payment_status, refund_amount, extra_payment_requested,
			created_at, updated_at
		FROM order_items
		WHERE id = ? AND order_id = ?`, itemID, orderID).Scan(
		&item.ID, &item.OrderID, &item.BookID, &item.Title, &item.Author, &item.CoverImage,
		&item.Price, &item.OriginalPrice, &item.Quantity, &item.Status, &item.PaymentStatus,
		&item.RefundAmount, &item.ExtraPaymentRequested, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Order item not found")
			return nil, nil, false
		}
		serverError(c, "Failed to fetch order item")
		return nil, nil, false
	}

	return order, &item, true
}

// respondUpdatedItem reloads the item and sends it back.
func (h *Handlers) respondUpdatedItem(c *gin.Context, orderID, itemID int64) {
	var item models.OrderItem
	err := h.DB.QueryRow(`
		SELECT id, order_id, book_id, title, author, cover_image, price, original_price,
			quantity, status, payment_status, refund_amount, extra_payment_requested,
			created_at, updated_at
		FROM order_items
		WHERE id = ? AND order_id = ?`, itemID, orderID).Scan(
		&item.ID, &item.OrderID, &item.BookID, &item.Title, &item.Author, &item.CoverImage,
		&item.Price, &item.OriginalPrice, &item.Quantity, &item.Status, &item.PaymentStatus,
		&item.RefundAmount, &item.ExtraPaymentRequested, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		serverError(c, "Failed to reload order item")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "item": item})
}

// FulfillOrderItem is the handler for
// PUT /order-admin/:orderId/items/:itemId/fulfill.
// Idempotent: fulfilling an already-fulfilled item overwrites the same
// state and reports success.
func (h *Handlers) FulfillOrderItem(c *gin.Context) {
	order, item, ok := h.loadAdminOrderItem(c)
	if !ok {
		return
	}

	_, err := h.DB.Exec(
		"UPDATE order_items SET status = ?, updated_at = ? WHERE id = ?",
		models.ItemStatusFulfilled, time.Now(), item.ID,
	)
	if err != nil {
		serverError(c, "Failed to fulfill item")
		return
	}

	h.notifyOrderOwner(order,
		fmt.Sprintf("An item in order %s has shipped", order.OrderNumber),
		fmt.Sprintf("Good news — \"%s\" from order %s has been fulfilled.", item.Title, order.OrderNumber),
	)

	h.respondUpdatedItem(c, order.ID, item.ID)
}

// RefundOrderItemInput defines the JSON for the refund endpoint.
// RefundAmount is optional; when omitted the refund defaults to the
// line total (DefaultRefundAmount).
type RefundOrderItemInput struct {
	RefundAmount *float64 `json:"refundAmount" binding:"omitempty,gt=0"`
}

// RefundOrderItem is the handler for
// PUT /order-admin/:orderId/items/:itemId/refund.
func (h *Handlers) RefundOrderItem(c *gin.Context) {
	order, item, ok := h.loadAdminOrderItem(c)
	if !ok {
		return
	}

	// The body is optional: a bare refund uses the default amount.
	var input RefundOrderItemInput
	if err := c.ShouldBindJSON(&input); err != nil && err != io.EOF {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	refundAmount := models.DefaultRefundAmount(item)
	if input.RefundAmount != nil {
		refundAmount = *input.RefundAmount
	}

	_, err := h.DB.Exec(
		"UPDATE order_items SET status = ?, payment_status = ?, refund_amount = ?, updated_at = ? WHERE id = ?",
		models.ItemStatusRefunded, models.PaymentStatusRefunded, refundAmount, time.Now(), item.ID,
	)
	if err != nil {
		serverError(c, "Failed to refund item")
		return
	}

	h.notifyOrderOwner(order,
		fmt.Sprintf("Refund issued for order %s", order.OrderNumber),
		fmt.Sprintf("A refund of %.2f has been issued for \"%s\" in order %s.", refundAmount, item.Title, order.OrderNumber),
	)

	h.respondUpdatedItem(c, order.ID, item.ID)
}

// RequestExtraPaymentInput defines the JSON for the extra-payment
// endpoint.
type RequestExtraPaymentInput struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// RequestExtraPayment is the handler for
// PUT /order-admin/:orderId/items/:itemId/request-payment.
// Purely advisory: it records the requested amount and flips the
// payment status, but creates no payment-collection record.
func (h *Handlers) RequestExtraPayment(c *gin.Context) {
	order, item, ok := h.loadAdminOrderItem(c)
	if !ok {
		return
	}

	var input RequestExtraPaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	_, err := h.DB.Exec(
		"UPDATE order_items SET payment_status = ?, extra_payment_requested = ?, updated_at = ? WHERE id = ?",
		models.PaymentStatusRequested, input.Amount, time.Now(), item.ID,
	)
	if err != nil {
		serverError(c, "Failed to request extra payment")
		return
	}

	h.notifyOrderOwner(order,
		fmt.Sprintf("Additional payment needed for order %s", order.OrderNumber),
		fmt.Sprintf("An additional payment of %.2f is requested for \"%s\" in order %s. Please contact support to settle it.",
			input.Amount, item.Title, order.OrderNumber),
	)

	h.respondUpdatedItem(c, order.ID, item.ID)
}

// notifyOrderOwner enqueues a mail to the order's owner. Best effort:
// a lookup failure is logged and the transition stands.
func (h *Handlers) notifyOrderOwner(order *models.Order, subject, body string) {
	var email string
	err := h.DB.QueryRow("SELECT email FROM users WHERE id = ?", order.UserID).Scan(&email)
	if err != nil {
		h.Logger.Error().Err(err).Int64("userId", order.UserID).Str("orderNumber", order.OrderNumber).
			Msg("could not load order owner for notification mail")
		return
	}
	h.Mailer.Enqueue(email, subject, body)
}
