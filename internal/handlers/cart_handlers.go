package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Cart Handlers ---
//

// dbtx is Querier plus Exec: satisfied by *sql.DB and *sql.Tx, so cart
// helpers can run standalone or inside the checkout transaction.
type dbtx interface {
	Querier
	Exec(query string, args ...interface{}) (sql.Result, error)
}

// getOrCreateCart finds a user's cart or lazily creates an empty one.
func (h *Handlers) getOrCreateCart(q dbtx, userID int64) (*models.Cart, error) {
	cart, err := h.findCart(q, userID)
	if err == nil {
		return cart, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// No cart yet: create one.
	now := time.Now()
	result, err := q.Exec(
		"INSERT INTO carts (user_id, coupon_discount, created_at, updated_at) VALUES (?, 0, ?, ?)",
		userID, now, now,
	)
	if err != nil {
		return nil, err
	}
	cartID, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Cart{ID: cartID, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

func (h *Handlers) findCart(q Querier, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := q.QueryRow(
		"SELECT id, user_id, coupon_code, coupon_discount, coupon_type, created_at, updated_at FROM carts WHERE user_id = ?",
		userID,
	).Scan(&cart.ID, &cart.UserID, &cart.CouponCode, &cart.CouponDiscount, &cart.CouponType, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (h *Handlers) loadCartItems(q Querier, cartID int64) ([]models.CartItem, error) {
	rows, err := q.Query(`
		SELECT id, cart_id, book_id, quantity, price, original_price, discount_percent, added_at
		FROM cart_items
		WHERE cart_id = ?
		ORDER BY added_at ASC`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(
			&item.ID, &item.CartID, &item.BookID, &item.Quantity,
			&item.Price, &item.OriginalPrice, &item.DiscountPercent, &item.AddedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// shippingCost applies the flat rate unless a free_shipping coupon is
// on the cart.
func (h *Handlers) shippingCost(couponType *string) float64 {
	if couponType != nil && *couponType == models.DiscountFreeShipped {
		return 0
	}
	return h.ShippingFlatRate
}

// cartItemView is a cart line joined with the book's display fields.
type cartItemView struct {
	models.CartItem
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	CoverImage string  `json:"coverImage"`
	LineTotal  float64 `json:"lineTotal"`
}

// respondCartSnapshot loads the full cart state and sends it. Every
// cart mutation ends here so the client always gets the same shape.
func (h *Handlers) respondCartSnapshot(c *gin.Context, status int, cart *models.Cart) {
	items, err := h.loadCartItems(h.DB, cart.ID)
	if err != nil {
		serverError(c, "Failed to load cart items")
		return
	}

	totals := models.ComputeCartTotals(items, cart.CouponDiscount, h.shippingCost(cart.CouponType))

	// Join in display fields for each line.
	views := make([]cartItemView, 0, len(items))
	for _, item := range items {
		view := cartItemView{CartItem: item, LineTotal: item.Price * float64(item.Quantity)}
		// Display info only: a lookup failure must not break the cart.
		err := h.DB.QueryRow("SELECT title, author, cover_image FROM books WHERE id = ?", item.BookID).
			Scan(&view.Title, &view.Author, &view.CoverImage)
		if err != nil && err != sql.ErrNoRows {
			serverError(c, "Failed to load cart item details")
			return
		}
		views = append(views, view)
	}

	c.JSON(status, gin.H{
		"success": true,
		"cart": gin.H{
			"id":         cart.ID,
			"items":      views,
			"couponCode": cart.CouponCode,
			"couponType": cart.CouponType,
			"totals":     totals,
		},
	})
}

// GetCart is the handler for GET /cart. Creates the cart lazily on
// first access.
func (h *Handlers) GetCart(c *gin.Context) {
	userID := currentUserID(c)

	cart, err := h.getOrCreateCart(h.DB, userID)
	if err != nil {
		serverError(c, "Failed to load cart")
		return
	}

	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// AddToCartInput defines the JSON for adding an item to the cart.
type AddToCartInput struct {
	BookID   int64 `json:"bookId" binding:"required"`
	Quantity int   `json:"quantity" binding:"required,gt=0"`
}

// AddToCart is the handler for POST /cart/add.
// If the book is already in the cart the quantities sum, and the price
// snapshot is refreshed to the book's current values. That "keep
// prices fresh" policy can silently change a line's discount.
func (h *Handlers) AddToCart(c *gin.Context) {
	userID := currentUserID(c)

	var input AddToCartInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// 1. --- Look Up the Book ---
	book, err := h.findBookByID(c, h.DB, input.BookID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Book not found")
			return
		}
		serverError(c, "Failed to look up book")
		return
	}

	// 2. --- Get the Cart & Existing Line ---
	cart, err := h.getOrCreateCart(h.DB, userID)
	if err != nil {
		serverError(c, "Failed to load cart")
		return
	}

	var existingQty int
	err = h.DB.QueryRow(
		"SELECT quantity FROM cart_items WHERE cart_id = ? AND book_id = ?",
		cart.ID, input.BookID,
	).Scan(&existingQty)
	if err != nil && err != sql.ErrNoRows {
		serverError(c, "Failed to check cart")
		return
	}

	// 3. --- Enforce the Quantity Bound ---
	newQty := existingQty + input.Quantity
	if newQty > models.MaxItemQuantity {
		fail(c, http.StatusBadRequest, "Cannot have more than 100 copies of a single book in the cart")
		return
	}

	// 4. --- Upsert the Line, Refreshing the Snapshot ---
	// The cap is re-applied inside the statement: two concurrent adds
	// can both pass the read check above, LEAST keeps the line at the
	// MaxItemQuantity bound either way.
	_, err = h.DB.Exec(`
		INSERT INTO cart_items (cart_id, book_id, quantity, price, original_price, discount_percent, added_at)
		VALUES (?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
			quantity = LEAST(quantity + VALUES(quantity), 100),
			price = VALUES(price),
			original_price = VALUES(original_price),
			discount_percent = VALUES(discount_percent)`,
		cart.ID, input.BookID, input.Quantity, book.Price, book.OriginalPrice, book.DiscountPercent,
	)
	if err != nil {
		serverError(c, "Failed to add item to cart")
		return
	}

	h.touchCart(cart.ID)
	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// UpdateCartItemInput defines the JSON for changing a line's quantity.
// No lower bound on purpose: zero or below removes the line.
type UpdateCartItemInput struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem is the handler for PUT /cart/items/:bookId.
func (h *Handlers) UpdateCartItem(c *gin.Context) {
	userID := currentUserID(c)
	bookID, ok := paramInt64(c, "bookId")
	if !ok {
		return
	}

	var input UpdateCartItemInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	cart, err := h.findCart(h.DB, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Cart not found")
			return
		}
		serverError(c, "Failed to load cart")
		return
	}

	// Quantity <= 0 removes the line entirely.
	if input.Quantity <= 0 {
		h.removeCartLine(c, cart, bookID)
		return
	}

	if input.Quantity > models.MaxItemQuantity {
		fail(c, http.StatusBadRequest, "Cannot have more than 100 copies of a single book in the cart")
		return
	}

	result, err := h.DB.Exec(
		"UPDATE cart_items SET quantity = ? WHERE cart_id = ? AND book_id = ?",
		input.Quantity, cart.ID, bookID,
	)
	if err != nil {
		serverError(c, "Failed to update item")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Item not found in cart")
		return
	}

	h.touchCart(cart.ID)
	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// RemoveCartItem is the handler for DELETE /cart/items/:bookId.
func (h *Handlers) RemoveCartItem(c *gin.Context) {
	userID := currentUserID(c)
	bookID, ok := paramInt64(c, "bookId")
	if !ok {
		return
	}

	cart, err := h.findCart(h.DB, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Cart not found")
			return
		}
		serverError(c, "Failed to load cart")
		return
	}

	h.removeCartLine(c, cart, bookID)
}

// removeCartLine deletes one line and responds with the new snapshot.
func (h *Handlers) removeCartLine(c *gin.Context, cart *models.Cart, bookID int64) {
	result, err := h.DB.Exec("DELETE FROM cart_items WHERE cart_id = ? AND book_id = ?", cart.ID, bookID)
	if err != nil {
		serverError(c, "Failed to remove item")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Item not found in cart")
		return
	}

	h.touchCart(cart.ID)
	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// ClearCart is the handler for DELETE /cart. The cart row survives
// (cleared, not deleted); any applied coupon is reset with it.
func (h *Handlers) ClearCart(c *gin.Context) {
	userID := currentUserID(c)

	cart, err := h.findCart(h.DB, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Cart not found")
			return
		}
		serverError(c, "Failed to load cart")
		return
	}

	if err := h.clearCartContents(h.DB, cart.ID); err != nil {
		serverError(c, "Failed to clear cart")
		return
	}

	cart.CouponCode = nil
	cart.CouponDiscount = 0
	cart.CouponType = nil
	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// clearCartContents empties the items and resets the coupon fields.
// Used by ClearCart and by checkout after the order is written.
func (h *Handlers) clearCartContents(q dbtx, cartID int64) error {
	if _, err := q.Exec("DELETE FROM cart_items WHERE cart_id = ?", cartID); err != nil {
		return err
	}
	_, err := q.Exec(
		"UPDATE carts SET coupon_code = NULL, coupon_discount = 0, coupon_type = NULL, updated_at = ? WHERE id = ?",
		time.Now(), cartID,
	)
	return err
}

// touchCart bumps the cart's updated_at. Best effort.
func (h *Handlers) touchCart(cartID int64) {
	if _, err := h.DB.Exec("UPDATE carts SET updated_at = ? WHERE id = ?", time.Now(), cartID); err != nil {
		h.Logger.Warn().Err(err).Int64("cartId", cartID).Msg("failed to touch cart")
	}
}

// ApplyCouponInput defines the JSON for POST /cart/coupon.
type ApplyCouponInput struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon is the handler for POST /cart/coupon. This is a preview
// application: it validates and stores the coupon on the cart but does
// NOT record a redemption; only checkout consumes the coupon.
func (h *Handlers) ApplyCoupon(c *gin.Context) {
	userID := currentUserID(c)

	var input ApplyCouponInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	cart, err := h.getOrCreateCart(h.DB, userID)
	if err != nil {
		serverError(c, "Failed to load cart")
		return
	}

	items, err := h.loadCartItems(h.DB, cart.ID)
	if err != nil {
		serverError(c, "Failed to load cart items")
		return
	}
	if len(items) == 0 {
		fail(c, http.StatusBadRequest, "Cannot apply a coupon to an empty cart")
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

	orderAmount := merchandiseTotal(items)
	couponItems, err := h.couponItemsFor(items)
	if err != nil {
		serverError(c, "Failed to check coupon eligibility")
		return
	}

	usageCount, err := h.countCouponUsage(h.DB, coupon.ID, userID)
	if err != nil {
		serverError(c, "Failed to check coupon usage")
		return
	}

	if err := coupon.ValidateForOrder(time.Now(), userID, orderAmount, couponItems, usageCount); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	discount := coupon.CalculateDiscount(orderAmount)

	_, err = h.DB.Exec(
		"UPDATE carts SET coupon_code = ?, coupon_discount = ?, coupon_type = ?, updated_at = ? WHERE id = ?",
		coupon.Code, discount, coupon.DiscountType, time.Now(), cart.ID,
	)
	if err != nil {
		serverError(c, "Failed to apply coupon")
		return
	}

	cart.CouponCode = &coupon.Code
	cart.CouponDiscount = discount
	cart.CouponType = &coupon.DiscountType
	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// RemoveCoupon is the handler for DELETE /cart/coupon.
func (h *Handlers) RemoveCoupon(c *gin.Context) {
	userID := currentUserID(c)

	cart, err := h.findCart(h.DB, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Cart not found")
			return
		}
		serverError(c, "Failed to load cart")
		return
	}

	_, err = h.DB.Exec(
		"UPDATE carts SET coupon_code = NULL, coupon_discount = 0, coupon_type = NULL, updated_at = ? WHERE id = ?",
		time.Now(), cart.ID,
	)
	if err != nil {
		serverError(c, "Failed to remove coupon")
		return
	}

	cart.CouponCode = nil
	cart.CouponDiscount = 0
	cart.CouponType = nil
	h.respondCartSnapshot(c, http.StatusOK, cart)
}

// merchandiseTotal is the amount coupons are validated against:
// the payable item total before coupon and shipping.
func merchandiseTotal(items []models.CartItem) float64 {
	totals := models.ComputeCartTotals(items, 0, 0)
	return totals.Subtotal - totals.ItemSavings
}

// couponItemsFor resolves each line's category for eligibility checks.
func (h *Handlers) couponItemsFor(items []models.CartItem) ([]models.CouponItem, error) {
	out := make([]models.CouponItem, 0, len(items))
	for _, item := range items {
		ci := models.CouponItem{BookID: item.BookID}
		err := h.DB.QueryRow("SELECT category FROM books WHERE id = ?", item.BookID).Scan(&ci.Category)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, nil
}
