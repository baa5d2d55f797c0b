package handlers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var bookRowColumns = []string{
	"id", "title", "author", "cover_image", "price", "original_price", "discount_percent",
	"stock_quantity", "category", "is_active", "created_at", "updated_at",
}

func TestAddToCartRejectsOverCap(t *testing.T) {
	h, mock := newMockHandlers(t)

	now := time.Now()
	mock.ExpectQuery("FROM books WHERE id").
		WillReturnRows(sqlmock.NewRows(bookRowColumns).
			AddRow(5, "Paperback", "A. Author", "", 50.0, 50.0, 0.0, 10, "fiction", true, now, now))
	mock.ExpectQuery("FROM carts WHERE user_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "coupon_code", "coupon_discount", "coupon_type", "created_at", "updated_at"}).
			AddRow(10, 1, nil, 0.0, nil, now, now))
	mock.ExpectQuery("SELECT quantity FROM cart_items").
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}).AddRow(60))

	c, w := newJSONContext(t, "POST", "/cart/add", `{"bookId": 5, "quantity": 50}`)
	c.Set("userID", int64(1))

	h.AddToCart(c)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "100 copies")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToCartUpsertClampsQuantity(t *testing.T) {
	h, mock := newMockHandlers(t)

	now := time.Now()
	mock.ExpectQuery("FROM books WHERE id").
		WillReturnRows(sqlmock.NewRows(bookRowColumns).
			AddRow(5, "Paperback", "A. Author", "", 50.0, 50.0, 0.0, 10, "fiction", true, now, now))
	mock.ExpectQuery("FROM carts WHERE user_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "coupon_code", "coupon_discount", "coupon_type", "created_at", "updated_at"}).
			AddRow(10, 1, nil, 0.0, nil, now, now))
	mock.ExpectQuery("SELECT quantity FROM cart_items").
		WillReturnRows(sqlmock.NewRows([]string{"quantity"}))

	// The upsert must carry the LEAST clamp so two concurrent adds that
	// both passed the read check cannot push the line past the bound.
	mock.ExpectExec("ON DUPLICATE KEY UPDATE\\s+quantity = LEAST\\(quantity \\+ VALUES\\(quantity\\), 100\\)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE carts SET updated_at").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM cart_items\\s+WHERE cart_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "book_id", "quantity", "price", "original_price", "discount_percent", "added_at"}).
			AddRow(100, 10, 5, 2, 50.0, 50.0, 0.0, now))
	mock.ExpectQuery("SELECT title, author, cover_image FROM books").
		WillReturnRows(sqlmock.NewRows([]string{"title", "author", "cover_image"}).
			AddRow("Paperback", "A. Author", ""))

	c, w := newJSONContext(t, "POST", "/cart/add", `{"bookId": 5, "quantity": 2}`)
	c.Set("userID", int64(1))

	h.AddToCart(c)

	assert.Equal(t, 200, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
