package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return &Handlers{
		DB:     db,
		Mailer: email.NewMailer(email.Config{}, zerolog.Nop()),
		Logger: zerolog.Nop(),
	}, mock
}

func newJSONContext(t *testing.T, method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

var orderColumnNames = []string{
	"id", "order_number", "user_id", "status", "subtotal", "coupon_code", "coupon_discount",
	"shipping_cost", "total", "shipping_address", "payment_method", "tracking", "affiliate_code",
	"created_at", "updated_at",
}

var orderItemColumnNames = []string{
	"id", "order_id", "book_id", "title", "author", "cover_image", "price", "original_price",
	"quantity", "status", "payment_status", "refund_amount", "extra_payment_requested",
	"created_at", "updated_at",
}

func TestCreateOrderRejectsDeactivatedBook(t *testing.T) {
	h, mock := newMockHandlers(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM carts WHERE user_id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "coupon_code", "coupon_discount", "coupon_type", "created_at", "updated_at"}).
			AddRow(10, 1, nil, 0.0, nil, now, now))
	mock.ExpectQuery("FROM cart_items ci").
		WillReturnRows(sqlmock.NewRows([]string{"book_id", "quantity", "price", "original_price", "title", "author", "cover_image", "is_active"}).
			AddRow(5, 2, 120.0, 120.0, "In Print", "A. Author", "", true).
			AddRow(6, 1, 80.0, 80.0, "Out Of Catalog", "B. Author", "", false))
	mock.ExpectRollback()

	c, w := newJSONContext(t, "POST", "/orders", `{
		"shippingAddress": {"fullName": "Pat Reader", "line1": "1 Shelf St", "city": "Booktown", "postcode": "12345"},
		"paymentMethod": "cod"
	}`)
	c.Set("userID", int64(1))

	h.CreateOrder(c)

	assert.Equal(t, 400, w.Code)
	assert.Contains(t, w.Body.String(), "Out Of Catalog")
	assert.Contains(t, w.Body.String(), "no longer available")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrderDetailsReadsItemSnapshots(t *testing.T) {
	h, mock := newMockHandlers(t)

	// The item row carries a stale title and price on purpose: the
	// response must serve the frozen snapshot, never a live book read.
	now := time.Now()
	mock.ExpectQuery("FROM orders\\s+WHERE id = (.+) AND user_id").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(3, "ORD1748779200000123", 7, "pending", 99.0, nil, 0.0, 0.0, 99.0, "{}", "cod", nil, nil, now, now))
	mock.ExpectQuery("FROM order_items").
		WillReturnRows(sqlmock.NewRows(orderItemColumnNames).
			AddRow(30, 3, 5, "Title At Purchase Time", "A. Author", "", 99.0, 99.0, 1, "pending", "pending", nil, nil, now, now))

	c, w := newJSONContext(t, "GET", "/orders/3", "")
	c.Set("userID", int64(7))
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	h.GetOrderDetails(c)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "Title At Purchase Time")
	assert.NoError(t, mock.ExpectationsWereMet())
}
