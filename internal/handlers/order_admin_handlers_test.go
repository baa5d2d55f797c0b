package handlers

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFulfillOrderItemIdempotent(t *testing.T) {
	h, mock := newMockHandlers(t)

	now := time.Now()
	itemRow := func() *sqlmock.Rows {
		return sqlmock.NewRows(orderItemColumnNames).
			AddRow(30, 3, 5, "Paperback", "A. Author", "", 50.0, 50.0, 1, "fulfilled", "paid", nil, nil, now, now)
	}

	// The item is already fulfilled; a second fulfill call overwrites
	// the same state and still reports success.
	mock.ExpectQuery("FROM orders\\s+WHERE id").
		WillReturnRows(sqlmock.NewRows(orderColumnNames).
			AddRow(3, "ORD1748779200000123", 7, "processing", 50.0, nil, 0.0, 0.0, 50.0, "{}", "cod", nil, nil, now, now))
	mock.ExpectQuery("FROM order_items\\s+WHERE id").WillReturnRows(itemRow())
	mock.ExpectExec("UPDATE order_items SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT email FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("pat@example.com"))
	mock.ExpectQuery("FROM order_items\\s+WHERE id").WillReturnRows(itemRow())

	c, w := newJSONContext(t, "PUT", "/order-admin/3/items/30/fulfill", "")
	c.Params = gin.Params{{Key: "orderId", Value: "3"}, {Key: "itemId", Value: "30"}}

	h.FulfillOrderItem(c)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"fulfilled"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
