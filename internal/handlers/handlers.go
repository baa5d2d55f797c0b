package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/cache"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/email"
)

// Handlers struct holds all dependencies for our handlers.
// Everything is constructed in main and injected; there are no
// package-level singletons.
type Handlers struct {
	DB     *sql.DB
	Cache  *cache.Cache
	Mailer *email.Mailer
	Logger zerolog.Logger

	// ShippingFlatRate is the flat shipping fee added to every order.
	// A free_shipping coupon waives it.
	ShippingFlatRate float64
}

// Querier is the common interface of *sql.DB and *sql.Tx, so read
// helpers can run inside or outside a transaction.
type Querier interface {
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// fail sends the uniform error body used by every endpoint.
func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// serverError hides internals behind a generic 500.
func serverError(c *gin.Context, message string) {
	fail(c, http.StatusInternalServerError, message)
}

// currentUserID reads the authenticated user set by AuthMiddleware.
func currentUserID(c *gin.Context) int64 {
	userIDRaw, _ := c.Get("userID")
	return userIDRaw.(int64)
}

// paramInt64 parses a numeric path parameter, replying 400 itself when
// the value is garbage. The bool tells the caller whether to continue.
func paramInt64(c *gin.Context, name string) (int64, bool) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}
