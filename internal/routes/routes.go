package routes

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/handlers"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/middleware"
)

// CORSMiddleware tells the browser which frontend origin may call us.
func CORSMiddleware() gin.HandlerFunc {
	allowedOrigin := os.Getenv("CORS_ORIGIN")
	if allowedOrigin == "" {
		allowedOrigin = "http://localhost:5173"
	}

	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-Affiliate-Code, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// Preflight OPTIONS requests get an empty 204.
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func SetupRouter(h *handlers.Handlers) *gin.Engine {
	router := gin.Default()

	// CORS must run before anything else.
	router.Use(CORSMiddleware())

	// --- Ping Route (Public) ---
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong!"})
	})

	// --- Auth Routes (Public) ---
	router.POST("/auth/register", h.Register)
	router.POST("/auth/login", h.Login)

	// --- Public Catalog Routes ---
	router.GET("/books", h.ListBooks)
	router.GET("/books/:id", h.GetBook)

	// --- Public Coupon Listing ---
	router.GET("/coupons", h.ListPublicCoupons)

	// --- Protected Routes (Login Required) ---
	auth := router.Group("/")
	auth.Use(middleware.AuthMiddleware())
	{
		// Cart
		auth.GET("/cart", h.GetCart)
		auth.POST("/cart/add", h.AddToCart)
		auth.PUT("/cart/items/:bookId", h.UpdateCartItem)
		auth.DELETE("/cart/items/:bookId", h.RemoveCartItem)
		auth.DELETE("/cart", h.ClearCart)
		auth.POST("/cart/coupon", h.ApplyCoupon)
		auth.DELETE("/cart/coupon", h.RemoveCoupon)

		// Coupons
		auth.POST("/coupons/validate", h.ValidateCoupon)

		// Orders
		auth.POST("/orders", h.CreateOrder)
		auth.GET("/orders", h.GetMyOrders)
		auth.GET("/orders/:id", h.GetOrderDetails)

		// Affiliate
		auth.POST("/affiliate/register", h.RegisterAffiliate)
		auth.GET("/affiliate/me", h.GetAffiliateStats)
	}

	// --- Admin-Only Routes ---
	admin := router.Group("/")
	admin.Use(middleware.AuthMiddleware())
	admin.Use(middleware.AdminMiddleware(h.DB))
	{
		// Catalog management
		admin.POST("/admin/books", h.CreateBook)
		admin.PUT("/admin/books/:id", h.UpdateBook)
		admin.DELETE("/admin/books/:id", h.DeleteBook)

		// Coupon management
		admin.GET("/admin/coupons", h.ListAllCoupons)
		admin.POST("/admin/coupons", h.CreateCoupon)
		admin.PUT("/admin/coupons/:id", h.UpdateCoupon)
		admin.DELETE("/admin/coupons/:id", h.DeleteCoupon)

		// Order administration
		admin.GET("/order-admin/orders", h.AdminListOrders)
		admin.PUT("/order-admin/:orderId/status", h.UpdateOrderStatus)
		admin.PUT("/order-admin/:orderId/items/:itemId/fulfill", h.FulfillOrderItem)
		admin.PUT("/order-admin/:orderId/items/:itemId/refund", h.RefundOrderItem)
		admin.PUT("/order-admin/:orderId/items/:itemId/request-payment", h.RequestExtraPayment)
	}

	return router
}
