package middleware

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminMiddleware must run AFTER AuthMiddleware. It reads the userID
// from the context, checks the 'is_admin' flag in the DB, and rejects
// non-admins with 403.
func AdminMiddleware(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Get userID from AuthMiddleware
		userIDRaw, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "User ID not found in context (AuthMiddleware must run first)"})
			c.Abort()
			return
		}
		userID := userIDRaw.(int64)

		// 2. Query DB for the admin flag
		var isAdmin bool
		err := db.QueryRow("SELECT is_admin FROM users WHERE id = ?", userID).Scan(&isAdmin)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid user"})
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error checking role"})
			}
			c.Abort()
			return
		}

		// 3. Check permission
		if !isAdmin {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Access denied: admin role required"})
			c.Abort()
			return
		}

		c.Set("isAdmin", true)
		c.Next()
	}
}
