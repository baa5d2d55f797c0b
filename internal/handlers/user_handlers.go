package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/auth"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Auth Handlers ---
//

// RegisterUserInput holds the *input* from the user. This is separate
// from models.User so a client cannot set 'id' or 'isAdmin'.
type RegisterUserInput struct {
	FullName string `json:"fullName" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Register is the handler for POST /auth/register.
func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input RegisterUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// 2. --- Hash the Password ---
	var password models.Password
	if err := password.Set(input.Password); err != nil {
		serverError(c, "Failed to hash password")
		return
	}

	// 3. --- Save to Database ---
	now := time.Now()
	query := `
		INSERT INTO users (email, password_hash, full_name, is_admin, commission_rate, total_earnings, created_at, updated_at)
		VALUES (?, ?, ?, FALSE, 0, 0, ?, ?)`
	result, err := h.DB.Exec(query, input.Email, password.Hash, input.FullName, now, now)
	if err != nil {
		// Unique index on email makes duplicates a clean 400.
		if mysqlErr, ok := err.(*mysql.MySQLError); ok && mysqlErr.Number == 1062 {
			fail(c, http.StatusBadRequest, "An account with this email already exists")
			return
		}
		serverError(c, "Failed to create account")
		return
	}
	userID, err := result.LastInsertId()
	if err != nil {
		serverError(c, "Failed to create account")
		return
	}

	// 4. --- Issue Token & Respond ---
	token, err := auth.GenerateToken(userID)
	if err != nil {
		serverError(c, "Account created but token generation failed")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":       userID,
			"email":    input.Email,
			"fullName": input.FullName,
		},
	})
}

// LoginInput defines the JSON for POST /auth/login.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login is the handler for POST /auth/login.
func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	// 2. --- Look Up User ---
	var user models.User
	query := "SELECT id, email, password_hash, full_name, is_admin FROM users WHERE email = ?"
	err := h.DB.QueryRow(query, input.Email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.FullName, &user.IsAdmin,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			// Same message as a bad password, so emails can't be probed.
			fail(c, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		serverError(c, "Failed to look up account")
		return
	}

	// 3. --- Verify Password ---
	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		serverError(c, "Failed to verify password")
		return
	}
	if !match {
		fail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	// 4. --- Issue Token ---
	token, err := auth.GenerateToken(user.ID)
	if err != nil {
		serverError(c, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    user,
	})
}
