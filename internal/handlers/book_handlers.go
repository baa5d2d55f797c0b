package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shawrani714-max/bookstore-store-sub000/internal/models"
)

//
// --- Catalog Handlers ---
//
// The storefront core only needs the catalog as a lookup collaborator
// (snapshotting cart/order lines), so these handlers stay thin CRUD.
//

const (
	bookCacheTTL    = 5 * time.Minute
	bookCachePrefix = "book:"
)

const bookColumns = `id, title, author, cover_image, price, original_price, discount_percent, stock_quantity, category, is_active, created_at, updated_at`

func scanBook(row *sql.Row) (*models.Book, error) {
	var b models.Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.CoverImage, &b.Price, &b.OriginalPrice,
		&b.DiscountPercent, &b.StockQuantity, &b.Category, &b.IsActive,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// findBookByID loads an active book, consulting the cache first.
// Admin handlers bypass this and hit the DB directly.
func (h *Handlers) findBookByID(ctx context.Context, q Querier, bookID int64) (*models.Book, error) {
	cacheKey := bookCachePrefix + strconv.FormatInt(bookID, 10)

	var cached models.Book
	if h.Cache != nil && h.Cache.GetJSON(ctx, cacheKey, &cached) && cached.ID == bookID {
		return &cached, nil
	}

	row := q.QueryRow("SELECT "+bookColumns+" FROM books WHERE id = ? AND is_active = TRUE", bookID)
	book, err := scanBook(row)
	if err != nil {
		return nil, err
	}

	if h.Cache != nil {
		h.Cache.SetJSON(ctx, cacheKey, book, bookCacheTTL)
	}
	return book, nil
}

// ListBooks is the handler for GET /books.
func (h *Handlers) ListBooks(c *gin.Context) {
	query := "SELECT " + bookColumns + " FROM books WHERE is_active = TRUE"
	args := []interface{}{}

	// Optional category filter: GET /books?category=fiction
	if category := c.Query("category"); category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC"

	rows, err := h.DB.Query(query, args...)
	if err != nil {
		serverError(c, "Failed to fetch books")
		return
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(
			&b.ID, &b.Title, &b.Author, &b.CoverImage, &b.Price, &b.OriginalPrice,
			&b.DiscountPercent, &b.StockQuantity, &b.Category, &b.IsActive,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			serverError(c, "Failed to scan book")
			return
		}
		books = append(books, b)
	}
	if err = rows.Err(); err != nil {
		serverError(c, "Error iterating books")
		return
	}

	if books == nil {
		books = []models.Book{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "books": books})
}

// GetBook is the handler for GET /books/:id.
func (h *Handlers) GetBook(c *gin.Context) {
	bookID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	book, err := h.findBookByID(c, h.DB, bookID)
	if err != nil {
		if err == sql.ErrNoRows {
			fail(c, http.StatusNotFound, "Book not found")
			return
		}
		serverError(c, "Failed to fetch book")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "book": book})
}

// BookInput defines the JSON for the admin create/update endpoints.
type BookInput struct {
	Title           string  `json:"title" binding:"required"`
	Author          string  `json:"author" binding:"required"`
	CoverImage      string  `json:"coverImage"`
	Price           float64 `json:"price" binding:"required,gt=0"`
	OriginalPrice   float64 `json:"originalPrice" binding:"omitempty,gte=0"`
	DiscountPercent float64 `json:"discountPercent" binding:"omitempty,gte=0,lte=100"`
	StockQuantity   int     `json:"stockQuantity" binding:"omitempty,gte=0"`
	Category        string  `json:"category" binding:"required"`
}

// CreateBook is the handler for POST /admin/books.
func (h *Handlers) CreateBook(c *gin.Context) {
	var input BookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if input.OriginalPrice == 0 {
		input.OriginalPrice = input.Price
	}

	now := time.Now()
	query := `
		INSERT INTO books (title, author, cover_image, price, original_price, discount_percent, stock_quantity, category, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, TRUE, ?, ?)`
	result, err := h.DB.Exec(query,
		input.Title, input.Author, input.CoverImage, input.Price, input.OriginalPrice,
		input.DiscountPercent, input.StockQuantity, input.Category, now, now,
	)
	if err != nil {
		serverError(c, "Failed to create book")
		return
	}
	bookID, _ := result.LastInsertId()

	c.JSON(http.StatusCreated, gin.H{"success": true, "bookId": bookID})
}

// UpdateBook is the handler for PUT /admin/books/:id.
func (h *Handlers) UpdateBook(c *gin.Context) {
	bookID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	var input BookInput
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.OriginalPrice == 0 {
		input.OriginalPrice = input.Price
	}

	query := `
		UPDATE books
		SET title = ?, author = ?, cover_image = ?, price = ?, original_price = ?,
		    discount_percent = ?, stock_quantity = ?, category = ?, updated_at = ?
		WHERE id = ?`
	result, err := h.DB.Exec(query,
		input.Title, input.Author, input.CoverImage, input.Price, input.OriginalPrice,
		input.DiscountPercent, input.StockQuantity, input.Category, time.Now(), bookID,
	)
	if err != nil {
		serverError(c, "Failed to update book")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Book not found")
		return
	}

	// The cached copy is stale now.
	if h.Cache != nil {
		h.Cache.Delete(c, bookCachePrefix+c.Param("id"))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Book updated"})
}

// DeleteBook is the handler for DELETE /admin/books/:id.
// Books referenced by order snapshots must survive, so this is a soft
// deactivate, never a hard delete.
func (h *Handlers) DeleteBook(c *gin.Context) {
	bookID, ok := paramInt64(c, "id")
	if !ok {
		return
	}

	result, err := h.DB.Exec("UPDATE books SET is_active = FALSE, updated_at = ? WHERE id = ?", time.Now(), bookID)
	if err != nil {
		serverError(c, "Failed to delete book")
		return
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		fail(c, http.StatusNotFound, "Book not found")
		return
	}

	if h.Cache != nil {
		h.Cache.Delete(c, bookCachePrefix+c.Param("id"))
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Book removed from catalog"})
}
