package models

import "time"

// Book is the model for the 'books' table.
// Price is the selling price; OriginalPrice is the list price used to
// show per-item savings in the cart and order snapshots.
type Book struct {
	ID              int64     `json:"id" db:"id"`
	Title           string    `json:"title" db:"title"`
	Author          string    `json:"author" db:"author"`
	CoverImage      string    `json:"coverImage" db:"cover_image"`
	Price           float64   `json:"price" db:"price"`
	OriginalPrice   float64   `json:"originalPrice" db:"original_price"`
	DiscountPercent float64   `json:"discountPercent" db:"discount_percent"`
	StockQuantity   int       `json:"stockQuantity" db:"stock_quantity"`
	Category        string    `json:"category" db:"category"`
	IsActive        bool      `json:"isActive" db:"is_active"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}
