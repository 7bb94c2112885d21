package models

import "time"

// User represents a registered account
type User struct {
	ID           int64  `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Role         string `db:"role" json:"role"`
}

// Category groups products in the catalog
type Category struct {
	ID          int64  `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description"`
}

// Product represents a catalog item with stock bookkeeping.
// RemainingUnits only ever decreases and never goes below zero.
type Product struct {
	ID             int64   `db:"id" json:"id"`
	Name           string  `db:"name" json:"name"`
	Description    string  `db:"description" json:"description"`
	Price          float64 `db:"price" json:"price"`
	CategoryID     int64   `db:"category_id" json:"category_id"`
	TotalUnits     int     `db:"total_units" json:"total_units"`
	RemainingUnits int     `db:"remaining_units" json:"remaining_units"`
}

// StockStatus derives the display value from remaining units
func (p *Product) StockStatus() string {
	if p.RemainingUnits == 0 {
		return StockStatusOut
	}
	return StockStatusAvailable
}

// Cart holds a user's line items. A cart is either active (mutable) or
// checked out (immutable). The snapshot cart created at checkout is
// checked out from birth.
type Cart struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	IsCheckedOut bool      `db:"is_checked_out" json:"is_checked_out"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// CartItem is a (cart, product, quantity) line. Repeated adds of the same
// product create separate rows; quantities are never merged.
type CartItem struct {
	ID        int64 `db:"id" json:"id"`
	CartID    int64 `db:"cart_id" json:"cart_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
}

// CartItemDetail is a cart line joined with its product
type CartItemDetail struct {
	ProductID int64   `db:"product_id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Price     float64 `db:"price" json:"price"`
	Quantity  int     `db:"quantity" json:"quantity"`
}

// Order references the snapshot cart created at checkout. Immutable once
// created except for status transitions.
type Order struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	CartID         int64     `db:"cart_id" json:"cart_id"`
	TotalAmount    float64   `db:"total_amount" json:"total_amount"`
	OrderStatus    string    `db:"order_status" json:"order_status"`
	OrderTime      time.Time `db:"order_time" json:"order_time"`
	IdempotencyKey *string   `db:"idempotency_key" json:"idempotency_key,omitempty"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
)

// Stock statuses
const (
	StockStatusAvailable = "Available"
	StockStatusOut       = "Out of Stock"
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
