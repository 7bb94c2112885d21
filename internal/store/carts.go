package store

import (
	"context"
	"database/sql"

	"shop-service/internal/models"
)

// CreateCart inserts a new cart
func (s *Store) CreateCart(ctx context.Context, cart *models.Cart) error {
	query := `
		INSERT INTO carts (user_id, is_checked_out)
		VALUES ($1, $2)
		RETURNING id, created_at`

	return s.db.GetContext(ctx, cart, query, cart.UserID, cart.IsCheckedOut)
}

// CreateCartItem inserts a new cart line item
func (s *Store) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.CartID, item.ProductID, item.Quantity)
}

// GetCartByID retrieves a cart by ID, nil if absent
func (s *Store) GetCartByID(ctx context.Context, id int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, "SELECT * FROM carts WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetActiveCartByUserID retrieves the most recently created cart for a user
// that has not been checked out, nil if none exists
func (s *Store) GetActiveCartByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := s.db.GetContext(ctx, &cart, `
		SELECT * FROM carts
		WHERE user_id = $1 AND is_checked_out = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// GetCartsByUserID retrieves all carts for a user, newest first
func (s *Store) GetCartsByUserID(ctx context.Context, userID int64) ([]models.Cart, error) {
	var carts []models.Cart
	err := s.db.SelectContext(ctx, &carts,
		"SELECT * FROM carts WHERE user_id = $1 ORDER BY created_at DESC, id DESC", userID)
	return carts, err
}

// GetCartItems retrieves the raw line items of a cart
func (s *Store) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	return items, err
}

// GetCartItemDetails retrieves a cart's line items joined with product
// name and price
func (s *Store) GetCartItemDetails(ctx context.Context, cartID int64) ([]models.CartItemDetail, error) {
	var items []models.CartItemDetail
	err := s.db.SelectContext(ctx, &items, `
		SELECT ci.product_id, p.name, p.price, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cartID)
	return items, err
}
