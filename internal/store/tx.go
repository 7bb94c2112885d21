package store

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// Txn is the set of operations available inside a checkout transaction.
// Implementations must keep every call on the same database transaction so
// the whole checkout commits or rolls back as one unit.
type Txn interface {
	// GetCartForUpdate locks and returns a cart row, nil if absent
	GetCartForUpdate(ctx context.Context, cartID int64) (*models.Cart, error)
	// GetCartItems returns the raw line items of a cart
	GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error)
	// GetProductForUpdate locks and returns a product row, nil if absent.
	// The lock serializes concurrent checkouts touching the same product.
	GetProductForUpdate(ctx context.Context, productID int64) (*models.Product, error)
	// ReserveStock decrements remaining_units by qty. Returns ok=false
	// without modifying the row when fewer than qty units remain.
	ReserveStock(ctx context.Context, productID int64, qty int) (remaining int, ok bool, err error)
	// CreateCart inserts a cart and fills its ID and CreatedAt
	CreateCart(ctx context.Context, cart *models.Cart) error
	// CreateCartItem inserts a cart line item
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	// MarkCartCheckedOut retires a cart
	MarkCartCheckedOut(ctx context.Context, cartID int64) error
	// CreateOrder inserts an order and fills its ID and OrderTime
	CreateOrder(ctx context.Context, order *models.Order) error
}

// InTx runs fn inside a single database transaction. Any error from fn
// rolls back everything fn did.
func (s *Store) InTx(ctx context.Context, fn func(tx Txn) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type storeTx struct {
	tx *sqlx.Tx
}

func (t *storeTx) GetCartForUpdate(ctx context.Context, cartID int64) (*models.Cart, error) {
	var cart models.Cart
	err := t.tx.GetContext(ctx, &cart,
		"SELECT * FROM carts WHERE id = $1 FOR UPDATE", cartID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart: %w", err)
	}
	return &cart, nil
}

func (t *storeTx) GetCartItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	err := t.tx.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE cart_id = $1 ORDER BY id", cartID)
	return items, err
}

func (t *storeTx) GetProductForUpdate(ctx context.Context, productID int64) (*models.Product, error) {
	var product models.Product
	err := t.tx.GetContext(ctx, &product,
		"SELECT * FROM products WHERE id = $1 FOR UPDATE", productID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}
	return &product, nil
}

func (t *storeTx) ReserveStock(ctx context.Context, productID int64, qty int) (int, bool, error) {
	// Guarded decrement: the WHERE clause keeps remaining_units from ever
	// going negative even if the caller skipped the pre-check.
	var remaining int
	err := t.tx.GetContext(ctx, &remaining, `
		UPDATE products
		SET remaining_units = remaining_units - $1
		WHERE id = $2 AND remaining_units >= $1
		RETURNING remaining_units`,
		qty, productID)
	if err == sql.ErrNoRows {
		var current int
		if err := t.tx.GetContext(ctx, &current,
			"SELECT remaining_units FROM products WHERE id = $1", productID); err != nil {
			return 0, false, fmt.Errorf("failed to read remaining stock: %w", err)
		}
		return current, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to reserve stock: %w", err)
	}
	return remaining, true, nil
}

func (t *storeTx) CreateCart(ctx context.Context, cart *models.Cart) error {
	query := `
		INSERT INTO carts (user_id, is_checked_out)
		VALUES ($1, $2)
		RETURNING id, created_at`

	return t.tx.GetContext(ctx, cart, query, cart.UserID, cart.IsCheckedOut)
}

func (t *storeTx) CreateCartItem(ctx context.Context, item *models.CartItem) error {
	query := `
		INSERT INTO cart_items (cart_id, product_id, quantity)
		VALUES ($1, $2, $3)
		RETURNING id`

	return t.tx.GetContext(ctx, &item.ID, query,
		item.CartID, item.ProductID, item.Quantity)
}

func (t *storeTx) MarkCartCheckedOut(ctx context.Context, cartID int64) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE carts SET is_checked_out = TRUE WHERE id = $1", cartID)
	return err
}

func (t *storeTx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, cart_id, total_amount, order_status, idempotency_key)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, order_time`

	return t.tx.GetContext(ctx, order, query,
		order.UserID, order.CartID, order.TotalAmount,
		order.OrderStatus, order.IdempotencyKey)
}
