package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/util"

	"go.uber.org/zap"
)

// CartStore is the persistence surface for the cart lifecycle
type CartStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	GetCartByID(ctx context.Context, id int64) (*models.Cart, error)
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateCartItem(ctx context.Context, item *models.CartItem) error
	GetActiveCartByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	GetCartsByUserID(ctx context.Context, userID int64) ([]models.Cart, error)
	GetCartItemDetails(ctx context.Context, cartID int64) ([]models.CartItemDetail, error)
}

// CartService manages active carts and their line items
type CartService struct {
	store  CartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore) *CartService {
	return &CartService{store: store, logger: util.GetLogger()}
}

// CartLine is one requested (product, quantity) pair
type CartLine struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateCartRequest represents the cart creation payload
type CreateCartRequest struct {
	UserID   int64      `json:"user_id" binding:"required"`
	Products []CartLine `json:"products"`
}

// CartView is a cart with its line items joined to products
type CartView struct {
	ID           int64                   `json:"id"`
	UserID       int64                   `json:"user_id"`
	IsCheckedOut bool                    `json:"is_checked_out"`
	CreatedAt    time.Time               `json:"created_at"`
	Products     []models.CartItemDetail `json:"products"`
}

// CreateCart creates a new empty active cart for an existing user
func (s *CartService) CreateCart(ctx context.Context, userID int64) (*models.Cart, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	cart := &models.Cart{UserID: userID}
	if err := s.store.CreateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	s.logger.Info("Cart created",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("user_id", userID))
	return cart, nil
}

// AddItems appends one line item per requested line. The stock check here
// is a pre-check only; nothing is reserved until checkout. Repeated adds of
// the same product create separate rows.
func (s *CartService) AddItems(ctx context.Context, cartID int64, lines []CartLine) error {
	cart, err := s.store.GetCartByID(ctx, cartID)
	if err != nil {
		return fmt.Errorf("failed to look up cart: %w", err)
	}
	if cart == nil {
		return ErrCartNotFound
	}
	if cart.IsCheckedOut {
		return ErrAlreadyCheckedOut
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
		}
		ids = append(ids, line.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to look up products: %w", err)
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	for _, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return fmt.Errorf("%w: product %d", ErrProductNotFound, line.ProductID)
		}
		if line.Quantity > product.RemainingUnits {
			return &InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Remaining:   product.RemainingUnits,
			}
		}
	}

	for _, line := range lines {
		item := &models.CartItem{
			CartID:    cartID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		}
		if err := s.store.CreateCartItem(ctx, item); err != nil {
			return fmt.Errorf("failed to add cart item: %w", err)
		}
	}

	return nil
}

// Create builds a new cart and fills it in one call
func (s *CartService) Create(ctx context.Context, req *CreateCartRequest) (*CartView, error) {
	cart, err := s.CreateCart(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if len(req.Products) > 0 {
		if err := s.AddItems(ctx, cart.ID, req.Products); err != nil {
			return nil, err
		}
	}

	return s.view(ctx, cart)
}

// GetActiveCart returns the user's most recently created cart that has not
// been checked out
func (s *CartService) GetActiveCart(ctx context.Context, userID int64) (*CartView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	cart, err := s.store.GetActiveCartByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, ErrNoActiveCart
	}
	return s.view(ctx, cart)
}

// GetCartsForUser returns all carts for a user, active and finalized
func (s *CartService) GetCartsForUser(ctx context.Context, userID int64) ([]CartView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	carts, err := s.store.GetCartsByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]CartView, 0, len(carts))
	for i := range carts {
		view, err := s.view(ctx, &carts[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *CartService) view(ctx context.Context, cart *models.Cart) (*CartView, error) {
	items, err := s.store.GetCartItemDetails(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if items == nil {
		items = []models.CartItemDetail{}
	}
	return &CartView{
		ID:           cart.ID,
		UserID:       cart.UserID,
		IsCheckedOut: cart.IsCheckedOut,
		CreatedAt:    cart.CreatedAt,
		Products:     items,
	}, nil
}
