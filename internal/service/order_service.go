package service

import (
	"context"
	"fmt"
	"time"

	"shop-service/internal/models"
)

// OrderQueryStore is the persistence surface for order projections
type OrderQueryStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetOrders(ctx context.Context, status string) ([]models.Order, error)
	GetLatestOrderByStatus(ctx context.Context, status string) (*models.Order, error)
	GetLatestOrderByUserID(ctx context.Context, userID int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
	GetCartItemDetails(ctx context.Context, cartID int64) ([]models.CartItemDetail, error)
}

// OrderService serves read-only order projections. All mutation goes
// through CheckoutService.
type OrderService struct {
	store OrderQueryStore
}

// NewOrderService creates a new order query service
func NewOrderService(store OrderQueryStore) *OrderService {
	return &OrderService{store: store}
}

// OrderView is an order row with the owner's email attached
type OrderView struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	CartID      int64     `json:"cart_id"`
	TotalAmount float64   `json:"total_amount"`
	OrderStatus string    `json:"order_status"`
	OrderTime   time.Time `json:"order_time"`
	UserEmail   string    `json:"user_email,omitempty"`
}

// OrderDetail is an order with the snapshot cart's line items
type OrderDetail struct {
	OrderID     int64                   `json:"order_id"`
	CartID      int64                   `json:"cart_id"`
	TotalAmount float64                 `json:"total_amount"`
	OrderStatus string                  `json:"order_status"`
	OrderTime   time.Time               `json:"order_time"`
	Products    []models.CartItemDetail `json:"products"`
}

// Latest returns the most recent order with the given status
func (s *OrderService) Latest(ctx context.Context, status string) (*OrderView, error) {
	order, err := s.store.GetLatestOrderByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.view(ctx, order)
}

// List returns all orders, optionally filtered by status, newest first
func (s *OrderService) List(ctx context.Context, status string) ([]OrderView, error) {
	orders, err := s.store.GetOrders(ctx, status)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		view, err := s.view(ctx, &orders[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// ListForUser returns a user's order history, newest first
func (s *OrderService) ListForUser(ctx context.Context, userID int64) ([]OrderView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	orders, err := s.store.GetOrdersByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		view := OrderView{
			ID:          orders[i].ID,
			UserID:      orders[i].UserID,
			CartID:      orders[i].CartID,
			TotalAmount: orders[i].TotalAmount,
			OrderStatus: orders[i].OrderStatus,
			OrderTime:   orders[i].OrderTime,
			UserEmail:   user.Email,
		}
		views = append(views, view)
	}
	return views, nil
}

// DetailsForUser returns the user's most recent order with the snapshot
// cart's line items
func (s *OrderService) DetailsForUser(ctx context.Context, userID int64) (*OrderDetail, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	order, err := s.store.GetLatestOrderByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	products, err := s.store.GetCartItemDetails(ctx, order.CartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	if products == nil {
		products = []models.CartItemDetail{}
	}

	return &OrderDetail{
		OrderID:     order.ID,
		CartID:      order.CartID,
		TotalAmount: order.TotalAmount,
		OrderStatus: order.OrderStatus,
		OrderTime:   order.OrderTime,
		Products:    products,
	}, nil
}

func (s *OrderService) view(ctx context.Context, order *models.Order) (*OrderView, error) {
	view := &OrderView{
		ID:          order.ID,
		UserID:      order.UserID,
		CartID:      order.CartID,
		TotalAmount: order.TotalAmount,
		OrderStatus: order.OrderStatus,
		OrderTime:   order.OrderTime,
	}
	user, err := s.store.GetUserByID(ctx, order.UserID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		view.UserEmail = user.Email
	}
	return view, nil
}
