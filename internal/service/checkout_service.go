package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/store"
	"shop-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrCheckoutInProgress is returned when another request is already
// checking out the same cart.
var ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")

// CheckoutStore is the persistence surface for the cart-to-order conversion
type CheckoutStore interface {
	InTx(ctx context.Context, fn func(tx store.Txn) error) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
}

// CheckoutLocker serializes checkout attempts per cart. The database row
// locks are the real guard; this just fails fast on doubled-up requests.
type CheckoutLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// EventPublisher publishes domain events after a checkout commits
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishStockDepleted(ctx context.Context, event *models.StockDepletedEvent) error
}

// CheckoutService converts an active cart into a finalized snapshot cart
// plus an order, reserving stock along the way. The whole conversion runs
// in one database transaction: either every step persists or none do.
type CheckoutService struct {
	store     CheckoutStore
	locker    CheckoutLocker
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCheckoutService creates a new checkout service. locker and publisher
// may be nil (tests, degraded mode).
func NewCheckoutService(store CheckoutStore, locker CheckoutLocker, publisher EventPublisher) *CheckoutService {
	return &CheckoutService{
		store:     store,
		locker:    locker,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest represents the direct order entry point payload
type PlaceOrderRequest struct {
	UserID         int64  `json:"user_id" binding:"required"`
	CartID         int64  `json:"cart_id" binding:"required"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// OrderSummary is the response shape for both checkout entry points
type OrderSummary struct {
	OrderID     int64     `json:"order_id"`
	UserID      int64     `json:"user_id"`
	CartID      int64     `json:"cart_id"`
	TotalAmount float64   `json:"total_amount"`
	OrderStatus string    `json:"order_status"`
	OrderTime   time.Time `json:"order_time"`
}

// Checkout finalizes a cart and creates an order with the given status.
// The cart-checkout route passes "confirmed"; the direct order route
// passes "pending". The resulting status is never hardcoded here.
func (s *CheckoutService) Checkout(ctx context.Context, cartID int64, status string) (*OrderSummary, error) {
	return s.convert(ctx, cartID, status, nil)
}

// PlaceOrder is the alternate checkout entry point. It requires an existing
// user and is idempotent: a repeated key returns the original order.
func (s *CheckoutService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderSummary, error) {
	user, err := s.store.GetUserByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	key := req.IdempotencyKey
	if key == "" {
		key = uuid.New().String()
	} else {
		existing, err := s.store.GetOrderByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			s.logger.Info("Duplicate order request detected",
				zap.String("idempotency_key", key),
				zap.Int64("order_id", existing.ID))
			return orderSummary(existing), nil
		}
	}

	return s.convert(ctx, req.CartID, models.OrderStatusPending, &key)
}

// convert runs the full cart-to-order conversion. Preconditions are checked
// in order inside the transaction; any failure rolls everything back, so a
// failed checkout leaves the cart active and stock untouched.
func (s *CheckoutService) convert(ctx context.Context, cartID int64, status string, idemKey *string) (*OrderSummary, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	if s.locker != nil {
		lockKey := fmt.Sprintf("checkout:cart:%d", cartID)
		acquired, err := s.locker.AcquireLock(ctx, lockKey, 30*time.Second)
		if err != nil {
			s.logger.Warn("Checkout lock unavailable, relying on row locks",
				zap.Int64("cart_id", cartID), zap.Error(err))
		} else if !acquired {
			util.CheckoutsFailedTotal.WithLabelValues("in_progress").Inc()
			return nil, ErrCheckoutInProgress
		} else {
			defer func() {
				if err := s.locker.ReleaseLock(context.Background(), lockKey); err != nil {
					s.logger.Error("Failed to release checkout lock", zap.Error(err))
				}
			}()
		}
	}

	var (
		order    *models.Order
		items    []models.OrderItemData
		depleted []models.StockDepletedEvent
		reserved int
	)

	err := s.store.InTx(ctx, func(tx store.Txn) error {
		cart, err := tx.GetCartForUpdate(ctx, cartID)
		if err != nil {
			return err
		}
		if cart == nil {
			return ErrCartNotFound
		}
		if cart.IsCheckedOut {
			return ErrAlreadyCheckedOut
		}

		lines, err := tx.GetCartItems(ctx, cartID)
		if err != nil {
			return fmt.Errorf("failed to load cart items: %w", err)
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		var total float64
		items = items[:0]
		depleted = depleted[:0]
		reserved = 0
		for _, line := range lines {
			product, err := tx.GetProductForUpdate(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product == nil {
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

			remaining, ok, err := tx.ReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   line.Quantity,
					Remaining:   remaining,
				}
			}

			total += product.Price * float64(line.Quantity)
			reserved += line.Quantity
			items = append(items, models.OrderItemData{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: product.Price,
			})
			if remaining == 0 {
				depleted = append(depleted, models.StockDepletedEvent{
					ProductID:   product.ID,
					ProductName: product.Name,
				})
			}
		}

		// Snapshot cart: checked out from birth, never mutated again.
		snapshot := &models.Cart{UserID: cart.UserID, IsCheckedOut: true}
		if err := tx.CreateCart(ctx, snapshot); err != nil {
			return fmt.Errorf("failed to create snapshot cart: %w", err)
		}
		for _, line := range lines {
			copyItem := &models.CartItem{
				CartID:    snapshot.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			}
			if err := tx.CreateCartItem(ctx, copyItem); err != nil {
				return fmt.Errorf("failed to copy cart item: %w", err)
			}
		}

		// Retire the original cart; it is no longer the user's active cart
		// and it is not the order's cart either.
		if err := tx.MarkCartCheckedOut(ctx, cart.ID); err != nil {
			return fmt.Errorf("failed to retire cart: %w", err)
		}

		order = &models.Order{
			UserID:         cart.UserID,
			CartID:         snapshot.ID,
			TotalAmount:    total,
			OrderStatus:    status,
			IdempotencyKey: idemKey,
		}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		util.CheckoutsFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	util.CheckoutsTotal.Inc()
	util.StockReservedTotal.Add(float64(reserved))
	s.logger.Info("Checkout completed",
		zap.Int64("order_id", order.ID),
		zap.Int64("cart_id", cartID),
		zap.Int64("snapshot_cart_id", order.CartID),
		zap.Float64("total_amount", order.TotalAmount),
		zap.String("order_status", order.OrderStatus))

	s.publishEvents(ctx, order, items, depleted)
	return orderSummary(order), nil
}

// publishEvents emits post-commit events; failures are logged, never
// surfaced, since the order is already durable.
func (s *CheckoutService) publishEvents(ctx context.Context, order *models.Order, items []models.OrderItemData, depleted []models.StockDepletedEvent) {
	if s.publisher == nil {
		return
	}

	placed := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      order.UserID,
		CartID:      order.CartID,
		TotalAmount: order.TotalAmount,
		OrderStatus: order.OrderStatus,
		Items:       items,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, placed); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	for i := range depleted {
		event := depleted[i]
		event.BaseEvent = models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeStockDepleted,
			Timestamp: time.Now(),
		}
		if err := s.publisher.PublishStockDepleted(ctx, &event); err != nil {
			s.logger.Error("Failed to publish StockDepleted event", zap.Error(err))
		}
		util.StockDepletedTotal.Inc()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrCartNotFound), errors.Is(err, ErrProductNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCheckedOut):
		return "already_checked_out"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case IsInsufficientStock(err):
		return "insufficient_stock"
	default:
		return "db_error"
	}
}

func orderSummary(order *models.Order) *OrderSummary {
	return &OrderSummary{
		OrderID:     order.ID,
		UserID:      order.UserID,
		CartID:      order.CartID,
		TotalAmount: order.TotalAmount,
		OrderStatus: order.OrderStatus,
		OrderTime:   order.OrderTime,
	}
}
