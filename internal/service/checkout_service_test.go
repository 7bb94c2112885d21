package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"shop-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckoutSuccess(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	laptop := fs.addProduct("Laptop", 1000, 1, 10)
	mouse := fs.addProduct("Mouse", 25, 1, 4)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, laptop.ID, 2)
	fs.addItem(cart.ID, mouse.ID, 3)

	pub := &capturingPublisher{}
	svc := NewCheckoutService(fs, nil, pub)
	summary, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	assert.Equal(t, user.ID, summary.UserID)
	assert.Equal(t, models.OrderStatusConfirmed, summary.OrderStatus)
	assert.Equal(t, 2*1000.0+3*25.0, summary.TotalAmount)

	// stock decremented by exactly the ordered quantities
	assert.Equal(t, 8, fs.product(laptop.ID).RemainingUnits)
	assert.Equal(t, 1, fs.product(mouse.ID).RemainingUnits)
	assert.True(t, fs.checkStockInvariant())

	// original cart retired, order references a fresh snapshot cart
	assert.True(t, fs.cart(cart.ID).IsCheckedOut)
	assert.NotEqual(t, cart.ID, summary.CartID)
	snapshot := fs.cart(summary.CartID)
	assert.True(t, snapshot.IsCheckedOut)
	assert.Equal(t, user.ID, snapshot.UserID)

	// snapshot items equal the original cart's items
	snapItems, err := fs.GetCartItemDetails(context.Background(), summary.CartID)
	require.NoError(t, err)
	origItems, err := fs.GetCartItemDetails(context.Background(), cart.ID)
	require.NoError(t, err)
	assert.Equal(t, origItems, snapItems)

	require.Len(t, pub.placed, 1)
	assert.Equal(t, summary.OrderID, pub.placed[0].OrderID)
	assert.Len(t, pub.placed[0].Items, 2)
	assert.Empty(t, pub.depleted)
}

func TestCheckoutCartNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := NewCheckoutService(fs, nil, nil)

	_, err := svc.Checkout(context.Background(), 42, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Zero(t, fs.orderCount())
}

func TestCheckoutAlreadyCheckedOut(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 10)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, p.ID, 1)

	svc := NewCheckoutService(fs, nil, nil)
	_, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	before := fs.product(p.ID).RemainingUnits
	orders := fs.orderCount()

	_, err = svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrAlreadyCheckedOut)
	assert.Equal(t, before, fs.product(p.ID).RemainingUnits)
	assert.Equal(t, orders, fs.orderCount())
}

func TestCheckoutEmptyCart(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	cart := fs.addCart(user.ID)

	svc := NewCheckoutService(fs, nil, nil)
	_, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.False(t, fs.cart(cart.ID).IsCheckedOut)
	assert.Zero(t, fs.orderCount())
}

func TestCheckoutInsufficientStock(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 5)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, p.ID, 6)

	svc := NewCheckoutService(fs, nil, nil)
	_, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, p.ID, stockErr.ProductID)
	assert.Equal(t, "Laptop", stockErr.ProductName)
	assert.Equal(t, 5, stockErr.Remaining)
	assert.Equal(t, 6, stockErr.Requested)

	// no side effects: stock untouched, cart still active, nothing created
	assert.Equal(t, 5, fs.product(p.ID).RemainingUnits)
	assert.False(t, fs.cart(cart.ID).IsCheckedOut)
	assert.Zero(t, fs.orderCount())
}

func TestCheckoutRollsBackPartialReservations(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	ok := fs.addProduct("Plenty", 10, 1, 100)
	scarce := fs.addProduct("Scarce", 10, 1, 1)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, ok.ID, 5)
	fs.addItem(cart.ID, scarce.ID, 2)

	svc := NewCheckoutService(fs, nil, nil)
	_, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	assert.True(t, IsInsufficientStock(err))

	// the first line's decrement must not survive the rollback
	assert.Equal(t, 100, fs.product(ok.ID).RemainingUnits)
	assert.Equal(t, 1, fs.product(scarce.ID).RemainingUnits)
	assert.False(t, fs.cart(cart.ID).IsCheckedOut)
	assert.Equal(t, 1, fs.cartCount())
	assert.Zero(t, fs.orderCount())
}

func TestCheckoutDrainsStockToZero(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 5)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, p.ID, 5)

	pub := &capturingPublisher{}
	svc := NewCheckoutService(fs, nil, pub)
	summary, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	require.NoError(t, err)

	assert.Equal(t, 5*1000.0, summary.TotalAmount)
	got := fs.product(p.ID)
	assert.Equal(t, 0, got.RemainingUnits)
	assert.Equal(t, models.StockStatusOut, got.StockStatus())

	require.Len(t, pub.depleted, 1)
	assert.Equal(t, p.ID, pub.depleted[0].ProductID)
}

func TestConcurrentCheckoutsCannotOversell(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 5)

	cartA := fs.addCart(user.ID)
	fs.addItem(cartA.ID, p.ID, 3)
	cartB := fs.addCart(user.ID)
	fs.addItem(cartB.ID, p.ID, 3)

	svc := NewCheckoutService(fs, nil, nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, cartID := range []int64{cartA.ID, cartB.ID} {
		wg.Add(1)
		go func(i int, cartID int64) {
			defer wg.Done()
			_, errs[i] = svc.Checkout(context.Background(), cartID, models.OrderStatusConfirmed)
		}(i, cartID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, IsInsufficientStock(err))
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 2, fs.product(p.ID).RemainingUnits)
	assert.True(t, fs.checkStockInvariant())
	assert.Equal(t, 1, fs.orderCount())
}

func TestCheckoutInProgressLock(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 5)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, p.ID, 1)

	svc := NewCheckoutService(fs, &heldLocker{}, nil)
	_, err := svc.Checkout(context.Background(), cart.ID, models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.Equal(t, 5, fs.product(p.ID).RemainingUnits)
}

func TestPlaceOrderPendingStatus(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 5)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, p.ID, 2)

	svc := NewCheckoutService(fs, nil, nil)
	summary, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		UserID: user.ID,
		CartID: cart.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, summary.OrderStatus)
	assert.Equal(t, 3, fs.product(p.ID).RemainingUnits)
}

func TestPlaceOrderUserNotFound(t *testing.T) {
	fs := newFakeStore()
	svc := NewCheckoutService(fs, nil, nil)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{UserID: 99, CartID: 1})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestPlaceOrderIdempotency(t *testing.T) {
	fs := newFakeStore()
	user := fs.addUser("alice@example.com")
	p := fs.addProduct("Laptop", 1000, 1, 10)
	cart := fs.addCart(user.ID)
	fs.addItem(cart.ID, p.ID, 1)

	svc := NewCheckoutService(fs, nil, nil)
	req := &PlaceOrderRequest{UserID: user.ID, CartID: cart.ID, IdempotencyKey: "key-1"}

	first, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	// repeat with the same key returns the original order, no new checkout
	second, err := svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, fs.orderCount())
	assert.Equal(t, 9, fs.product(p.ID).RemainingUnits)
}

// heldLocker always reports the lock as taken
type heldLocker struct{}

func (heldLocker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, nil
}

func (heldLocker) ReleaseLock(ctx context.Context, key string) error { return nil }
