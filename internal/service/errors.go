package service

import (
	"errors"
	"fmt"
)

// Domain failures surfaced to the HTTP layer. Each maps to a distinct
// status code; none are retried or swallowed.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrCartNotFound       = errors.New("cart not found")
	ErrProductNotFound    = errors.New("product not found")
	ErrCategoryNotFound   = errors.New("category not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrNoActiveCart       = errors.New("no active cart for user")
	ErrAlreadyCheckedOut  = errors.New("cart already checked out")
	ErrEmptyCart          = errors.New("cart is empty")
	ErrEmailTaken         = errors.New("email already registered")
	ErrCategoryExists     = errors.New("category already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

// InsufficientStockError names the offending product and how much stock
// remains so the caller can act on it.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Remaining   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = fmt.Sprintf("product %d", e.ProductID)
	}
	return fmt.Sprintf("not enough stock for %s: only %d left, requested %d",
		name, e.Remaining, e.Requested)
}

// IsInsufficientStock reports whether err is a stock shortage
func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
