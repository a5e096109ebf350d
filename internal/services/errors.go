package services

import "errors"

// Sentinel errors surfaced by the services. Handlers map these onto HTTP
// statuses; anything else collapses into a generic 500.
var (
	ErrCategoryNotFound  = errors.New("category not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrCartItemNotFound  = errors.New("item not found in cart")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrCategoryInUse     = errors.New("category has products assigned")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStatus     = errors.New("invalid order status")
)
