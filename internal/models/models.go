package models

import "time"

// Order statuses. The status column is an ENUM with exactly these values;
// there is no transition guard between them.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// ValidOrderStatus reports whether s is one of the enumerated order statuses.
func ValidOrderStatus(s string) bool {
	return s == OrderStatusPending || s == OrderStatusCompleted || s == OrderStatusCancelled
}

// Category groups products
type Category struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Product represents a product in the catalog. Price is the authoritative
// current price; cart and order rows snapshot it at action time.
type Product struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Stock       int       `json:"stock" db:"stock"`
	CategoryID  string    `json:"category_id" db:"category_id"`
	ImageURL    *string   `json:"image_url" db:"image_url"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CartItem is one add-to-cart action. Duplicate products are not merged;
// price_at_time is the product price when the row was created.
type CartItem struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	ProductID   string    `json:"product_id" db:"product_id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	PriceAtTime float64   `json:"price_at_time" db:"price_at_time"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Order represents a placed order
type Order struct {
	ID          string    `json:"id" db:"id"`
	UserID      string    `json:"user_id" db:"user_id"`
	TotalAmount float64   `json:"total_amount" db:"total_amount"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// OrderItem is one line of an order, immutable after creation
type OrderItem struct {
	ID        string    `json:"id" db:"id"`
	OrderID   string    `json:"order_id" db:"order_id"`
	ProductID string    `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Price     float64   `json:"price" db:"price"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OrderWithItems is an order together with its line items
type OrderWithItems struct {
	Order
	Items []OrderItem `json:"order_items"`
}

// PlacedOrder is the result of the order placement workflow
type PlacedOrder struct {
	Order *Order      `json:"order"`
	Items []OrderItem `json:"order_items"`
}

// OrderLineItem is one requested line of an order placement call
type OrderLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	UserID string          `json:"user_id"`
	Items  []OrderLineItem `json:"items"`
}

// UpdateOrderStatusRequest represents a request to change an order's status
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// AddToCartRequest represents a request to add an item to the cart
type AddToCartRequest struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// UpdateCategoryRequest carries a partial category update; nil fields keep
// their current value.
type UpdateCategoryRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// CreateProductRequest represents a request to create a product. Image
// upload storage is external, so clients send a ready URL.
type CreateProductRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	CategoryID  string   `json:"category_id"`
	ImageURL    *string  `json:"image_url"`
}

// UpdateProductRequest carries a partial product update; nil fields keep
// their current value.
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	CategoryID  *string  `json:"category_id"`
	ImageURL    *string  `json:"image_url"`
}

// ProductFilter holds the product listing constraints. Price bounds are
// inclusive on both ends.
type ProductFilter struct {
	CategoryID string
	MinPrice   *float64
	MaxPrice   *float64
}
