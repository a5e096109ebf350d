package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopstack/storefront-api/internal/db"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/shopstack/storefront-api/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// CartService handles cart rows. Each add-to-cart call creates its own row;
// duplicate products are not merged.
type CartService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	log     *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(db *db.DB, m *metrics.AppMetrics, log *zap.Logger) *CartService {
	cs := &CartService{db: db, metrics: m, log: log}
	go cs.monitorActiveCarts()
	return cs
}

// monitorActiveCarts periodically records how many users hold cart rows
func (s *CartService) monitorActiveCarts() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		ctx := context.Background()
		query := "SELECT COUNT(DISTINCT user_id) FROM cart_items"
		start := time.Now()
		var count int
		err := s.db.QueryRowContext(ctx, query).Scan(&count)
		s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
		if err == nil {
			s.metrics.ActiveCartsCount.Record(ctx, int64(count), metric.WithAttributes(s.metrics.WithServiceName(nil)...))
		}
	}
}

// AddItem creates a cart row for the user. The product is resolved first so
// its current price is snapshotted into price_at_time.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	start := time.Now()
	priceQuery := "SELECT price FROM products WHERE id = ?"
	var price float64
	err := s.db.QueryRowContext(ctx, priceQuery, productID).Scan(&price)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", priceQuery, start, err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve product: %w", err)
	}

	item := &models.CartItem{
		ID:          uuid.NewString(),
		UserID:      userID,
		ProductID:   productID,
		Quantity:    quantity,
		PriceAtTime: price,
		CreatedAt:   time.Now(),
	}

	start = time.Now()
	insertQuery := "INSERT INTO cart_items (id, user_id, product_id, quantity, price_at_time) VALUES (?, ?, ?, ?, ?)"
	_, err = s.db.ExecContext(ctx, insertQuery, item.ID, item.UserID, item.ProductID, item.Quantity, item.PriceAtTime)
	s.metrics.RecordDBQuery(ctx, "INSERT", "cart_items", insertQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	s.updateCartItemsCount(ctx, userID)
	return item, nil
}

// ListItems returns the user's cart rows in insertion order. A cart with no
// rows is reported as ErrCartEmpty rather than an empty list.
func (s *CartService) ListItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	start := time.Now()
	query := "SELECT id, user_id, product_id, quantity, price_at_time, created_at FROM cart_items WHERE user_id = ? ORDER BY created_at"
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart items: %w", err)
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.PriceAtTime, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, ErrCartEmpty
	}
	return items, nil
}

// RemoveItem deletes a single cart row by its own id
func (s *CartService) RemoveItem(ctx context.Context, id string) error {
	start := time.Now()
	query := "DELETE FROM cart_items WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "DELETE", "cart_items", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to remove item from cart: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}

	return nil
}

// updateCartItemsCount records the cart size gauge for a user
func (s *CartService) updateCartItemsCount(ctx context.Context, userID string) {
	start := time.Now()
	query := "SELECT COUNT(*) FROM cart_items WHERE user_id = ?"
	var count int
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&count)
	s.metrics.RecordDBQuery(ctx, "SELECT", "cart_items", query, start, err == nil)
	if err != nil {
		s.log.Warn("failed to count cart items", zap.String("user_id", userID), zap.Error(err))
		return
	}

	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("user_id", userID),
	})
	s.metrics.CartItemsCount.Record(ctx, int64(count), metric.WithAttributes(attrs...))
}
