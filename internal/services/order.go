package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopstack/storefront-api/internal/db"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/shopstack/storefront-api/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// OrderService handles the order placement workflow and order queries
type OrderService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	log     *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(db *db.DB, m *metrics.AppMetrics, log *zap.Logger) *OrderService {
	return &OrderService{db: db, metrics: m, log: log}
}

type resolvedProduct struct {
	price float64
	stock int
}

// PlaceOrder runs the two-phase placement workflow: first every requested
// product is resolved and checked (existence and stock), then the order and
// all of its items are written in one transaction with the final total.
// Nothing persists if either phase fails.
//
// An empty items slice is permitted and yields an order with total zero and
// no items. Stock is validated but not decremented.
func (s *OrderService) PlaceOrder(ctx context.Context, userID string, items []models.OrderLineItem) (*models.PlacedOrder, error) {
	products, err := s.resolveProducts(ctx, items)
	if err != nil {
		return nil, err
	}

	var totalAmount float64
	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ProductID)
		}
		if product.stock < item.Quantity {
			return nil, fmt.Errorf("%w: product %s has %d left", ErrInsufficientStock, item.ProductID, product.stock)
		}
		totalAmount += product.price * float64(item.Quantity)
	}

	order := &models.Order{
		ID:          uuid.NewString(),
		UserID:      userID,
		TotalAmount: totalAmount,
		Status:      models.OrderStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	start := time.Now()
	orderQuery := "INSERT INTO orders (id, user_id, total_amount, status) VALUES (?, ?, ?, ?)"
	_, err = tx.ExecContext(ctx, orderQuery, order.ID, order.UserID, order.TotalAmount, order.Status)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderItems := make([]models.OrderItem, 0, len(items))
	itemQuery := "INSERT INTO order_items (id, order_id, product_id, quantity, price) VALUES (?, ?, ?, ?, ?)"
	for _, item := range items {
		orderItem := models.OrderItem{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     products[item.ProductID].price,
			CreatedAt: time.Now(),
		}

		start = time.Now()
		_, err = tx.ExecContext(ctx, itemQuery, orderItem.ID, orderItem.OrderID, orderItem.ProductID, orderItem.Quantity, orderItem.Price)
		s.metrics.RecordDBQuery(ctx, "INSERT", "order_items", itemQuery, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		orderItems = append(orderItems, orderItem)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", order.Status),
	})
	s.metrics.OrdersPlaced.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.RevenueTotal.Add(ctx, totalAmount, metric.WithAttributes(attrs...))

	s.log.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.Float64("total_amount", totalAmount),
		zap.Int("items", len(orderItems)),
	)

	return &models.PlacedOrder{Order: order, Items: orderItems}, nil
}

// resolveProducts fetches price and stock for every distinct requested
// product in one query.
func (s *OrderService) resolveProducts(ctx context.Context, items []models.OrderLineItem) (map[string]resolvedProduct, error) {
	products := make(map[string]resolvedProduct, len(items))
	if len(items) == 0 {
		return products, nil
	}

	seen := make(map[string]bool, len(items))
	var ids []any
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf("SELECT id, price, stock FROM products WHERE id IN (%s)", placeholders)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, ids...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var p resolvedProduct
		if err := rows.Scan(&id, &p.price, &p.stock); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[id] = p
	}

	return products, rows.Err()
}

// ListUserOrders returns the user's orders, newest first, with their items.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.OrderWithItems, error) {
	start := time.Now()
	query := "SELECT id, user_id, total_amount, status, created_at, updated_at FROM orders WHERE user_id = ? ORDER BY created_at DESC"
	rows, err := s.db.QueryContext(ctx, query, userID)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.OrderWithItems
	var orderIDs []any
	for rows.Next() {
		var o models.OrderWithItems
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Items = []models.OrderItem{}
		orders = append(orders, o)
		orderIDs = append(orderIDs, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	itemQuery := fmt.Sprintf("SELECT id, order_id, product_id, quantity, price, created_at FROM order_items WHERE order_id IN (%s) ORDER BY created_at", placeholders)

	start = time.Now()
	itemRows, err := s.db.QueryContext(ctx, itemQuery, orderIDs...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "order_items", itemQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer itemRows.Close()

	itemsByOrder := make(map[string][]models.OrderItem)
	for itemRows.Next() {
		var item models.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		itemsByOrder[item.OrderID] = append(itemsByOrder[item.OrderID], item)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		if items, ok := itemsByOrder[orders[i].ID]; ok {
			orders[i].Items = items
		}
	}

	return orders, nil
}

// UpdateStatus sets an order's status. Any value in the enumerated set is
// accepted regardless of the current status; there is no transition guard.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) error {
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	start := time.Now()
	query := "UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, status, orderID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	s.log.Info("order status updated", zap.String("order_id", orderID), zap.String("status", status))
	return nil
}

// Delete removes an order; its items cascade at the schema level.
func (s *OrderService) Delete(ctx context.Context, orderID string) error {
	start := time.Now()
	query := "DELETE FROM orders WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, orderID)
	s.metrics.RecordDBQuery(ctx, "DELETE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}
