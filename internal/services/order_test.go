package services_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopstack/storefront-api/internal/models"
	"github.com/shopstack/storefront-api/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestPlaceOrder_ComputesTotalAndSnapshotsPrice(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, price, stock FROM products WHERE id IN (?)")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "price", "stock"}).AddRow("p1", 10.0, 5))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders (id, user_id, total_amount, status) VALUES (?, ?, ?, ?)")).
		WithArgs(sqlmock.AnyArg(), "user-1", 20.0, models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items (id, order_id, product_id, quantity, price) VALUES (?, ?, ?, ?, ?)")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "p1", 2, 10.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	placed, err := svc.PlaceOrder(context.Background(), "user-1", []models.OrderLineItem{
		{ProductID: "p1", Quantity: 2},
	})
	assert.NoError(t, err)
	assert.Equal(t, 20.0, placed.Order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, placed.Order.Status)
	assert.Len(t, placed.Items, 1)
	assert.Equal(t, 10.0, placed.Items[0].Price)
	assert.Equal(t, 2, placed.Items[0].Quantity)
	assert.Equal(t, placed.Order.ID, placed.Items[0].OrderID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrder_MissingProductAbortsBeforeAnyWrite(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	// p2 does not exist; only p1 comes back
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, price, stock FROM products WHERE id IN (?,?)")).
		WithArgs("p1", "p2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "price", "stock"}).AddRow("p1", 10.0, 5))

	placed, err := svc.PlaceOrder(context.Background(), "user-1", []models.OrderLineItem{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
	})
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Nil(t, placed)

	// no transaction was opened, nothing was persisted
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrder_InsufficientStockAbortsBeforeAnyWrite(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, price, stock FROM products WHERE id IN (?)")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "price", "stock"}).AddRow("p1", 10.0, 1))

	placed, err := svc.PlaceOrder(context.Background(), "user-1", []models.OrderLineItem{
		{ProductID: "p1", Quantity: 3},
	})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Nil(t, placed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Placing an order with no items is permitted: it yields an order with a
// zero total and no item rows. Semantically questionable but part of the
// API contract.
func TestPlaceOrder_EmptyItems(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WithArgs(sqlmock.AnyArg(), "user-1", 0.0, models.OrderStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	placed, err := svc.PlaceOrder(context.Background(), "user-1", nil)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, placed.Order.TotalAmount)
	assert.Empty(t, placed.Items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrder_RollsBackOnItemInsertFailure(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, price, stock FROM products WHERE id IN (?)")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "price", "stock"}).AddRow("p1", 10.0, 5))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	placed, err := svc.PlaceOrder(context.Background(), "user-1", []models.OrderLineItem{
		{ProductID: "p1", Quantity: 1},
	})
	assert.Error(t, err)
	assert.Nil(t, placed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any value in the enumerated set is accepted regardless of the current
// status; there is deliberately no transition guard.
func TestUpdateStatus_AcceptsEveryEnumeratedValue(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	for _, status := range []string{
		models.OrderStatusPending,
		models.OrderStatusCompleted,
		models.OrderStatusCancelled,
	} {
		mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, updated_at = NOW() WHERE id = ?")).
			WithArgs(status, "order-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, svc.UpdateStatus(context.Background(), "order-1", status))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_RejectsUnknownValueWithoutStoreCall(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	err := svc.UpdateStatus(context.Background(), "order-1", "shipped")
	assert.ErrorIs(t, err, services.ErrInvalidStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus_NotFound(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders")).
		WithArgs(models.OrderStatusCompleted, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdateStatus(context.Background(), "missing", models.OrderStatusCompleted)
	assert.ErrorIs(t, err, services.ErrOrderNotFound)
}

func TestDeleteOrder_NotFound(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM orders WHERE id = ?")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrOrderNotFound)
}

func TestListUserOrders_NestsItems(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewOrderService(database, testMetrics(), testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, total_amount, status, created_at, updated_at FROM orders WHERE user_id = ?")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "total_amount", "status", "created_at", "updated_at"}).
			AddRow("order-1", "user-1", 20.0, "pending", now, now).
			AddRow("order-2", "user-1", 5.0, "completed", now, now))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, order_id, product_id, quantity, price, created_at FROM order_items WHERE order_id IN (?,?)")).
		WithArgs("order-1", "order-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price", "created_at"}).
			AddRow("item-1", "order-1", "p1", 2, 10.0, now).
			AddRow("item-2", "order-2", "p2", 1, 5.0, now))

	orders, err := svc.ListUserOrders(context.Background(), "user-1")
	assert.NoError(t, err)
	assert.Len(t, orders, 2)
	assert.Len(t, orders[0].Items, 1)
	assert.Equal(t, "p1", orders[0].Items[0].ProductID)
	assert.Len(t, orders[1].Items, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
