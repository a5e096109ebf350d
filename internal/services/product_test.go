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

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "description", "price", "stock", "category_id", "image_url", "created_at", "updated_at"})
}

func TestCreateProduct_EchoesInput(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO products (id, name, description, price, stock, category_id, image_url) VALUES (?, ?, ?, ?, ?, ?, ?)")).
		WithArgs(sqlmock.AnyArg(), "mug", nil, 7.5, 40, "cat-1", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	product, err := svc.Create(context.Background(), &models.CreateProductRequest{
		Name:       "mug",
		Price:      floatPtr(7.5),
		Stock:      intPtr(40),
		CategoryID: "cat-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "mug", product.Name)
	assert.Equal(t, 7.5, product.Price)
	assert.Equal(t, 40, product.Stock)
	assert.Equal(t, "cat-1", product.CategoryID)
	assert.NotEmpty(t, product.ID)
}

func TestFilter_PriceBoundsAreInclusive(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE price >= ? AND price <= ? ORDER BY created_at")).
		WithArgs(5.0, 15.0).
		WillReturnRows(productRows().
			AddRow("p1", "low", nil, 5.0, 1, "cat-1", nil, now, now).
			AddRow("p2", "high", nil, 15.0, 1, "cat-1", nil, now, now))

	products, err := svc.Filter(context.Background(), &models.ProductFilter{
		MinPrice: floatPtr(5.0),
		MaxPrice: floatPtr(15.0),
	})
	assert.NoError(t, err)
	assert.Len(t, products, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFilter_CombinesCategoryAndPrice(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE category_id = ? AND price >= ? ORDER BY created_at")).
		WithArgs("cat-1", 5.0).
		WillReturnRows(productRows())

	products, err := svc.Filter(context.Background(), &models.ProductFilter{
		CategoryID: "cat-1",
		MinPrice:   floatPtr(5.0),
	})
	assert.NoError(t, err)
	assert.Empty(t, products)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct_ReadAfterWriteReturnsIdenticalFields(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs("p1").
		WillReturnRows(productRows().AddRow("p1", "mug", "ceramic", 7.5, 40, "cat-1", "https://img.example/mug.png", now, now))

	product, err := svc.Get(context.Background(), "p1")
	assert.NoError(t, err)
	assert.Equal(t, "p1", product.ID)
	assert.Equal(t, "mug", product.Name)
	assert.Equal(t, "ceramic", *product.Description)
	assert.Equal(t, 7.5, product.Price)
	assert.Equal(t, 40, product.Stock)
	assert.Equal(t, "cat-1", product.CategoryID)
	assert.Equal(t, "https://img.example/mug.png", *product.ImageURL)
}

func TestGetProduct_SecondReadServedFromCache(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs("p1").
		WillReturnRows(productRows().AddRow("p1", "mug", nil, 7.5, 40, "cat-1", nil, now, now))

	first, err := svc.Get(context.Background(), "p1")
	assert.NoError(t, err)

	// no second query expectation: this must not touch the store
	second, err := svc.Get(context.Background(), "p1")
	assert.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Price, second.Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProduct_NotFound(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(productRows())

	product, err := svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrProductNotFound)
	assert.Nil(t, product)
}

func TestUpdateProduct_PartialKeepsOldValues(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id = ?")).
		WithArgs("p1").
		WillReturnRows(productRows().AddRow("p1", "mug", nil, 7.5, 40, "cat-1", nil, now, now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET")).
		WithArgs("mug", nil, 9.0, 40, "cat-1", nil, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	product, err := svc.Update(context.Background(), "p1", &models.UpdateProductRequest{
		Price: floatPtr(9.0),
	})
	assert.NoError(t, err)
	assert.Equal(t, "mug", product.Name)
	assert.Equal(t, 9.0, product.Price)
	assert.Equal(t, 40, product.Stock)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteProduct_NotFound(t *testing.T) {
	database, mock := setupMockDB(t)
	svc := services.NewProductService(database, testMetrics(), testLogger())

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM products WHERE id = ?")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, services.ErrProductNotFound)
}
