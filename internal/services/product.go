package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopstack/storefront-api/internal/db"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/shopstack/storefront-api/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const productCacheTTL = 5 * time.Minute

// productCache holds recently read products
type productCache struct {
	mu    sync.RWMutex
	items map[string]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

func (c *productCache) get(id string) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.items[id]
	if !ok || time.Now().After(cached.expires) {
		return models.Product{}, false
	}
	return cached.product, true
}

func (c *productCache) put(p models.Product) {
	c.mu.Lock()
	c.items[p.ID] = cachedProduct{product: p, expires: time.Now().Add(productCacheTTL)}
	c.mu.Unlock()
}

func (c *productCache) invalidate(id string) {
	c.mu.Lock()
	delete(c.items, id)
	c.mu.Unlock()
}

// ProductService handles product CRUD and filtered listing
type ProductService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	log     *zap.Logger
	cache   productCache
}

// NewProductService creates a new product service
func NewProductService(db *db.DB, m *metrics.AppMetrics, log *zap.Logger) *ProductService {
	return &ProductService{
		db:      db,
		metrics: m,
		log:     log,
		cache:   productCache{items: make(map[string]cachedProduct)},
	}
}

const productColumns = "id, name, description, price, stock, category_id, image_url, created_at, updated_at"

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.CategoryID, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
}

// Create inserts a new product. Field presence is validated by the caller;
// an unknown category_id fails the foreign key and surfaces as a generic
// store failure.
func (s *ProductService) Create(ctx context.Context, req *models.CreateProductRequest) (*models.Product, error) {
	product := &models.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
		CategoryID:  req.CategoryID,
		ImageURL:    req.ImageURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	start := time.Now()
	query := "INSERT INTO products (id, name, description, price, stock, category_id, image_url) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.Stock, product.CategoryID, product.ImageURL)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return product, nil
}

// List returns all products
func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	return s.Filter(ctx, &models.ProductFilter{})
}

// Filter returns products matching the constraints: category equality and
// inclusive price bounds, each optional.
func (s *ProductService) Filter(ctx context.Context, filter *models.ProductFilter) ([]models.Product, error) {
	query := "SELECT " + productColumns + " FROM products"
	var clauses []string
	var args []any

	if filter.CategoryID != "" {
		clauses = append(clauses, "category_id = ?")
		args = append(args, filter.CategoryID)
	}
	if filter.MinPrice != nil {
		clauses = append(clauses, "price >= ?")
		args = append(args, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		clauses = append(clauses, "price <= ?")
		args = append(args, *filter.MaxPrice)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY created_at"

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// Get returns a product by id, served from the in-process cache when fresh.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	if cached, ok := s.cache.get(id); ok {
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
		s.recordView(ctx, &cached)
		return &cached, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))

	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	var p models.Product
	err := scanProduct(s.db.QueryRowContext(ctx, query, id), &p)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	s.cache.put(p)
	s.recordView(ctx, &p)
	return &p, nil
}

func (s *ProductService) recordView(ctx context.Context, p *models.Product) {
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("product_id", p.ID),
		attribute.String("category_id", p.CategoryID),
	})
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// Update applies a partial update; nil fields keep their current value.
func (s *ProductService) Update(ctx context.Context, id string, req *models.UpdateProductRequest) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	var p models.Product
	err := scanProduct(s.db.QueryRowContext(ctx, query, id), &p)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)
	if err == sql.ErrNoRows {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if req.Name != nil {
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.CategoryID != nil {
		p.CategoryID = *req.CategoryID
	}
	if req.ImageURL != nil {
		p.ImageURL = req.ImageURL
	}

	start = time.Now()
	updateQuery := "UPDATE products SET name = ?, description = ?, price = ?, stock = ?, category_id = ?, image_url = ?, updated_at = NOW() WHERE id = ?"
	_, err = s.db.ExecContext(ctx, updateQuery,
		p.Name, p.Description, p.Price, p.Stock, p.CategoryID, p.ImageURL, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", updateQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	p.UpdatedAt = time.Now()
	s.cache.invalidate(id)
	return &p, nil
}

// Delete removes a product. Existing cart and order rows keep their
// snapshots; nothing cascades.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	start := time.Now()
	query := "DELETE FROM products WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "DELETE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrProductNotFound
	}

	s.cache.invalidate(id)
	s.log.Info("product deleted", zap.String("product_id", id))
	return nil
}
