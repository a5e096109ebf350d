package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopstack/storefront-api/internal/db"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/shopstack/storefront-api/internal/models"
	"go.uber.org/zap"
)

// MySQL error 1451: cannot delete a parent row, foreign key constraint fails.
const mysqlErrRowIsReferenced = 1451

// CategoryService handles category CRUD
type CategoryService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	log     *zap.Logger
}

// NewCategoryService creates a new category service
func NewCategoryService(db *db.DB, m *metrics.AppMetrics, log *zap.Logger) *CategoryService {
	return &CategoryService{db: db, metrics: m, log: log}
}

// Create inserts a new category. Name presence is validated by the caller.
func (s *CategoryService) Create(ctx context.Context, name string, description *string) (*models.Category, error) {
	category := &models.Category{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	start := time.Now()
	query := "INSERT INTO categories (id, name, description) VALUES (?, ?, ?)"
	_, err := s.db.ExecContext(ctx, query, category.ID, category.Name, category.Description)
	s.metrics.RecordDBQuery(ctx, "INSERT", "categories", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

// List returns all categories
func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	start := time.Now()
	query := "SELECT id, name, description, created_at, updated_at FROM categories ORDER BY created_at"
	rows, err := s.db.QueryContext(ctx, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "categories", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	return categories, rows.Err()
}

// Get returns a category by id
func (s *CategoryService) Get(ctx context.Context, id string) (*models.Category, error) {
	start := time.Now()
	query := "SELECT id, name, description, created_at, updated_at FROM categories WHERE id = ?"
	var c models.Category
	err := s.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	s.metrics.RecordDBQuery(ctx, "SELECT", "categories", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

// Update applies a partial update; nil fields keep their current value.
func (s *CategoryService) Update(ctx context.Context, id string, name, description *string) (*models.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		category.Name = *name
	}
	if description != nil {
		category.Description = description
	}

	start := time.Now()
	query := "UPDATE categories SET name = ?, description = ?, updated_at = NOW() WHERE id = ?"
	_, err = s.db.ExecContext(ctx, query, category.Name, category.Description, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "categories", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update category: %w", err)
	}

	category.UpdatedAt = time.Now()
	return category, nil
}

// Delete removes a category. Deleting a category that products still
// reference is restricted by the schema and reported as ErrCategoryInUse.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	start := time.Now()
	query := "DELETE FROM categories WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "DELETE", "categories", query, start, err == nil)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrRowIsReferenced {
			return ErrCategoryInUse
		}
		return fmt.Errorf("failed to delete category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return ErrCategoryNotFound
	}

	s.log.Info("category deleted", zap.String("category_id", id))
	return nil
}
