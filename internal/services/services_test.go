package services_test

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopstack/storefront-api/internal/db"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func setupMockDB(t *testing.T) (*db.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &db.DB{DB: conn}, mock
}

func testMetrics() *metrics.AppMetrics {
	return metrics.NewNop()
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
