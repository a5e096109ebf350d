package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopstack/storefront-api/internal/api"
	"github.com/shopstack/storefront-api/internal/auth"
	"github.com/shopstack/storefront-api/internal/db"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/shopstack/storefront-api/internal/services"
	"github.com/shopstack/storefront-api/pkg/config"
	"github.com/shopstack/storefront-api/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	zlog, err := logger.New(cfg.OTELDeploymentEnvironment)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zap.ReplaceGlobals(zlog)

	if cfg.JWTSecretKey == "" {
		zlog.Fatal("JWT_SECRET_KEY must be set")
	}

	ctx := context.Background()
	appMetrics, meterProvider, err := metrics.Init(ctx, cfg)
	if err != nil {
		zlog.Fatal("failed to initialize metrics", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			zlog.Error("error shutting down meter provider", zap.Error(err))
		}
	}()

	database, err := db.New(cfg.GetDSN(), cfg.OTELServiceName)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	schemaSQL, err := os.ReadFile("schema.sql")
	if err != nil {
		zlog.Warn("could not read schema.sql, assuming schema already exists", zap.Error(err))
	} else if err := database.InitSchema(ctx, string(schemaSQL)); err != nil {
		zlog.Warn("could not initialize schema, assuming it already exists", zap.Error(err))
	}

	verifier := auth.NewVerifier(cfg.JWTSecretKey)

	categoryService := services.NewCategoryService(database, appMetrics, zlog)
	productService := services.NewProductService(database, appMetrics, zlog)
	cartService := services.NewCartService(database, appMetrics, zlog)
	orderService := services.NewOrderService(database, appMetrics, zlog)

	app := api.NewApp(cfg, appMetrics, zlog, verifier, categoryService, productService, cartService, orderService)

	router := mux.NewRouter()
	app.SetupRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zlog.Info("server starting",
			zap.String("port", cfg.AppPort),
			zap.String("otlp_endpoint", cfg.OTELExporterOTLPEndpoint),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server exited")
}
