package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopstack/storefront-api/internal/auth"
	"github.com/shopstack/storefront-api/internal/metrics"
	"github.com/shopstack/storefront-api/internal/middleware"
	"github.com/shopstack/storefront-api/internal/models"
	"github.com/shopstack/storefront-api/internal/services"
	"github.com/shopstack/storefront-api/pkg/config"
	"go.uber.org/zap"
)

// App holds application dependencies
type App struct {
	config          *config.Config
	metrics         *metrics.AppMetrics
	log             *zap.Logger
	verifier        *auth.Verifier
	categoryService *services.CategoryService
	productService  *services.ProductService
	cartService     *services.CartService
	orderService    *services.OrderService
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	m *metrics.AppMetrics,
	log *zap.Logger,
	verifier *auth.Verifier,
	categories *services.CategoryService,
	products *services.ProductService,
	carts *services.CartService,
	orders *services.OrderService,
) *App {
	return &App{
		config:          cfg,
		metrics:         m,
		log:             log,
		verifier:        verifier,
		categoryService: categories,
		productService:  products,
		cartService:     carts,
		orderService:    orders,
	}
}

// SetupRoutes configures the HTTP routes. Product creation and listing are
// public; every other route requires a bearer token.
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoveryMiddleware(a.log))
	r.Use(middleware.RateLimitMiddleware(a.config.RateLimitRPS, a.config.RateLimitBurst))
	r.Use(middleware.MetricsMiddleware(a.metrics, a.log))

	authed := middleware.AuthMiddleware(a.verifier)

	// Products
	products := r.PathPrefix("/products").Subrouter()
	products.HandleFunc("/create", a.CreateProductHandler).Methods("POST")
	products.HandleFunc("", a.ListProductsHandler).Methods("GET")
	products.HandleFunc("/filter", a.FilterProductsHandler).Methods("GET")
	products.Handle("/{id}", authed(http.HandlerFunc(a.GetProductHandler))).Methods("GET")
	products.Handle("/{id}", authed(http.HandlerFunc(a.UpdateProductHandler))).Methods("PUT")
	products.Handle("/{id}", authed(http.HandlerFunc(a.DeleteProductHandler))).Methods("DELETE")

	// Categories
	categories := r.PathPrefix("/categories").Subrouter()
	categories.Use(authed)
	categories.HandleFunc("/create", a.CreateCategoryHandler).Methods("POST")
	categories.HandleFunc("", a.ListCategoriesHandler).Methods("GET")
	categories.HandleFunc("/{id}", a.UpdateCategoryHandler).Methods("PUT")
	categories.HandleFunc("/{id}", a.DeleteCategoryHandler).Methods("DELETE")

	// Cart
	cart := r.PathPrefix("/cart").Subrouter()
	cart.Use(authed)
	cart.HandleFunc("/add", a.AddToCartHandler).Methods("POST")
	cart.HandleFunc("/{userId}", a.ViewCartHandler).Methods("GET")
	cart.HandleFunc("/remove/{id}", a.RemoveFromCartHandler).Methods("DELETE")

	// Orders
	orders := r.PathPrefix("/orders").Subrouter()
	orders.Use(authed)
	orders.HandleFunc("/place", a.PlaceOrderHandler).Methods("POST")
	orders.HandleFunc("/user/{userId}", a.ListUserOrdersHandler).Methods("GET")
	orders.HandleFunc("/update/{id}", a.UpdateOrderStatusHandler).Methods("PATCH")
	orders.HandleFunc("/delete/{id}", a.DeleteOrderHandler).Methods("DELETE")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

func parsePrice(v string) (float64, error) {
	return strconv.ParseFloat(v, 64)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps sentinel service errors onto statuses; anything
// unrecognized becomes a generic 500 so store internals never leak.
func (a *App) respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrCategoryNotFound),
		errors.Is(err, services.ErrProductNotFound),
		errors.Is(err, services.ErrCartItemNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrCartEmpty):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCategoryInUse),
		errors.Is(err, services.ErrInsufficientStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		a.log.Error(fallback, zap.Error(err))
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// CreateCategoryHandler handles POST /categories/create
func (a *App) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "category name is required")
		return
	}

	category, err := a.categoryService.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		a.respondServiceError(w, err, "category creation failed")
		return
	}
	respondJSON(w, http.StatusCreated, category)
}

// ListCategoriesHandler handles GET /categories
func (a *App) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := a.categoryService.List(r.Context())
	if err != nil {
		a.respondServiceError(w, err, "failed to fetch categories")
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

// UpdateCategoryHandler handles PUT /categories/{id}
func (a *App) UpdateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category, err := a.categoryService.Update(r.Context(), mux.Vars(r)["id"], req.Name, req.Description)
	if err != nil {
		a.respondServiceError(w, err, "failed to update category")
		return
	}
	respondJSON(w, http.StatusOK, category)
}

// DeleteCategoryHandler handles DELETE /categories/{id}
func (a *App) DeleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.categoryService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, err, "category deletion failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateProductHandler handles POST /products/create
func (a *App) CreateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.Price == nil || req.Stock == nil || req.CategoryID == "" {
		respondError(w, http.StatusBadRequest, "name, price, stock and category_id are required")
		return
	}
	if *req.Price < 0 {
		respondError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	product, err := a.productService.Create(r.Context(), &req)
	if err != nil {
		a.respondServiceError(w, err, "product creation failed")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// ListProductsHandler handles GET /products
func (a *App) ListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.productService.List(r.Context())
	if err != nil {
		a.respondServiceError(w, err, "failed to fetch products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// FilterProductsHandler handles GET /products/filter
func (a *App) FilterProductsHandler(w http.ResponseWriter, r *http.Request) {
	filter := models.ProductFilter{
		CategoryID: r.URL.Query().Get("category"),
	}
	if v := r.URL.Query().Get("minPrice"); v != "" {
		min, err := parsePrice(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid minPrice")
			return
		}
		filter.MinPrice = &min
	}
	if v := r.URL.Query().Get("maxPrice"); v != "" {
		max, err := parsePrice(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid maxPrice")
			return
		}
		filter.MaxPrice = &max
	}

	products, err := a.productService.Filter(r.Context(), &filter)
	if err != nil {
		a.respondServiceError(w, err, "failed to filter products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

// GetProductHandler handles GET /products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := a.productService.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.respondServiceError(w, err, "failed to fetch product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// UpdateProductHandler handles PUT /products/{id}
func (a *App) UpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Price != nil && *req.Price < 0 {
		respondError(w, http.StatusBadRequest, "price must not be negative")
		return
	}

	product, err := a.productService.Update(r.Context(), mux.Vars(r)["id"], &req)
	if err != nil {
		a.respondServiceError(w, err, "product update failed")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// DeleteProductHandler handles DELETE /products/{id}
func (a *App) DeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.productService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, err, "product deletion failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "product deleted successfully"})
}

// AddToCartHandler handles POST /cart/add
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	var req models.AddToCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ProductID == "" || req.Quantity < 1 {
		respondError(w, http.StatusBadRequest, "user_id, product_id and quantity are required")
		return
	}

	item, err := a.cartService.AddItem(r.Context(), req.UserID, req.ProductID, req.Quantity)
	if err != nil {
		a.respondServiceError(w, err, "failed to add to cart")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// ViewCartHandler handles GET /cart/{userId}
func (a *App) ViewCartHandler(w http.ResponseWriter, r *http.Request) {
	items, err := a.cartService.ListItems(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		a.respondServiceError(w, err, "failed to retrieve cart items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// RemoveFromCartHandler handles DELETE /cart/remove/{id}
func (a *App) RemoveFromCartHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.cartService.RemoveItem(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, err, "failed to remove item from cart")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlaceOrderHandler handles POST /orders/place
func (a *App) PlaceOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			respondError(w, http.StatusBadRequest, "each item needs a product_id and a quantity of at least 1")
			return
		}
	}

	placed, err := a.orderService.PlaceOrder(r.Context(), req.UserID, req.Items)
	if err != nil {
		a.respondServiceError(w, err, "failed to place order")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":     "order placed successfully",
		"order":       placed.Order,
		"order_items": placed.Items,
	})
}

// ListUserOrdersHandler handles GET /orders/user/{userId}
func (a *App) ListUserOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orderService.ListUserOrders(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		a.respondServiceError(w, err, "failed to fetch orders")
		return
	}
	if orders == nil {
		orders = []models.OrderWithItems{}
	}
	respondJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatusHandler handles PATCH /orders/update/{id}
func (a *App) UpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		respondError(w, http.StatusBadRequest, "status is required")
		return
	}

	if err := a.orderService.UpdateStatus(r.Context(), mux.Vars(r)["id"], req.Status); err != nil {
		a.respondServiceError(w, err, "failed to update order")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "order status updated"})
}

// DeleteOrderHandler handles DELETE /orders/delete/{id}
func (a *App) DeleteOrderHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.orderService.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		a.respondServiceError(w, err, "failed to delete order")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "order deleted successfully"})
}
