package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	auth     *service.AuthService
	category *service.CategoryService
	product  *service.ProductService
	cart     *service.CartService
	checkout *service.CheckoutService
	order    *service.OrderService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	auth *service.AuthService,
	category *service.CategoryService,
	product *service.ProductService,
	cart *service.CartService,
	checkout *service.CheckoutService,
	order *service.OrderService,
) *Handler {
	return &Handler{
		auth:     auth,
		category: category,
		product:  product,
		cart:     cart,
		checkout: checkout,
		order:    order,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/", h.root)
	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	categories := router.Group("/categories")
	{
		categories.POST("/", h.createCategory)
		categories.GET("/", h.listCategories)
		categories.GET("/:id", h.getCategory)
		categories.PUT("/:id", h.updateCategory)
		categories.DELETE("/:id", h.deleteCategory)
	}

	products := router.Group("/products")
	{
		products.POST("/", h.createProduct)
		products.GET("/", h.listProducts)
		products.GET("/:id", h.getProduct)
	}

	cart := router.Group("/cart")
	{
		cart.POST("/", h.createCart)
		cart.POST("/checkout/:cart_id", h.checkoutCart)
		cart.GET("/user/:user_id", h.getActiveCart)
		cart.GET("/user/:user_id/all", h.getUserCarts)
	}

	orders := router.Group("/orders")
	{
		orders.POST("/", h.placeOrder)
		orders.GET("/", h.listOrders)
		orders.GET("/user/:user_id", h.listUserOrders)
		orders.GET("/details/:user_id", h.getOrderDetails)
	}
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the shop service API"})
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// writeError maps a service failure to a status code with enough detail
// for the caller to act on
func writeError(c *gin.Context, err error) {
	var stockErr *service.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "Insufficient stock",
			"details":         stockErr.Error(),
			"product_id":      stockErr.ProductID,
			"remaining_units": stockErr.Remaining,
		})
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrCartNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrNoActiveCart):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyCheckedOut),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrCategoryExists),
		errors.Is(err, service.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
