package api

import (
	"context"
	"net/http"
	"time"

	"inventory-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	catalog   *service.CatalogService
	storage   Pinger
	jwtSecret []byte
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, catalog *service.CatalogService, storage Pinger, jwtSecret []byte) *Handler {
	return &Handler{
		orders:    orders,
		catalog:   catalog,
		storage:   storage,
		jwtSecret: jwtSecret,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", RequireAuth(h.jwtSecret))
	{
		v1.POST("/sales-orders", h.createSalesOrder)
		v1.POST("/sales-orders/:id/confirmation", h.confirmSalesOrder)
		v1.POST("/purchase-orders", h.createPurchaseOrder)
		v1.POST("/purchase-orders/:id/decision", h.decidePurchaseOrder)
		v1.GET("/transactions/:id", h.getTransaction)

		v1.GET("/alerts/low-stock", h.lowStock)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/categories", h.listCategories)
		v1.GET("/products/:id", h.getProduct)
		v1.POST("/products", h.createProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.POST("/products/:id/stock-adjustments", h.adjustStock)
		v1.DELETE("/products/:id", h.deleteProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready only while storage answers
func (h *Handler) readinessCheck(c *gin.Context) {
	if err := h.storage.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func idempotencyKey(c *gin.Context, body string) string {
	if body != "" {
		return body
	}
	return c.GetHeader("Idempotency-Key")
}

func (h *Handler) createSalesOrder(c *gin.Context) {
	var req createSalesOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)

	resp, err := h.orders.CreateSalesOrder(c.Request.Context(), principal(c), req.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) confirmSalesOrder(c *gin.Context) {
	var req confirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.orders.ConfirmSalesOrder(c.Request.Context(), principal(c), c.Param("id"), req.Decision)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createPurchaseOrder(c *gin.Context) {
	var req createPurchaseOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	req.IdempotencyKey = idempotencyKey(c, req.IdempotencyKey)

	order, err := req.toService()
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.orders.CreatePurchaseOrder(c.Request.Context(), principal(c), order)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) decidePurchaseOrder(c *gin.Context) {
	var req purchaseDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	resp, err := h.orders.DecidePurchaseOrder(c.Request.Context(), principal(c), c.Param("id"), req.Decision, req.MinStockLevel)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getTransaction(c *gin.Context) {
	t, err := h.orders.GetTransaction(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) lowStock(c *gin.Context) {
	products, err := h.orders.GetLowStockProducts(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	p := principal(c)
	products, err := h.catalog.ListProducts(c.Request.Context(), p, c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": productViews(p, products)})
}

func (h *Handler) listCategories(c *gin.Context) {
	categories, err := h.catalog.Categories(c.Request.Context(), principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *Handler) getProduct(c *gin.Context) {
	p := principal(c)
	product, err := h.catalog.GetProduct(c.Request.Context(), p, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, productView(p, product))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), principal(c), req.toService())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	update, err := req.toService()
	if err != nil {
		respondError(c, err)
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), principal(c), c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req stockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	product, err := h.catalog.AdjustStock(c.Request.Context(), principal(c), c.Param("id"), *req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), principal(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
