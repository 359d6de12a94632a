package api

import (
	"net/http"
	"strconv"
	"time"

	"dropsync-service/internal/marketplace"
	"dropsync-service/internal/service"
	"dropsync-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const tenantHeader = "X-Tenant-ID"

// maskedSecret is returned in place of the stored app secret and ignored
// when sent back unchanged on save.
const maskedSecret = "***"

// Handler contains HTTP handlers
type Handler struct {
	syncService   *service.SyncService
	importService *service.ImportService
	orderService  *service.OrderService
	store         service.Store
}

// NewHandler creates a new HTTP handler
func NewHandler(
	syncService *service.SyncService,
	importService *service.ImportService,
	orderService *service.OrderService,
	store service.Store,
) *Handler {
	return &Handler{
		syncService:   syncService,
		importService: importService,
		orderService:  orderService,
		store:         store,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhooks/order", requireTenant(), h.orderWebhook)

	v1 := router.Group("/api/v1", requireTenant())
	{
		v1.POST("/marketplace/search", h.searchProducts)
		v1.GET("/marketplace/products/:id", h.getProductDetails)

		v1.POST("/products/import", h.importProduct)
		v1.GET("/products", h.listProducts)
		v1.POST("/products/sync", h.syncInventory)

		v1.GET("/orders", h.listOrders)
		v1.POST("/orders/place", h.placeOrder)
		v1.POST("/orders/shipping/sync", h.syncShipping)

		v1.GET("/settings", h.getSettings)
		v1.POST("/settings", h.saveSettings)
	}
}

// requireTenant resolves the tenant id header for all tenant-scoped routes
func requireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetHeader(tenantHeader)
		if tenantID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "missing " + tenantHeader + " header",
			})
			return
		}
		c.Set("tenant_id", tenantID)
		c.Next()
	}
}

func tenantID(c *gin.Context) string {
	return c.GetString("tenant_id")
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

type searchRequest struct {
	Keywords     string  `json:"keywords" binding:"required"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	CategoryID   string  `json:"category_id"`
	DeliveryDays int     `json:"delivery_days"`
	SortBy       string  `json:"sort_by"`
}

// searchProducts browses the marketplace catalog
func (h *Handler) searchProducts(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	products, err := h.importService.SearchProducts(c.Request.Context(), tenantID(c), req.Keywords, marketplace.SearchOptions{
		MinPrice:     req.MinPrice,
		MaxPrice:     req.MaxPrice,
		CategoryID:   req.CategoryID,
		DeliveryDays: req.DeliveryDays,
		SortBy:       req.SortBy,
	})
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "results": products})
}

// getProductDetails fetches one marketplace product
func (h *Handler) getProductDetails(c *gin.Context) {
	product, err := h.importService.GetProductDetails(c.Request.Context(), tenantID(c), c.Param("id"))
	if err != nil {
		h.serviceError(c, err)
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found on marketplace"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": product})
}

type importRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	SiteID    string `json:"site_id" binding:"required"`
}

// importProduct imports a marketplace product into the storefront catalog
func (h *Handler) importProduct(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	mapping, err := h.importService.ImportProduct(c.Request.Context(), tenantID(c), req.ProductID, req.SiteID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "product": mapping})
}

// listProducts lists a tenant's product mappings
func (h *Handler) listProducts(c *gin.Context) {
	mappings, err := h.importService.ListMappings(c.Request.Context(), tenantID(c))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "products": mappings})
}

// syncInventory runs an on-demand inventory sync for the tenant, reporting
// per-item outcomes so operators can see exactly which mappings failed.
func (h *Handler) syncInventory(c *gin.Context) {
	result, err := h.syncService.SyncTenantInventory(c.Request.Context(), tenantID(c))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncResponse(result))
}

// syncShipping runs an on-demand shipping sync for the tenant
func (h *Handler) syncShipping(c *gin.Context) {
	result, err := h.syncService.SyncTenantShipping(c.Request.Context(), tenantID(c))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncResponse(result))
}

func syncResponse(result *service.SyncResult) gin.H {
	items := make([]gin.H, 0, len(result.Items))
	for _, item := range result.Items {
		entry := gin.H{"id": item.ID, "ref": item.Ref}
		if msg := item.ErrorMessage(); msg != "" {
			entry["error"] = msg
		}
		items = append(items, entry)
	}
	return gin.H{
		"success": true,
		"synced":  result.Synced,
		"failed":  result.Failed,
		"items":   items,
	}
}

// listOrders lists a tenant's orders
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), tenantID(c))
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "orders": orders})
}

type placeOrderRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

// placeOrder places a pending order on the marketplace
func (h *Handler) placeOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), tenantID(c), req.OrderID)
	if err != nil {
		h.serviceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order": order})
}

// orderWebhook ingests a storefront order webhook. It always answers 200 so
// the storefront does not retry deliveries we have already recorded.
func (h *Handler) orderWebhook(c *gin.Context) {
	var payload service.WebhookOrder
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "error": "invalid payload"})
		return
	}

	order, created, err := h.orderService.IngestWebhookOrder(c.Request.Context(), tenantID(c), &payload)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"received": true, "error": err.Error()})
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "Order already processed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "order_id": order.ID})
}

type settingsRequest struct {
	MarketplaceAppKey    string   `json:"marketplace_app_key"`
	MarketplaceAppSecret string   `json:"marketplace_app_secret"`
	PriceMultiplier      *float64 `json:"price_multiplier"`
	AutoOrderPlacement   *bool    `json:"auto_order_placement"`
	InventorySyncHours   *int     `json:"inventory_sync_hours"`
}

// getSettings returns the tenant's settings with the secret masked
func (h *Handler) getSettings(c *gin.Context) {
	tenant, err := h.store.GetTenant(c.Request.Context(), tenantID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}

	secret := ""
	if tenant.MarketplaceAppSecret != "" {
		secret = maskedSecret
	}

	c.JSON(http.StatusOK, gin.H{
		"marketplace_app_key":    tenant.MarketplaceAppKey,
		"marketplace_app_secret": secret,
		"price_multiplier":       tenant.PriceMultiplier,
		"auto_order_placement":   tenant.AutoOrderPlacement,
		"inventory_sync_hours":   tenant.InventorySyncHours,
	})
}

// saveSettings updates credentials and settings, keeping existing values
// for fields the request omits.
func (h *Handler) saveSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tenant, err := h.store.GetTenant(c.Request.Context(), tenantID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}

	if req.MarketplaceAppKey != "" {
		tenant.MarketplaceAppKey = req.MarketplaceAppKey
	}
	if req.MarketplaceAppSecret != "" && req.MarketplaceAppSecret != maskedSecret {
		tenant.MarketplaceAppSecret = req.MarketplaceAppSecret
	}
	if req.PriceMultiplier != nil && *req.PriceMultiplier > 0 {
		tenant.PriceMultiplier = *req.PriceMultiplier
	}
	if req.AutoOrderPlacement != nil {
		tenant.AutoOrderPlacement = *req.AutoOrderPlacement
	}
	if req.InventorySyncHours != nil && *req.InventorySyncHours > 0 {
		tenant.InventorySyncHours = *req.InventorySyncHours
	}

	if err := h.store.UpdateTenantSettings(c.Request.Context(), tenant); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Settings saved"})
}

// serviceError maps a service failure onto an HTTP status
func (h *Handler) serviceError(c *gin.Context, err error) {
	if service.IsConfigError(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
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
