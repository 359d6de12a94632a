package models

import (
	"database/sql"
	"time"
)

// Tenant holds one account's credentials for both external platforms.
// The marketplace app key/secret are durable tenant-scoped secrets; the
// session token is a renewable artifact refreshed outside this service.
type Tenant struct {
	ID                      string         `db:"id" json:"id"`
	StorefrontUserID        string         `db:"storefront_user_id" json:"storefront_user_id"`
	StorefrontAccessToken   string         `db:"storefront_access_token" json:"-"`
	StorefrontRefreshToken  sql.NullString `db:"storefront_refresh_token" json:"-"`
	MarketplaceAppKey       string         `db:"marketplace_app_key" json:"-"`
	MarketplaceAppSecret    string         `db:"marketplace_app_secret" json:"-"`
	MarketplaceSessionToken sql.NullString `db:"marketplace_session_token" json:"-"`
	PriceMultiplier         float64        `db:"price_multiplier" json:"price_multiplier"`
	AutoOrderPlacement      bool           `db:"auto_order_placement" json:"auto_order_placement"`
	InventorySyncHours      int            `db:"inventory_sync_hours" json:"inventory_sync_hours"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at" json:"updated_at"`
}

// MarketplaceConfigured reports whether the tenant can sign marketplace calls.
func (t *Tenant) MarketplaceConfigured() bool {
	return t.MarketplaceAppKey != "" && t.MarketplaceAppSecret != ""
}

// ProductMapping links one marketplace product to one storefront product/SKU.
// Unique per (tenant_id, marketplace_product_id).
type ProductMapping struct {
	ID                   string       `db:"id" json:"id"`
	TenantID             string       `db:"tenant_id" json:"tenant_id"`
	MarketplaceProductID string       `db:"marketplace_product_id" json:"marketplace_product_id"`
	StorefrontProductID  string       `db:"storefront_product_id" json:"storefront_product_id"`
	StorefrontSiteID     string       `db:"storefront_site_id" json:"storefront_site_id"`
	StorefrontSkuID      string       `db:"storefront_sku_id" json:"storefront_sku_id"`
	ProductName          string       `db:"product_name" json:"product_name"`
	MarketplacePrice     float64      `db:"marketplace_price" json:"marketplace_price"`
	StorefrontPrice      float64      `db:"storefront_price" json:"storefront_price"`
	IsActive             bool         `db:"is_active" json:"is_active"`
	LastInventorySync    sql.NullTime `db:"last_inventory_sync" json:"last_inventory_sync"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

// Order mirrors a storefront order and its marketplace counterpart.
// Unique per (tenant_id, storefront_order_id). A non-null marketplace order
// id implies status placed or later.
type Order struct {
	ID                 string         `db:"id" json:"id"`
	TenantID           string         `db:"tenant_id" json:"tenant_id"`
	StorefrontOrderID  string         `db:"storefront_order_id" json:"storefront_order_id"`
	StorefrontSiteID   string         `db:"storefront_site_id" json:"storefront_site_id"`
	MarketplaceOrderID sql.NullString `db:"marketplace_order_id" json:"marketplace_order_id"`
	CustomerEmail      string         `db:"customer_email" json:"customer_email"`
	TotalAmount        float64        `db:"total_amount" json:"total_amount"`
	Status             string         `db:"status" json:"status"`
	TrackingNumber     sql.NullString `db:"tracking_number" json:"tracking_number"`
	ShippingCarrier    sql.NullString `db:"shipping_carrier" json:"shipping_carrier"`
	LastTrackingSync   sql.NullTime   `db:"last_tracking_sync" json:"last_tracking_sync"`
	OrderPlacedAt      sql.NullTime   `db:"order_placed_at" json:"order_placed_at"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at" json:"updated_at"`
}

// OrderItem is one line of an order, resolved through a product mapping.
type OrderItem struct {
	ID                   int64   `db:"id" json:"id"`
	OrderID              string  `db:"order_id" json:"order_id"`
	MarketplaceProductID string  `db:"marketplace_product_id" json:"marketplace_product_id"`
	StorefrontProductID  string  `db:"storefront_product_id" json:"storefront_product_id"`
	Quantity             int     `db:"quantity" json:"quantity"`
	UnitPrice            float64 `db:"unit_price" json:"unit_price"`
}

// Order statuses. The sync engine only ever advances placed -> shipped;
// terminal states are set elsewhere.
const (
	OrderStatusPending   = "pending"
	OrderStatusPlaced    = "placed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)
