package models

import "time"

// Event types
const (
	EventTypeOrderReceived   = "ORDER_RECEIVED"
	EventTypeOrderPlaced     = "ORDER_PLACED"
	EventTypeOrderShipped    = "ORDER_SHIPPED"
	EventTypeInventorySynced = "INVENTORY_SYNCED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderReceivedEvent published when a storefront webhook creates an order.
// The placement worker consumes it for tenants with auto-placement enabled.
type OrderReceivedEvent struct {
	BaseEvent
	TenantID          string  `json:"tenant_id"`
	OrderID           string  `json:"order_id"`
	StorefrontOrderID string  `json:"storefront_order_id"`
	TotalAmount       float64 `json:"total_amount"`
	AutoPlace         bool    `json:"auto_place"`
}

// OrderPlacedEvent published when an order is placed on the marketplace
type OrderPlacedEvent struct {
	BaseEvent
	TenantID           string `json:"tenant_id"`
	OrderID            string `json:"order_id"`
	MarketplaceOrderID string `json:"marketplace_order_id"`
}

// OrderShippedEvent published when shipping sync records a tracking number
type OrderShippedEvent struct {
	BaseEvent
	TenantID        string `json:"tenant_id"`
	OrderID         string `json:"order_id"`
	TrackingNumber  string `json:"tracking_number"`
	ShippingCarrier string `json:"shipping_carrier"`
}

// InventorySyncedEvent published after a tenant inventory sync run
type InventorySyncedEvent struct {
	BaseEvent
	TenantID string `json:"tenant_id"`
	Synced   int    `json:"synced"`
	Failed   int    `json:"failed"`
}
