package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dropsync-service/internal/marketplace"
	"dropsync-service/internal/models"
	"dropsync-service/internal/storefront"
)

// Store is the persistence capability the services consume. *store.Store
// implements it; tests substitute fakes.
type Store interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	ListTenantsWithMarketplaceConfigured(ctx context.Context) ([]models.Tenant, error)
	UpdateTenantSettings(ctx context.Context, tenant *models.Tenant) error

	CreateMapping(ctx context.Context, mapping *models.ProductMapping) error
	GetMappingByMarketplaceProduct(ctx context.Context, tenantID, marketplaceProductID string) (*models.ProductMapping, error)
	GetMappingByStorefrontProduct(ctx context.Context, tenantID, storefrontProductID string) (*models.ProductMapping, error)
	ListActiveMappings(ctx context.Context, tenantID string) ([]models.ProductMapping, error)
	ListMappings(ctx context.Context, tenantID string) ([]models.ProductMapping, error)
	SaveMappingSync(ctx context.Context, mappingID string, syncedAt sql.NullTime) error

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByStorefrontID(ctx context.Context, tenantID, storefrontOrderID string) (*models.Order, error)
	ListOrders(ctx context.Context, tenantID string) ([]models.Order, error)
	ListOrdersForTracking(ctx context.Context, tenantID string, statuses []string) ([]models.Order, error)
	MarkOrderPlaced(ctx context.Context, orderID, marketplaceOrderID string) error
	SaveOrderTracking(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

// MarketplaceAPI is the typed marketplace gateway surface the services
// consume. *marketplace.Gateway implements it.
type MarketplaceAPI interface {
	SearchProducts(ctx context.Context, keywords string, opts marketplace.SearchOptions) ([]marketplace.Product, error)
	GetProductDetails(ctx context.Context, productID string) (*marketplace.Product, error)
	GetProductInventory(ctx context.Context, productID string) (*marketplace.Inventory, error)
	PlaceOrder(ctx context.Context, productID string, quantity int, address marketplace.ShippingAddress) (*marketplace.PlacedOrder, error)
	GetTrackingInfo(ctx context.Context, marketplaceOrderID string) (*marketplace.TrackingInfo, error)
}

// StorefrontAPI is the storefront platform surface the services consume.
// *storefront.Client implements it.
type StorefrontAPI interface {
	CreateProduct(ctx context.Context, siteID string, product *storefront.Product) (*storefront.Product, error)
	CreateSKU(ctx context.Context, productID string, sku *storefront.SKU) (*storefront.SKU, error)
	UpdateInventory(ctx context.Context, productID, skuID string, quantity int) error
	GetOrder(ctx context.Context, siteID, orderID string) (*storefront.Order, error)
	FulfillOrder(ctx context.Context, siteID, orderID, trackingNumber, carrier string) error
}

// MarketplaceFactory builds a per-tenant marketplace gateway, since signed
// calls are keyed on the tenant's app secret.
type MarketplaceFactory func(creds marketplace.Credentials) MarketplaceAPI

// StorefrontFactory builds a per-tenant storefront client.
type StorefrontFactory func(accessToken string) StorefrontAPI

// Coordinator is the Redis-backed sync coordination surface: per-tenant
// leases and the last-pushed stock cache. *redisclient.Client implements it.
type Coordinator interface {
	AcquireSyncLease(ctx context.Context, tenantID, kind string, ttl time.Duration) (bool, error)
	ReleaseSyncLease(ctx context.Context, tenantID, kind string) error
	GetCachedStock(ctx context.Context, tenantID, marketplaceProductID string) (int, error)
	SetCachedStock(ctx context.Context, tenantID, marketplaceProductID string, stock int, ttl time.Duration) error
}

// EventSink receives the domain events the services emit. May be nil when
// no broker is wired. *broker.EventPublisher implements it.
type EventSink interface {
	PublishOrderReceived(ctx context.Context, event *models.OrderReceivedEvent) error
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderShipped(ctx context.Context, event *models.OrderShippedEvent) error
	PublishInventorySynced(ctx context.Context, event *models.InventorySyncedEvent) error
}

// tenantGateways builds the per-tenant gateway pair from the factories.
func tenantGateways(tenant *models.Tenant, newMP MarketplaceFactory, newSF StorefrontFactory) (MarketplaceAPI, StorefrontAPI) {
	creds := marketplace.Credentials{
		AppKey:       tenant.MarketplaceAppKey,
		AppSecret:    tenant.MarketplaceAppSecret,
		SessionToken: tenant.MarketplaceSessionToken.String,
	}
	return newMP(creds), newSF(tenant.StorefrontAccessToken)
}

// ConfigError means a tenant lacks the marketplace credentials a sync run
// requires. Fatal for that tenant's run, never for the whole batch.
type ConfigError struct {
	TenantID string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tenant %s not configured: %s", e.TenantID, e.Reason)
}

// IsConfigError reports whether err is a tenant configuration error.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// ItemResult is the outcome of one mapping or order within a sync run.
type ItemResult struct {
	ID  string `json:"id"`
	Ref string `json:"ref"`
	Err error  `json:"-"`
}

// ErrorMessage returns the failure text for API responses, empty on success.
func (r ItemResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// SyncResult reports a per-tenant sync run. Items holds one entry per
// processed record so callers can see exactly which ones failed.
type SyncResult struct {
	TenantID string       `json:"tenant_id"`
	Synced   int          `json:"synced"`
	Failed   int          `json:"failed"`
	Items    []ItemResult `json:"items"`
}

// failureReason buckets a per-item error for metrics.
func failureReason(err error) string {
	var mpTransport *marketplace.TransportError
	var mpAPI *marketplace.APIError
	var sfTransport *storefront.TransportError
	var sfAPI *storefront.APIError
	switch {
	case errors.As(err, &mpTransport) || errors.As(err, &sfTransport):
		return "transport"
	case errors.As(err, &mpAPI) || errors.As(err, &sfAPI):
		return "remote_api"
	default:
		return "persistence"
	}
}
