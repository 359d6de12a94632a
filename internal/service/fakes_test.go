package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"dropsync-service/internal/marketplace"
	"dropsync-service/internal/models"
	"dropsync-service/internal/storefront"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	tenants  map[string]*models.Tenant
	mappings []models.ProductMapping
	orders   map[string]*models.Order
	items    map[string][]models.OrderItem

	savedSyncs      map[string]sql.NullTime
	trackingSaves   []models.Order
	createdMappings []models.ProductMapping
	createdItems    []models.OrderItem
	updatedSettings *models.Tenant

	listMappingsErr map[string]error
	saveMappingErr  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tenants:         map[string]*models.Tenant{},
		orders:          map[string]*models.Order{},
		items:           map[string][]models.OrderItem{},
		savedSyncs:      map[string]sql.NullTime{},
		listMappingsErr: map[string]error{},
		saveMappingErr:  map[string]error{},
	}
}

func (f *fakeStore) GetTenant(_ context.Context, id string) (*models.Tenant, error) {
	tenant, ok := f.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	return tenant, nil
}

func (f *fakeStore) ListTenantsWithMarketplaceConfigured(_ context.Context) ([]models.Tenant, error) {
	var out []models.Tenant
	for _, t := range f.tenants {
		if t.MarketplaceConfigured() {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateTenantSettings(_ context.Context, tenant *models.Tenant) error {
	f.updatedSettings = tenant
	return nil
}

func (f *fakeStore) CreateMapping(_ context.Context, mapping *models.ProductMapping) error {
	for _, m := range f.mappings {
		if m.TenantID == mapping.TenantID && m.MarketplaceProductID == mapping.MarketplaceProductID {
			return fmt.Errorf("duplicate mapping")
		}
	}
	f.mappings = append(f.mappings, *mapping)
	f.createdMappings = append(f.createdMappings, *mapping)
	return nil
}

func (f *fakeStore) GetMappingByMarketplaceProduct(_ context.Context, tenantID, marketplaceProductID string) (*models.ProductMapping, error) {
	for i := range f.mappings {
		m := &f.mappings[i]
		if m.TenantID == tenantID && m.MarketplaceProductID == marketplaceProductID {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetMappingByStorefrontProduct(_ context.Context, tenantID, storefrontProductID string) (*models.ProductMapping, error) {
	for i := range f.mappings {
		m := &f.mappings[i]
		if m.TenantID == tenantID && m.StorefrontProductID == storefrontProductID {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListActiveMappings(_ context.Context, tenantID string) ([]models.ProductMapping, error) {
	if err := f.listMappingsErr[tenantID]; err != nil {
		return nil, err
	}
	var out []models.ProductMapping
	for _, m := range f.mappings {
		if m.TenantID == tenantID && m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) ListMappings(_ context.Context, tenantID string) ([]models.ProductMapping, error) {
	var out []models.ProductMapping
	for _, m := range f.mappings {
		if m.TenantID == tenantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) SaveMappingSync(_ context.Context, mappingID string, syncedAt sql.NullTime) error {
	if err := f.saveMappingErr[mappingID]; err != nil {
		return err
	}
	f.savedSyncs[mappingID] = syncedAt
	for i := range f.mappings {
		if f.mappings[i].ID == mappingID {
			f.mappings[i].LastInventorySync = syncedAt
		}
	}
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order) error {
	for _, o := range f.orders {
		if o.TenantID == order.TenantID && o.StorefrontOrderID == order.StorefrontOrderID {
			return fmt.Errorf("duplicate order")
		}
	}
	clone := *order
	f.orders[order.ID] = &clone
	return nil
}

func (f *fakeStore) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	return order, nil
}

func (f *fakeStore) GetOrderByStorefrontID(_ context.Context, tenantID, storefrontOrderID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.TenantID == tenantID && o.StorefrontOrderID == storefrontOrderID {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListOrders(_ context.Context, tenantID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.TenantID == tenantID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListOrdersForTracking(_ context.Context, tenantID string, statuses []string) ([]models.Order, error) {
	allowed := map[string]bool{}
	for _, s := range statuses {
		allowed[s] = true
	}
	var out []models.Order
	for _, o := range f.orders {
		if o.TenantID == tenantID && allowed[o.Status] && o.MarketplaceOrderID.Valid {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) MarkOrderPlaced(_ context.Context, orderID, marketplaceOrderID string) error {
	order, ok := f.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	order.MarketplaceOrderID = sql.NullString{String: marketplaceOrderID, Valid: true}
	order.Status = models.OrderStatusPlaced
	return nil
}

func (f *fakeStore) SaveOrderTracking(_ context.Context, order *models.Order) error {
	stored, ok := f.orders[order.ID]
	if !ok {
		return fmt.Errorf("order not found: %s", order.ID)
	}
	stored.TrackingNumber = order.TrackingNumber
	stored.ShippingCarrier = order.ShippingCarrier
	stored.Status = order.Status
	stored.LastTrackingSync = order.LastTrackingSync
	f.trackingSaves = append(f.trackingSaves, *stored)
	return nil
}

func (f *fakeStore) CreateOrderItem(_ context.Context, item *models.OrderItem) error {
	f.items[item.OrderID] = append(f.items[item.OrderID], *item)
	f.createdItems = append(f.createdItems, *item)
	return nil
}

func (f *fakeStore) GetOrderItemsByOrderID(_ context.Context, orderID string) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

// fakeMarketplace is a MarketplaceAPI with canned responses.
type fakeMarketplace struct {
	inventory    map[string]*marketplace.Inventory
	inventoryErr map[string]error
	tracking     map[string]*marketplace.TrackingInfo
	trackingErr  map[string]error
	details      map[string]*marketplace.Product
	placed       *marketplace.PlacedOrder
	placeErr     error

	inventoryCalls []string
	trackingCalls  []string
	placeCalls     []string
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		inventory:    map[string]*marketplace.Inventory{},
		inventoryErr: map[string]error{},
		tracking:     map[string]*marketplace.TrackingInfo{},
		trackingErr:  map[string]error{},
		details:      map[string]*marketplace.Product{},
	}
}

func (f *fakeMarketplace) SearchProducts(_ context.Context, _ string, _ marketplace.SearchOptions) ([]marketplace.Product, error) {
	return nil, nil
}

func (f *fakeMarketplace) GetProductDetails(_ context.Context, productID string) (*marketplace.Product, error) {
	return f.details[productID], nil
}

func (f *fakeMarketplace) GetProductInventory(_ context.Context, productID string) (*marketplace.Inventory, error) {
	f.inventoryCalls = append(f.inventoryCalls, productID)
	if err := f.inventoryErr[productID]; err != nil {
		return nil, err
	}
	return f.inventory[productID], nil
}

func (f *fakeMarketplace) PlaceOrder(_ context.Context, productID string, _ int, _ marketplace.ShippingAddress) (*marketplace.PlacedOrder, error) {
	f.placeCalls = append(f.placeCalls, productID)
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	return f.placed, nil
}

func (f *fakeMarketplace) GetTrackingInfo(_ context.Context, marketplaceOrderID string) (*marketplace.TrackingInfo, error) {
	f.trackingCalls = append(f.trackingCalls, marketplaceOrderID)
	if err := f.trackingErr[marketplaceOrderID]; err != nil {
		return nil, err
	}
	return f.tracking[marketplaceOrderID], nil
}

type inventoryPush struct {
	productID string
	skuID     string
	quantity  int
}

type fulfillCall struct {
	siteID         string
	orderID        string
	trackingNumber string
	carrier        string
}

// fakeStorefront is a StorefrontAPI recording writes.
type fakeStorefront struct {
	pushes    []inventoryPush
	fulfills  []fulfillCall
	updateErr map[string]error

	createdProduct *storefront.Product
	createdSKU     *storefront.SKU
	order          *storefront.Order
}

func newFakeStorefront() *fakeStorefront {
	return &fakeStorefront{updateErr: map[string]error{}}
}

func (f *fakeStorefront) CreateProduct(_ context.Context, _ string, product *storefront.Product) (*storefront.Product, error) {
	created := *product
	created.ID = "sf-prod-1"
	f.createdProduct = &created
	return &created, nil
}

func (f *fakeStorefront) CreateSKU(_ context.Context, _ string, sku *storefront.SKU) (*storefront.SKU, error) {
	created := *sku
	created.ID = "sf-sku-1"
	f.createdSKU = &created
	return &created, nil
}

func (f *fakeStorefront) UpdateInventory(_ context.Context, productID, skuID string, quantity int) error {
	if err := f.updateErr[productID]; err != nil {
		return err
	}
	f.pushes = append(f.pushes, inventoryPush{productID: productID, skuID: skuID, quantity: quantity})
	return nil
}

func (f *fakeStorefront) GetOrder(_ context.Context, _, _ string) (*storefront.Order, error) {
	return f.order, nil
}

func (f *fakeStorefront) FulfillOrder(_ context.Context, siteID, orderID, trackingNumber, carrier string) error {
	if carrier == "" {
		carrier = storefront.DefaultCarrier
	}
	f.fulfills = append(f.fulfills, fulfillCall{
		siteID:         siteID,
		orderID:        orderID,
		trackingNumber: trackingNumber,
		carrier:        carrier,
	})
	return nil
}

// testFactories wraps the fakes as per-tenant gateway factories and counts
// how often each factory is invoked.
type testFactories struct {
	mp *fakeMarketplace
	sf *fakeStorefront

	mpBuilds int
	sfBuilds int
}

func (tf *testFactories) marketplace(_ marketplace.Credentials) MarketplaceAPI {
	tf.mpBuilds++
	return tf.mp
}

func (tf *testFactories) storefront(_ string) StorefrontAPI {
	tf.sfBuilds++
	return tf.sf
}

func configuredTenant(id string) *models.Tenant {
	return &models.Tenant{
		ID:                    id,
		StorefrontAccessToken: "sf-token",
		MarketplaceAppKey:     "app-key",
		MarketplaceAppSecret:  "app-secret",
		PriceMultiplier:       2.5,
		InventorySyncHours:    6,
	}
}
