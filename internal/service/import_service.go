package service

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"dropsync-service/internal/marketplace"
	"dropsync-service/internal/models"
	"dropsync-service/internal/storefront"
	"dropsync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// importFallbackStock seeds the storefront listing when the marketplace has
// no stock record for a freshly imported product.
const importFallbackStock = 100

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ImportService imports marketplace products into a tenant's storefront
// catalog and records the mapping the sync engine reconciles afterwards.
type ImportService struct {
	store           Store
	newMarketplace  MarketplaceFactory
	newStorefront   StorefrontFactory
	priceMultiplier float64
	logger          *zap.Logger
}

// NewImportService creates an import service. defaultMultiplier applies
// when a tenant has no price multiplier configured.
func NewImportService(store Store, newMarketplace MarketplaceFactory, newStorefront StorefrontFactory, defaultMultiplier float64) *ImportService {
	return &ImportService{
		store:           store,
		newMarketplace:  newMarketplace,
		newStorefront:   newStorefront,
		priceMultiplier: defaultMultiplier,
		logger:          util.GetLogger(),
	}
}

// ImportProduct imports one marketplace product for a tenant: creates the
// storefront product and default SKU, pushes initial stock, and persists
// the mapping. Duplicate imports per (tenant, marketplace product) are
// rejected.
func (s *ImportService) ImportProduct(ctx context.Context, tenantID, marketplaceProductID, siteID string) (*models.ProductMapping, error) {
	ctx, span := util.StartSpan(ctx, "ImportService.ImportProduct")
	defer span.End()

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, &ConfigError{TenantID: tenantID, Reason: err.Error()}
	}
	if !tenant.MarketplaceConfigured() {
		return nil, &ConfigError{TenantID: tenantID, Reason: "marketplace credentials missing"}
	}

	existing, err := s.store.GetMappingByMarketplaceProduct(ctx, tenantID, marketplaceProductID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing mapping: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("product %s already imported for tenant %s", marketplaceProductID, tenantID)
	}

	mp, sf := tenantGateways(tenant, s.newMarketplace, s.newStorefront)

	product, err := mp.GetProductDetails(ctx, marketplaceProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %s not found on marketplace", marketplaceProductID)
	}

	multiplier := tenant.PriceMultiplier
	if multiplier <= 0 {
		multiplier = s.priceMultiplier
	}
	marketplacePrice := product.SalePrice()
	sellingPrice := marketplacePrice * multiplier

	sfProduct, err := sf.CreateProduct(ctx, siteID, &storefront.Product{
		Name:        product.Subject,
		Slug:        slugify(product.Subject),
		Description: product.Description,
	})
	if err != nil {
		return nil, err
	}

	sfSKU, err := sf.CreateSKU(ctx, sfProduct.ID, &storefront.SKU{
		Name: "Default",
		Price: storefront.Price{
			Value: int64(math.Round(sellingPrice * 100)),
			Unit:  "USD",
		},
	})
	if err != nil {
		return nil, err
	}

	stock := importFallbackStock
	if inventory, err := mp.GetProductInventory(ctx, marketplaceProductID); err == nil && inventory != nil {
		stock = inventory.AvailableStock
	}

	if err := sf.UpdateInventory(ctx, sfProduct.ID, sfSKU.ID, stock); err != nil {
		return nil, err
	}

	mapping := &models.ProductMapping{
		ID:                   uuid.New().String(),
		TenantID:             tenantID,
		MarketplaceProductID: marketplaceProductID,
		StorefrontProductID:  sfProduct.ID,
		StorefrontSiteID:     siteID,
		StorefrontSkuID:      sfSKU.ID,
		ProductName:          product.Subject,
		MarketplacePrice:     marketplacePrice,
		StorefrontPrice:      sellingPrice,
		IsActive:             true,
		LastInventorySync:    sql.NullTime{Time: time.Now(), Valid: true},
	}

	if err := s.store.CreateMapping(ctx, mapping); err != nil {
		return nil, fmt.Errorf("failed to save mapping: %w", err)
	}

	util.ProductsImportedTotal.Inc()
	s.logger.Info("Product imported",
		zap.String("tenant_id", tenantID),
		zap.String("marketplace_product_id", marketplaceProductID),
		zap.String("storefront_product_id", sfProduct.ID),
		zap.Int("initial_stock", stock))
	return mapping, nil
}

// SearchProducts browses the marketplace catalog with a tenant's
// credentials.
func (s *ImportService) SearchProducts(ctx context.Context, tenantID, keywords string, opts marketplace.SearchOptions) ([]marketplace.Product, error) {
	mp, err := s.marketplaceFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return mp.SearchProducts(ctx, keywords, opts)
}

// GetProductDetails fetches one marketplace product with a tenant's
// credentials.
func (s *ImportService) GetProductDetails(ctx context.Context, tenantID, productID string) (*marketplace.Product, error) {
	mp, err := s.marketplaceFor(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return mp.GetProductDetails(ctx, productID)
}

func (s *ImportService) marketplaceFor(ctx context.Context, tenantID string) (MarketplaceAPI, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, &ConfigError{TenantID: tenantID, Reason: err.Error()}
	}
	if !tenant.MarketplaceConfigured() {
		return nil, &ConfigError{TenantID: tenantID, Reason: "marketplace credentials missing"}
	}
	mp, _ := tenantGateways(tenant, s.newMarketplace, s.newStorefront)
	return mp, nil
}

// ListMappings returns all of a tenant's product mappings, newest first.
func (s *ImportService) ListMappings(ctx context.Context, tenantID string) ([]models.ProductMapping, error) {
	return s.store.ListMappings(ctx, tenantID)
}

func slugify(name string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
