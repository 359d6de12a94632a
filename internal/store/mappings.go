package store

import (
	"context"
	"database/sql"
	"fmt"

	"dropsync-service/internal/models"
)

// CreateMapping creates a new product mapping. The unique constraint on
// (tenant_id, marketplace_product_id) rejects duplicate imports.
func (s *Store) CreateMapping(ctx context.Context, mapping *models.ProductMapping) error {
	query := `
		INSERT INTO product_mappings
			(id, tenant_id, marketplace_product_id, storefront_product_id,
			 storefront_site_id, storefront_sku_id, product_name,
			 marketplace_price, storefront_price, is_active, last_inventory_sync)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, mapping, query,
		mapping.ID, mapping.TenantID, mapping.MarketplaceProductID,
		mapping.StorefrontProductID, mapping.StorefrontSiteID,
		mapping.StorefrontSkuID, mapping.ProductName,
		mapping.MarketplacePrice, mapping.StorefrontPrice,
		mapping.IsActive, mapping.LastInventorySync)
}

// GetMappingByMarketplaceProduct retrieves a mapping by its marketplace
// product id, nil when none exists.
func (s *Store) GetMappingByMarketplaceProduct(ctx context.Context, tenantID, marketplaceProductID string) (*models.ProductMapping, error) {
	var mapping models.ProductMapping
	err := s.db.GetContext(ctx, &mapping,
		"SELECT * FROM product_mappings WHERE tenant_id = $1 AND marketplace_product_id = $2",
		tenantID, marketplaceProductID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// GetMappingByStorefrontProduct retrieves a mapping by its storefront
// product id, nil when none exists.
func (s *Store) GetMappingByStorefrontProduct(ctx context.Context, tenantID, storefrontProductID string) (*models.ProductMapping, error) {
	var mapping models.ProductMapping
	err := s.db.GetContext(ctx, &mapping,
		"SELECT * FROM product_mappings WHERE tenant_id = $1 AND storefront_product_id = $2",
		tenantID, storefrontProductID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &mapping, nil
}

// ListActiveMappings retrieves all active mappings for a tenant
func (s *Store) ListActiveMappings(ctx context.Context, tenantID string) ([]models.ProductMapping, error) {
	var mappings []models.ProductMapping
	err := s.db.SelectContext(ctx, &mappings,
		"SELECT * FROM product_mappings WHERE tenant_id = $1 AND is_active = true ORDER BY created_at",
		tenantID)
	return mappings, err
}

// ListMappings retrieves all mappings for a tenant, newest first
func (s *Store) ListMappings(ctx context.Context, tenantID string) ([]models.ProductMapping, error) {
	var mappings []models.ProductMapping
	err := s.db.SelectContext(ctx, &mappings,
		"SELECT * FROM product_mappings WHERE tenant_id = $1 ORDER BY created_at DESC",
		tenantID)
	return mappings, err
}

// SaveMappingSync records a completed inventory sync for a mapping
func (s *Store) SaveMappingSync(ctx context.Context, mappingID string, syncedAt sql.NullTime) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE product_mappings SET last_inventory_sync = $1, updated_at = NOW() WHERE id = $2",
		syncedAt, mappingID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("mapping not found: %s", mappingID)
	}
	return nil
}
