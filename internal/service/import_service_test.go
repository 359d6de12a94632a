package service

import (
	"context"
	"testing"

	"dropsync-service/internal/marketplace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportProductCreatesListingAndMapping(t *testing.T) {
	store := newFakeStore()
	store.tenants["t1"] = configuredTenant("t1")

	tf := &testFactories{mp: newFakeMarketplace(), sf: newFakeStorefront()}
	tf.mp.details["1005001"] = &marketplace.Product{
		ProductID:       "1005001",
		Subject:         "USB Desk Lamp",
		TargetSalePrice: "10.00",
	}
	tf.mp.inventory["1005001"] = &marketplace.Inventory{AvailableStock: 42}
	svc := NewImportService(store, tf.marketplace, tf.storefront, 2.0)

	mapping, err := svc.ImportProduct(context.Background(), "t1", "1005001", "site-1")

	require.NoError(t, err)
	assert.Equal(t, "sf-prod-1", mapping.StorefrontProductID)
	assert.Equal(t, "sf-sku-1", mapping.StorefrontSkuID)
	assert.InDelta(t, 10.00, mapping.MarketplacePrice, 0.001)
	assert.InDelta(t, 25.00, mapping.StorefrontPrice, 0.001, "tenant multiplier 2.5 applies")
	assert.True(t, mapping.IsActive)
	assert.True(t, mapping.LastInventorySync.Valid)

	require.NotNil(t, tf.sf.createdProduct)
	assert.Equal(t, "USB Desk Lamp", tf.sf.createdProduct.Name)
	assert.Equal(t, "usb-desk-lamp", tf.sf.createdProduct.Slug)

	require.NotNil(t, tf.sf.createdSKU)
	assert.Equal(t, int64(2500), tf.sf.createdSKU.Price.Value)

	require.Len(t, tf.sf.pushes, 1)
	assert.Equal(t, 42, tf.sf.pushes[0].quantity)
}

func TestImportProductFallbackStock(t *testing.T) {
	store := newFakeStore()
	store.tenants["t1"] = configuredTenant("t1")

	tf := &testFactories{mp: newFakeMarketplace(), sf: newFakeStorefront()}
	tf.mp.details["1005001"] = &marketplace.Product{
		ProductID:       "1005001",
		Subject:         "USB Desk Lamp",
		TargetSalePrice: "10.00",
	}
	svc := NewImportService(store, tf.marketplace, tf.storefront, 2.0)

	_, err := svc.ImportProduct(context.Background(), "t1", "1005001", "site-1")

	require.NoError(t, err)
	require.Len(t, tf.sf.pushes, 1)
	assert.Equal(t, importFallbackStock, tf.sf.pushes[0].quantity)
}

func TestImportProductDefaultMultiplier(t *testing.T) {
	store := newFakeStore()
	tenant := configuredTenant("t1")
	tenant.PriceMultiplier = 0
	store.tenants["t1"] = tenant

	tf := &testFactories{mp: newFakeMarketplace(), sf: newFakeStorefront()}
	tf.mp.details["1005001"] = &marketplace.Product{
		ProductID:       "1005001",
		Subject:         "USB Desk Lamp",
		TargetSalePrice: "10.00",
	}
	svc := NewImportService(store, tf.marketplace, tf.storefront, 3.0)

	mapping, err := svc.ImportProduct(context.Background(), "t1", "1005001", "site-1")

	require.NoError(t, err)
	assert.InDelta(t, 30.00, mapping.StorefrontPrice, 0.001)
}

func TestImportProductDuplicateRejected(t *testing.T) {
	store := newFakeStore()
	store.tenants["t1"] = configuredTenant("t1")
	store.mappings = append(store.mappings, activeMapping("m1", "t1", "1005001", "sf-p1", "sku-1"))

	tf := &testFactories{mp: newFakeMarketplace(), sf: newFakeStorefront()}
	svc := NewImportService(store, tf.marketplace, tf.storefront, 2.0)

	_, err := svc.ImportProduct(context.Background(), "t1", "1005001", "site-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "already imported")
	assert.Nil(t, tf.sf.createdProduct)
}

func TestSearchProductsUnconfiguredTenant(t *testing.T) {
	store := newFakeStore()
	store.tenants["t1"] = configuredTenant("t1")
	store.tenants["t1"].MarketplaceAppSecret = ""

	tf := &testFactories{mp: newFakeMarketplace(), sf: newFakeStorefront()}
	svc := NewImportService(store, tf.marketplace, tf.storefront, 2.0)

	_, err := svc.SearchProducts(context.Background(), "t1", "lamp", marketplace.SearchOptions{})

	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Zero(t, tf.mpBuilds)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "usb-desk-lamp", slugify("USB Desk Lamp"))
	assert.Equal(t, "2-in-1-charger", slugify("  2-in-1 Charger! "))
	assert.Equal(t, "cafe", slugify("cafe"))
}
