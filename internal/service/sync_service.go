package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dropsync-service/internal/models"
	"dropsync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sync lease kinds.
const (
	leaseKindInventory = "inventory"
	leaseKindShipping  = "shipping"
)

// defaultTrackingCarrier labels a shipment when the marketplace reports a
// tracking number without naming the logistics service.
const defaultTrackingCarrier = "AliExpress"

// SyncOptions tune the reconciliation engine. Zero values pick defaults.
type SyncOptions struct {
	LeaseTTL      time.Duration // default 10m
	StockCacheTTL time.Duration // default 1h
}

func (o SyncOptions) withDefaults() SyncOptions {
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = 10 * time.Minute
	}
	if o.StockCacheTTL <= 0 {
		o.StockCacheTTL = time.Hour
	}
	return o
}

// SyncService is the reconciliation engine. Per tenant it pulls current
// truth from the marketplace and pushes deltas into the storefront,
// isolating per-item failures so one bad record never aborts a batch.
type SyncService struct {
	store          Store
	coordinator    Coordinator
	events         EventSink
	newMarketplace MarketplaceFactory
	newStorefront  StorefrontFactory
	opts           SyncOptions
	logger         *zap.Logger
	now            func() time.Time
}

// NewSyncService creates the reconciliation engine. coordinator and events
// may be nil; leasing and event publishing are then skipped.
func NewSyncService(
	store Store,
	coordinator Coordinator,
	events EventSink,
	newMarketplace MarketplaceFactory,
	newStorefront StorefrontFactory,
	opts SyncOptions,
) *SyncService {
	return &SyncService{
		store:          store,
		coordinator:    coordinator,
		events:         events,
		newMarketplace: newMarketplace,
		newStorefront:  newStorefront,
		opts:           opts.withDefaults(),
		logger:         util.GetLogger(),
		now:            time.Now,
	}
}

// resolveTenant loads the tenant and fails fast with a ConfigError before
// any remote call when marketplace credentials are absent.
func (s *SyncService) resolveTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, &ConfigError{TenantID: tenantID, Reason: err.Error()}
	}
	if !tenant.MarketplaceConfigured() {
		return nil, &ConfigError{TenantID: tenantID, Reason: "marketplace credentials missing"}
	}
	return tenant, nil
}

func (s *SyncService) gateways(tenant *models.Tenant) (MarketplaceAPI, StorefrontAPI) {
	return tenantGateways(tenant, s.newMarketplace, s.newStorefront)
}

// acquireLease takes the per-tenant lease when a coordinator is wired.
// Returns false when another engine instance holds it.
func (s *SyncService) acquireLease(ctx context.Context, tenantID, kind string) (bool, func()) {
	if s.coordinator == nil {
		return true, func() {}
	}
	ok, err := s.coordinator.AcquireSyncLease(ctx, tenantID, kind, s.opts.LeaseTTL)
	if err != nil {
		// Coordination is best effort; a broken Redis must not stop syncs.
		s.logger.Warn("Sync lease acquisition failed, proceeding without lease",
			zap.String("tenant_id", tenantID), zap.Error(err))
		return true, func() {}
	}
	if !ok {
		return false, func() {}
	}
	return true, func() {
		if err := s.coordinator.ReleaseSyncLease(context.Background(), tenantID, kind); err != nil {
			s.logger.Warn("Failed to release sync lease",
				zap.String("tenant_id", tenantID), zap.Error(err))
		}
	}
}

// SyncTenantInventory brings storefront stock levels in line with
// marketplace stock levels for every active mapping of one tenant. It fails
// outright only when the tenant cannot be resolved or is unconfigured;
// per-mapping failures are collected in the result.
func (s *SyncService) SyncTenantInventory(ctx context.Context, tenantID string) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncTenantInventory")
	defer span.End()

	tenant, err := s.resolveTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	acquired, release := s.acquireLease(ctx, tenantID, leaseKindInventory)
	if !acquired {
		return nil, fmt.Errorf("inventory sync already running for tenant %s", tenantID)
	}
	defer release()

	start := s.now()
	defer func() {
		util.SyncRunDuration.WithLabelValues(leaseKindInventory).Observe(time.Since(start).Seconds())
	}()

	mp, sf := s.gateways(tenant)

	mappings, err := s.store.ListActiveMappings(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings for tenant %s: %w", tenantID, err)
	}

	result := &SyncResult{TenantID: tenantID, Items: make([]ItemResult, 0, len(mappings))}

	for i := range mappings {
		mapping := &mappings[i]
		item := ItemResult{ID: mapping.ID, Ref: mapping.MarketplaceProductID}

		if err := s.syncMappingInventory(ctx, mp, sf, mapping); err != nil {
			item.Err = err
			result.Failed++
			util.MappingSyncFailuresTotal.WithLabelValues(failureReason(err)).Inc()
			s.logger.Error("Inventory sync failed for mapping",
				zap.String("tenant_id", tenantID),
				zap.String("mapping_id", mapping.ID),
				zap.String("marketplace_product_id", mapping.MarketplaceProductID),
				zap.Error(err))
		} else {
			result.Synced++
			util.MappingsSyncedTotal.Inc()
		}
		result.Items = append(result.Items, item)
	}

	s.publishInventorySynced(ctx, result)

	s.logger.Info("Inventory sync completed",
		zap.String("tenant_id", tenantID),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed))
	return result, nil
}

// syncMappingInventory reconciles one mapping: marketplace stock is the
// truth, absent stock counts as zero.
func (s *SyncService) syncMappingInventory(ctx context.Context, mp MarketplaceAPI, sf StorefrontAPI, mapping *models.ProductMapping) error {
	inventory, err := mp.GetProductInventory(ctx, mapping.MarketplaceProductID)
	if err != nil {
		return err
	}

	stock := 0
	if inventory != nil {
		stock = inventory.AvailableStock
	}

	if !s.stockUnchanged(ctx, mapping, stock) {
		if err := sf.UpdateInventory(ctx, mapping.StorefrontProductID, mapping.StorefrontSkuID, stock); err != nil {
			return err
		}
		s.cacheStock(ctx, mapping, stock)
	}

	if err := s.store.SaveMappingSync(ctx, mapping.ID, sql.NullTime{Time: s.now(), Valid: true}); err != nil {
		return fmt.Errorf("failed to record inventory sync: %w", err)
	}
	return nil
}

// stockUnchanged reports whether the cache shows this exact stock level was
// already pushed. On any cache trouble the push proceeds.
func (s *SyncService) stockUnchanged(ctx context.Context, mapping *models.ProductMapping, stock int) bool {
	if s.coordinator == nil {
		return false
	}
	cached, err := s.coordinator.GetCachedStock(ctx, mapping.TenantID, mapping.MarketplaceProductID)
	if err != nil {
		return false
	}
	return cached >= 0 && cached == stock
}

func (s *SyncService) cacheStock(ctx context.Context, mapping *models.ProductMapping, stock int) {
	if s.coordinator == nil {
		return
	}
	if err := s.coordinator.SetCachedStock(ctx, mapping.TenantID, mapping.MarketplaceProductID, stock, s.opts.StockCacheTTL); err != nil {
		s.logger.Warn("Failed to cache stock level",
			zap.String("mapping_id", mapping.ID), zap.Error(err))
	}
}

func (s *SyncService) publishInventorySynced(ctx context.Context, result *SyncResult) {
	if s.events == nil {
		return
	}
	event := &models.InventorySyncedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeInventorySynced,
			Timestamp: s.now(),
		},
		TenantID: result.TenantID,
		Synced:   result.Synced,
		Failed:   result.Failed,
	}
	if err := s.events.PublishInventorySynced(ctx, event); err != nil {
		s.logger.Error("Failed to publish InventorySynced event", zap.Error(err))
	}
}

// SyncAllInventory runs inventory sync for every tenant with marketplace
// credentials. Tenant-level failures are logged, never propagated, so a
// scheduled run always completes.
func (s *SyncService) SyncAllInventory(ctx context.Context) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncAllInventory")
	defer span.End()

	tenants, err := s.store.ListTenantsWithMarketplaceConfigured(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for inventory sync", zap.Error(err))
		return
	}

	for i := range tenants {
		if _, err := s.SyncTenantInventory(ctx, tenants[i].ID); err != nil {
			s.logger.Error("Inventory sync failed for tenant",
				zap.String("tenant_id", tenants[i].ID),
				zap.Error(err))
		}
	}
}

// SyncTenantShipping pulls shipment tracking for orders already placed on
// the marketplace and reflects it into the order record and the storefront.
// Same failure contract as SyncTenantInventory.
func (s *SyncService) SyncTenantShipping(ctx context.Context, tenantID string) (*SyncResult, error) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncTenantShipping")
	defer span.End()

	tenant, err := s.resolveTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	acquired, release := s.acquireLease(ctx, tenantID, leaseKindShipping)
	if !acquired {
		return nil, fmt.Errorf("shipping sync already running for tenant %s", tenantID)
	}
	defer release()

	start := s.now()
	defer func() {
		util.SyncRunDuration.WithLabelValues(leaseKindShipping).Observe(time.Since(start).Seconds())
	}()

	mp, sf := s.gateways(tenant)

	orders, err := s.store.ListOrdersForTracking(ctx, tenantID,
		[]string{models.OrderStatusPlaced, models.OrderStatusShipped})
	if err != nil {
		return nil, fmt.Errorf("failed to list orders for tenant %s: %w", tenantID, err)
	}

	result := &SyncResult{TenantID: tenantID, Items: make([]ItemResult, 0, len(orders))}

	for i := range orders {
		order := &orders[i]
		item := ItemResult{ID: order.ID, Ref: order.StorefrontOrderID}

		updated, err := s.syncOrderTracking(ctx, mp, sf, order)
		if err != nil {
			item.Err = err
			result.Failed++
			util.OrderSyncFailuresTotal.WithLabelValues(failureReason(err)).Inc()
			s.logger.Error("Tracking sync failed for order",
				zap.String("tenant_id", tenantID),
				zap.String("order_id", order.ID),
				zap.String("storefront_order_id", order.StorefrontOrderID),
				zap.Error(err))
		} else if updated {
			result.Synced++
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("Shipping sync completed",
		zap.String("tenant_id", tenantID),
		zap.Int("synced", result.Synced),
		zap.Int("failed", result.Failed))
	return result, nil
}

// syncOrderTracking reconciles one order. An absent tracking number means
// the shipment is not dispatched yet and leaves the order untouched; the
// engine never moves status backward.
func (s *SyncService) syncOrderTracking(ctx context.Context, mp MarketplaceAPI, sf StorefrontAPI, order *models.Order) (bool, error) {
	info, err := mp.GetTrackingInfo(ctx, order.MarketplaceOrderID.String)
	if err != nil {
		return false, err
	}
	if info == nil || info.TrackingNumber == "" {
		return false, nil
	}

	carrier := info.LogisticsService
	if carrier == "" {
		carrier = defaultTrackingCarrier
	}

	order.TrackingNumber = sql.NullString{String: info.TrackingNumber, Valid: true}
	order.ShippingCarrier = sql.NullString{String: carrier, Valid: true}
	order.Status = models.OrderStatusShipped
	order.LastTrackingSync = sql.NullTime{Time: s.now(), Valid: true}

	if err := s.store.SaveOrderTracking(ctx, order); err != nil {
		return false, fmt.Errorf("failed to save tracking for order %s: %w", order.ID, err)
	}

	if err := sf.FulfillOrder(ctx, order.StorefrontSiteID, order.StorefrontOrderID, info.TrackingNumber, info.LogisticsService); err != nil {
		return false, err
	}

	util.OrdersShippedTotal.Inc()
	s.publishOrderShipped(ctx, order)
	return true, nil
}

func (s *SyncService) publishOrderShipped(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderShippedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderShipped,
			Timestamp: s.now(),
		},
		TenantID:        order.TenantID,
		OrderID:         order.ID,
		TrackingNumber:  order.TrackingNumber.String,
		ShippingCarrier: order.ShippingCarrier.String,
	}
	if err := s.events.PublishOrderShipped(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderShipped event", zap.Error(err))
	}
}

// SyncAllShipping mirrors SyncAllInventory's tenant fan-out semantics.
func (s *SyncService) SyncAllShipping(ctx context.Context) {
	ctx, span := util.StartSpan(ctx, "SyncService.SyncAllShipping")
	defer span.End()

	tenants, err := s.store.ListTenantsWithMarketplaceConfigured(ctx)
	if err != nil {
		s.logger.Error("Failed to list tenants for shipping sync", zap.Error(err))
		return
	}

	for i := range tenants {
		if _, err := s.SyncTenantShipping(ctx, tenants[i].ID); err != nil {
			s.logger.Error("Shipping sync failed for tenant",
				zap.String("tenant_id", tenants[i].ID),
				zap.Error(err))
		}
	}
}
