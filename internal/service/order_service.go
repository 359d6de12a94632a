package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dropsync-service/internal/marketplace"
	"dropsync-service/internal/models"
	"dropsync-service/internal/storefront"
	"dropsync-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookOrder is the storefront order webhook payload. Amounts arrive in
// minor units.
type WebhookOrder struct {
	OrderID      string `json:"orderId"`
	SiteID       string `json:"siteId"`
	CustomerInfo struct {
		Email string `json:"email"`
	} `json:"customerInfo"`
	Totals struct {
		Total int64 `json:"total"`
	} `json:"totals"`
	PurchasedItems []WebhookOrderItem `json:"purchasedItems"`
}

// WebhookOrderItem is one purchased line in the webhook payload.
type WebhookOrderItem struct {
	ProductID string `json:"productId"`
	Count     int    `json:"count"`
	Price     int64  `json:"price"`
}

// OrderService ingests storefront orders and places them on the
// marketplace.
type OrderService struct {
	store          Store
	events         EventSink
	newMarketplace MarketplaceFactory
	newStorefront  StorefrontFactory
	logger         *zap.Logger
}

// NewOrderService creates an order service. events may be nil.
func NewOrderService(store Store, events EventSink, newMarketplace MarketplaceFactory, newStorefront StorefrontFactory) *OrderService {
	return &OrderService{
		store:          store,
		events:         events,
		newMarketplace: newMarketplace,
		newStorefront:  newStorefront,
		logger:         util.GetLogger(),
	}
}

// IngestWebhookOrder records an incoming storefront order. The unique
// constraint on (tenant, storefront order id) is the idempotency key: a
// duplicate delivery returns the existing order with created=false.
func (s *OrderService) IngestWebhookOrder(ctx context.Context, tenantID string, payload *WebhookOrder) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.IngestWebhookOrder")
	defer span.End()

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to resolve tenant %s: %w", tenantID, err)
	}

	existing, err := s.store.GetOrderByStorefrontID(ctx, tenantID, payload.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existing order: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate webhook delivery",
			zap.String("tenant_id", tenantID),
			zap.String("storefront_order_id", payload.OrderID))
		return existing, false, nil
	}

	order := &models.Order{
		ID:                uuid.New().String(),
		TenantID:          tenantID,
		StorefrontOrderID: payload.OrderID,
		StorefrontSiteID:  payload.SiteID,
		CustomerEmail:     payload.CustomerInfo.Email,
		TotalAmount:       float64(payload.Totals.Total) / 100,
		Status:            models.OrderStatusPending,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		// A concurrent duplicate delivery can race past the existence
		// check; the unique constraint settles it.
		if dup, dupErr := s.store.GetOrderByStorefrontID(ctx, tenantID, payload.OrderID); dupErr == nil && dup != nil {
			return dup, false, nil
		}
		return nil, false, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range payload.PurchasedItems {
		mapping, err := s.store.GetMappingByStorefrontProduct(ctx, tenantID, item.ProductID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve mapping for product %s: %w", item.ProductID, err)
		}
		if mapping == nil {
			s.logger.Warn("Webhook item has no product mapping",
				zap.String("tenant_id", tenantID),
				zap.String("storefront_product_id", item.ProductID))
			continue
		}

		orderItem := &models.OrderItem{
			OrderID:              order.ID,
			MarketplaceProductID: mapping.MarketplaceProductID,
			StorefrontProductID:  item.ProductID,
			Quantity:             item.Count,
			UnitPrice:            float64(item.Price) / 100,
		}
		if err := s.store.CreateOrderItem(ctx, orderItem); err != nil {
			return nil, false, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	util.OrdersReceivedTotal.Inc()
	s.logger.Info("Order ingested",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", order.ID),
		zap.String("storefront_order_id", order.StorefrontOrderID))

	s.publishOrderReceived(ctx, tenant, order)
	return order, true, nil
}

func (s *OrderService) publishOrderReceived(ctx context.Context, tenant *models.Tenant, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderReceivedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderReceived,
			Timestamp: time.Now(),
		},
		TenantID:          order.TenantID,
		OrderID:           order.ID,
		StorefrontOrderID: order.StorefrontOrderID,
		TotalAmount:       order.TotalAmount,
		AutoPlace:         tenant.AutoOrderPlacement,
	}
	if err := s.events.PublishOrderReceived(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderReceived event", zap.Error(err))
	}
}

// PlaceOrder places a pending order on the marketplace. The order's
// storefront shipping address is forwarded with each line item; the last
// acknowledged marketplace order id is recorded and the order advances to
// placed.
func (s *OrderService) PlaceOrder(ctx context.Context, tenantID, storefrontOrderID string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	tenant, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, &ConfigError{TenantID: tenantID, Reason: err.Error()}
	}
	if !tenant.MarketplaceConfigured() {
		return nil, &ConfigError{TenantID: tenantID, Reason: "marketplace credentials missing"}
	}

	order, err := s.store.GetOrderByStorefrontID(ctx, tenantID, storefrontOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if order == nil {
		return nil, fmt.Errorf("order not found: %s", storefrontOrderID)
	}
	if order.MarketplaceOrderID.Valid {
		return nil, fmt.Errorf("order %s already placed on marketplace", storefrontOrderID)
	}

	mp, sf := tenantGateways(tenant, s.newMarketplace, s.newStorefront)

	sfOrder, err := sf.GetOrder(ctx, order.StorefrontSiteID, order.StorefrontOrderID)
	if err != nil {
		return nil, err
	}
	if sfOrder == nil || sfOrder.ShippingAddress == nil {
		return nil, fmt.Errorf("order %s has no shipping address", storefrontOrderID)
	}
	address := toMarketplaceAddress(sfOrder.ShippingAddress)

	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("order %s has no mapped items", storefrontOrderID)
	}

	var marketplaceOrderID string
	for _, item := range items {
		placed, err := mp.PlaceOrder(ctx, item.MarketplaceProductID, item.Quantity, address)
		if err != nil {
			return nil, err
		}
		if placed != nil && placed.OrderID != "" {
			marketplaceOrderID = placed.OrderID
		}
	}
	if marketplaceOrderID == "" {
		return nil, fmt.Errorf("marketplace did not acknowledge order %s", storefrontOrderID)
	}

	if err := s.store.MarkOrderPlaced(ctx, order.ID, marketplaceOrderID); err != nil {
		return nil, fmt.Errorf("failed to mark order placed: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed on marketplace",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", order.ID),
		zap.String("marketplace_order_id", marketplaceOrderID))

	s.publishOrderPlaced(ctx, order, marketplaceOrderID)

	return s.store.GetOrderByID(ctx, order.ID)
}

func (s *OrderService) publishOrderPlaced(ctx context.Context, order *models.Order, marketplaceOrderID string) {
	if s.events == nil {
		return
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		TenantID:           order.TenantID,
		OrderID:            order.ID,
		MarketplaceOrderID: marketplaceOrderID,
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}
}

// ListOrders returns a tenant's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, tenantID string) ([]models.Order, error) {
	return s.store.ListOrders(ctx, tenantID)
}

// GetOrder returns one order with its line items.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return order, items, nil
}

func toMarketplaceAddress(addr *storefront.Address) marketplace.ShippingAddress {
	address := addr.Line1
	if addr.Line2 != "" {
		address = strings.TrimSpace(address + " " + addr.Line2)
	}
	return marketplace.ShippingAddress{
		ContactPerson: addr.Addressee,
		Phone:         addr.Phone,
		Country:       addr.Country,
		Province:      addr.State,
		City:          addr.City,
		Address:       address,
		Zip:           addr.PostalCode,
	}
}
