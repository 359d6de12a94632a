package store

import (
	"context"
	"database/sql"
	"fmt"

	"dropsync-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateOrder creates a new order. The unique constraint on
// (tenant_id, storefront_order_id) is the idempotency key for webhook
// ingestion: a duplicate delivery fails here instead of creating a twin.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders
			(id, tenant_id, storefront_order_id, storefront_site_id,
			 customer_email, total_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.ID, order.TenantID, order.StorefrontOrderID,
		order.StorefrontSiteID, order.CustomerEmail,
		order.TotalAmount, order.Status)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByStorefrontID retrieves an order by its storefront order id,
// nil when none exists.
func (s *Store) GetOrderByStorefrontID(ctx context.Context, tenantID, storefrontOrderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE tenant_id = $1 AND storefront_order_id = $2",
		tenantID, storefrontOrderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders retrieves orders for a tenant, newest first
func (s *Store) ListOrders(ctx context.Context, tenantID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE tenant_id = $1 ORDER BY created_at DESC", tenantID)
	return orders, err
}

// ListOrdersForTracking retrieves orders eligible for shipping sync: status
// in the given set and a marketplace order id already recorded.
func (s *Store) ListOrdersForTracking(ctx context.Context, tenantID string, statuses []string) ([]models.Order, error) {
	query, args, err := sqlx.In(
		"SELECT * FROM orders WHERE tenant_id = ? AND status IN (?) AND marketplace_order_id IS NOT NULL",
		tenantID, statuses)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var orders []models.Order
	err = s.db.SelectContext(ctx, &orders, query, args...)
	return orders, err
}

// MarkOrderPlaced records the marketplace order id and advances the order
// to placed, atomically with the placement timestamp.
func (s *Store) MarkOrderPlaced(ctx context.Context, orderID, marketplaceOrderID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET marketplace_order_id = $1, status = $2, order_placed_at = NOW(), updated_at = NOW()
		WHERE id = $3`,
		marketplaceOrderID, models.OrderStatusPlaced, orderID)
	return err
}

// SaveOrderTracking writes the tracking fields and the placed -> shipped
// transition in one statement, so a per-item failure never leaves a
// half-updated order.
func (s *Store) SaveOrderTracking(ctx context.Context, order *models.Order) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET tracking_number = $1, shipping_carrier = $2, status = $3,
		    last_tracking_sync = $4, updated_at = NOW()
		WHERE id = $5`,
		order.TrackingNumber, order.ShippingCarrier, order.Status,
		order.LastTrackingSync, order.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order not found: %s", order.ID)
	}
	return nil
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, marketplace_product_id, storefront_product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.MarketplaceProductID, item.StorefrontProductID,
		item.Quantity, item.UnitPrice)
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}
