package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dropsync-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetTenant retrieves a tenant by ID
func (s *Store) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.GetContext(ctx, &tenant, "SELECT * FROM tenants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &tenant, nil
}

// ListTenantsWithMarketplaceConfigured returns all tenants that have
// marketplace credentials and can participate in a sync run.
func (s *Store) ListTenantsWithMarketplaceConfigured(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := s.db.SelectContext(ctx, &tenants,
		"SELECT * FROM tenants WHERE marketplace_app_key <> '' AND marketplace_app_secret <> '' ORDER BY id")
	return tenants, err
}

// UpdateTenantSettings updates per-tenant settings and, when non-empty,
// the marketplace credentials.
func (s *Store) UpdateTenantSettings(ctx context.Context, tenant *models.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tenants
		SET marketplace_app_key = $1,
		    marketplace_app_secret = $2,
		    price_multiplier = $3,
		    auto_order_placement = $4,
		    inventory_sync_hours = $5,
		    updated_at = NOW()
		WHERE id = $6`,
		tenant.MarketplaceAppKey, tenant.MarketplaceAppSecret,
		tenant.PriceMultiplier, tenant.AutoOrderPlacement,
		tenant.InventorySyncHours, tenant.ID)
	return err
}
