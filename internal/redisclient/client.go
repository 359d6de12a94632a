package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func leaseKey(tenantID, kind string) string {
	return fmt.Sprintf("sync:lease:%s:%s", kind, tenantID)
}

func stockKey(tenantID, marketplaceProductID string) string {
	return fmt.Sprintf("sync:stock:%s:%s", tenantID, marketplaceProductID)
}

// AcquireSyncLease takes a per-tenant lease for one sync kind so two engine
// instances never reconcile the same tenant concurrently. Returns false when
// another instance holds the lease.
func (c *Client) AcquireSyncLease(ctx context.Context, tenantID, kind string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, leaseKey(tenantID, kind), time.Now().Unix(), ttl).Result()
}

// ReleaseSyncLease releases a previously acquired lease.
func (c *Client) ReleaseSyncLease(ctx context.Context, tenantID, kind string) error {
	return c.rdb.Del(ctx, leaseKey(tenantID, kind)).Err()
}

// GetCachedStock returns the last stock level pushed to the storefront for a
// mapping, or -1 when nothing is cached.
func (c *Client) GetCachedStock(ctx context.Context, tenantID, marketplaceProductID string) (int, error) {
	val, err := c.rdb.Get(ctx, stockKey(tenantID, marketplaceProductID)).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	stock, err := strconv.Atoi(val)
	if err != nil {
		return -1, nil
	}
	return stock, nil
}

// SetCachedStock records the stock level pushed to the storefront.
func (c *Client) SetCachedStock(ctx context.Context, tenantID, marketplaceProductID string, stock int, ttl time.Duration) error {
	return c.rdb.Set(ctx, stockKey(tenantID, marketplaceProductID), stock, ttl).Err()
}
