package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MappingsSyncedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mappings_synced_total",
		Help: "Total number of product mappings with inventory synced",
	})

	MappingSyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mapping_sync_failures_total",
		Help: "Total number of per-mapping inventory sync failures",
	}, []string{"reason"})

	OrdersShippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_shipped_total",
		Help: "Total number of orders advanced to shipped by tracking sync",
	})

	OrderSyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_sync_failures_total",
		Help: "Total number of per-order tracking sync failures",
	}, []string{"reason"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed on the marketplace",
	})

	OrdersReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_received_total",
		Help: "Total number of orders ingested from storefront webhooks",
	})

	ProductsImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_imported_total",
		Help: "Total number of products imported from the marketplace",
	})

	SyncRunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_run_duration_seconds",
		Help:    "Duration of per-tenant sync runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	MarketplaceRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_request_duration_seconds",
		Help:    "Latency of signed marketplace API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
