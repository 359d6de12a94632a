package scheduler

import (
	"context"
	"time"

	"dropsync-service/internal/service"
	"dropsync-service/internal/util"

	"go.uber.org/zap"
)

// Scheduler drives the periodic sync runs: inventory on a slow cadence,
// shipment tracking on a fast one. Both entry points swallow tenant-level
// failures, so a tick never aborts the loop.
type Scheduler struct {
	sync           *service.SyncService
	inventoryEvery time.Duration
	trackingEvery  time.Duration
	logger         *zap.Logger
}

// New creates a scheduler around the reconciliation engine.
func New(sync *service.SyncService, inventoryEvery, trackingEvery time.Duration) *Scheduler {
	return &Scheduler{
		sync:           sync,
		inventoryEvery: inventoryEvery,
		trackingEvery:  trackingEvery,
		logger:         util.GetLogger(),
	}
}

// Start launches both loops. They stop when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx, "inventory", s.inventoryEvery, s.sync.SyncAllInventory)
	go s.run(ctx, "tracking", s.trackingEvery, s.sync.SyncAllShipping)
}

func (s *Scheduler) run(ctx context.Context, name string, every time.Duration, tick func(context.Context)) {
	s.logger.Info("Sync scheduler started",
		zap.String("kind", name),
		zap.Duration("interval", every))

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync scheduler stopped", zap.String("kind", name))
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}
