package worker

import (
	"context"
	"encoding/json"
	"log"

	"dropsync-service/internal/broker"
	"dropsync-service/internal/models"
	"dropsync-service/internal/service"

	"github.com/segmentio/kafka-go"
)

// PlacementWorker consumes OrderReceived events and places orders on the
// marketplace for tenants with auto-placement enabled.
type PlacementWorker struct {
	consumer     *broker.Consumer
	orderService *service.OrderService
}

// NewPlacementWorker creates a new placement worker
func NewPlacementWorker(consumer *broker.Consumer, orderService *service.OrderService) *PlacementWorker {
	return &PlacementWorker{
		consumer:     consumer,
		orderService: orderService,
	}
}

// Start starts the worker
func (w *PlacementWorker) Start(ctx context.Context) error {
	log.Println("Starting placement worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		var baseEvent models.BaseEvent
		if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
			log.Printf("Failed to unmarshal event: %v", err)
			return err
		}

		if baseEvent.EventType != models.EventTypeOrderReceived {
			return nil
		}

		var event models.OrderReceivedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			log.Printf("Failed to unmarshal OrderReceived event: %v", err)
			return err
		}

		if !event.AutoPlace {
			return nil
		}

		log.Printf("Auto-placing order %s for tenant %s", event.OrderID, event.TenantID)

		if _, err := w.orderService.PlaceOrder(ctx, event.TenantID, event.StorefrontOrderID); err != nil {
			// Committing despite the failure: placement stays available
			// through the on-demand endpoint, and redelivering a
			// non-retryable placement error would loop forever.
			log.Printf("Auto-placement failed for order %s: %v", event.OrderID, err)
		}

		return nil
	})
}

// Stop stops the worker
func (w *PlacementWorker) Stop() error {
	log.Println("Stopping placement worker...")
	return w.consumer.Close()
}
