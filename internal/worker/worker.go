package worker

import (
	"context"
	"log"

	"payment-return-service/internal/broker"
	"payment-return-service/internal/reconcile"
)

// WebhookWorker consumes provider webhook events and applies the
// authoritative payment outcome to orders.
type WebhookWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewWebhookWorker creates a new webhook worker
func NewWebhookWorker(consumer *broker.Consumer, processor *reconcile.WebhookProcessor) *WebhookWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnProviderWebhook(processor.HandleProviderWebhook)

	return &WebhookWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *WebhookWorker) Start(ctx context.Context) error {
	log.Println("Starting webhook worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *WebhookWorker) Stop() error {
	log.Println("Stopping webhook worker...")
	return w.consumer.Close()
}
