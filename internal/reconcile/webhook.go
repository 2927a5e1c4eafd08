package reconcile

import (
	"context"
	"fmt"

	"payment-return-service/internal/models"
	"payment-return-service/internal/util"

	"go.uber.org/zap"
)

// EventLog records processed event ids for exactly-once webhook handling.
type EventLog interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// WebhookProcessor applies the provider's asynchronous payment notifications
// to the order row. The redirect path reads the row it maintains; a webhook
// landing after the shopper already returned is the normal case, not a race.
type WebhookProcessor struct {
	orders   OrderStore
	eventLog EventLog
	logger   *zap.Logger
}

// NewWebhookProcessor creates a webhook processor.
func NewWebhookProcessor(orders OrderStore, eventLog EventLog) *WebhookProcessor {
	return &WebhookProcessor{
		orders:   orders,
		eventLog: eventLog,
		logger:   util.GetLogger(),
	}
}

// HandleProviderWebhook applies one provider notification. Duplicate events
// are skipped via the event log; terminal order statuses are never regressed.
func (p *WebhookProcessor) HandleProviderWebhook(ctx context.Context, event *models.ProviderWebhookEvent) error {
	ctx, span := util.StartSpan(ctx, "WebhookProcessor.HandleProviderWebhook")
	defer span.End()

	processed, err := p.eventLog.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		p.logger.Info("Webhook event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	status, ok := orderStatusForProvider(event.Status)
	if !ok {
		p.logger.Info("Ignoring provider webhook status",
			zap.String("order_id", event.OrderID),
			zap.String("status", event.Status))
		util.WebhookEventsTotal.WithLabelValues("ignored").Inc()
		return p.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
	}

	order, err := p.orders.GetOrderPublic(ctx, event.OrderID, event.StoreID)
	if err != nil {
		return fmt.Errorf("failed to load order %s: %w", event.OrderID, err)
	}
	if order == nil {
		p.logger.Warn("Webhook for unknown order", zap.String("order_id", event.OrderID))
		util.WebhookEventsTotal.WithLabelValues("unknown_order").Inc()
		return p.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
	}

	if order.Status.IsTerminal() {
		p.logger.Info("Order already terminal, skipping webhook transition",
			zap.String("order_id", order.ID),
			zap.String("status", string(order.Status)))
		util.WebhookEventsTotal.WithLabelValues("terminal_skip").Inc()
		return p.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
	}

	if err := p.orders.UpdateOrderStatus(ctx, order.ID, status); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	util.WebhookEventsTotal.WithLabelValues("applied").Inc()
	p.logger.Info("Applied provider webhook",
		zap.String("order_id", order.ID),
		zap.String("status", string(status)))

	return p.eventLog.MarkEventProcessed(ctx, event.EventID, event.EventType)
}

// orderStatusForProvider maps the provider's webhook vocabulary onto order
// statuses. Unknown values are ignored.
func orderStatusForProvider(provider string) (models.OrderStatus, bool) {
	switch provider {
	case "paid", "settled":
		return models.OrderStatusPaid, true
	case "failed", "expired":
		return models.OrderStatusPaymentFailed, true
	case "cancelled":
		return models.OrderStatusCancelled, true
	default:
		return "", false
	}
}
