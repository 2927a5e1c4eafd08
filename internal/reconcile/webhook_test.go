package reconcile

import (
	"context"
	"testing"

	"payment-return-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func webhookEvent(id, orderID, status string) *models.ProviderWebhookEvent {
	return &models.ProviderWebhookEvent{
		BaseEvent: models.BaseEvent{EventID: id, EventType: models.EventTypeProviderWebhook},
		OrderID:   orderID,
		StoreID:   "store-1",
		Status:    status,
	}
}

func TestWebhookAppliesPaidStatus(t *testing.T) {
	orders := newFakeOrders()
	orders.orders["o1"] = &models.Order{ID: "o1", StoreID: "store-1", Status: models.OrderStatusPending}
	p := NewWebhookProcessor(orders, newFakeEventLog())

	err := p.HandleProviderWebhook(context.Background(), webhookEvent("e1", "o1", "paid"))

	require.NoError(t, err)
	assert.Equal(t, []models.OrderStatus{models.OrderStatusPaid}, orders.statusUpdates)
}

func TestWebhookDuplicateEventSkipped(t *testing.T) {
	orders := newFakeOrders()
	orders.orders["o1"] = &models.Order{ID: "o1", StoreID: "store-1", Status: models.OrderStatusPending}
	p := NewWebhookProcessor(orders, newFakeEventLog())

	require.NoError(t, p.HandleProviderWebhook(context.Background(), webhookEvent("e1", "o1", "paid")))
	require.NoError(t, p.HandleProviderWebhook(context.Background(), webhookEvent("e1", "o1", "paid")))

	assert.Len(t, orders.statusUpdates, 1)
}

func TestWebhookNeverRegressesTerminalStatus(t *testing.T) {
	orders := newFakeOrders()
	orders.orders["o1"] = &models.Order{ID: "o1", StoreID: "store-1", Status: models.OrderStatusPaid}
	p := NewWebhookProcessor(orders, newFakeEventLog())

	err := p.HandleProviderWebhook(context.Background(), webhookEvent("e1", "o1", "failed"))

	require.NoError(t, err)
	assert.Empty(t, orders.statusUpdates)
}

func TestWebhookUnknownStatusIgnored(t *testing.T) {
	orders := newFakeOrders()
	orders.orders["o1"] = &models.Order{ID: "o1", StoreID: "store-1", Status: models.OrderStatusPending}
	log := newFakeEventLog()
	p := NewWebhookProcessor(orders, log)

	err := p.HandleProviderWebhook(context.Background(), webhookEvent("e1", "o1", "chargeback"))

	require.NoError(t, err)
	assert.Empty(t, orders.statusUpdates)
	assert.True(t, log.processed["e1"])
}

func TestWebhookUnknownOrderMarkedProcessed(t *testing.T) {
	orders := newFakeOrders()
	log := newFakeEventLog()
	p := NewWebhookProcessor(orders, log)

	err := p.HandleProviderWebhook(context.Background(), webhookEvent("e1", "missing", "paid"))

	require.NoError(t, err)
	assert.True(t, log.processed["e1"])
}
