package models

import "time"

// Event types
const (
	EventTypeOrderCreated    = "ORDER_CREATED"
	EventTypeOrderCancelled  = "ORDER_CANCELLED"
	EventTypePaymentVerified = "PAYMENT_VERIFIED"
	EventTypeProviderWebhook = "PROVIDER_WEBHOOK"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is materialized. Deferred is true
// when the order was created from a pending checkout after the provider
// confirmed payment on the return URL.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	StoreID       string `json:"store_id"`
	Total         int64  `json:"total"`
	PaymentMethod string `json:"payment_method"`
	Deferred      bool   `json:"deferred"`
}

// OrderCancelledEvent published when a payment-return failure transitions an
// order to cancelled.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// PaymentVerifiedEvent published after a manual verification round trip to the
// provider, regardless of outcome.
type PaymentVerifiedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	PaymentMethod string `json:"payment_method"`
	TransactionID string `json:"transaction_id"`
	Verified      bool   `json:"verified"`
}

// ProviderWebhookEvent is the payment provider's asynchronous notification,
// bridged onto the event bus. It carries the authoritative payment outcome.
type ProviderWebhookEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	StoreID       string `json:"store_id"`
	Status        string `json:"status"` // provider vocabulary: paid, failed, expired
	TransactionID string `json:"transaction_id"`
	Method        string `json:"method"`
}
