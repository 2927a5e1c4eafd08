package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OrderStatus is the lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusProcessing    OrderStatus = "processing"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// IsTerminal reports whether the status may no longer regress to a pending one.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusPaid || s == OrderStatusCancelled
}

func (s OrderStatus) String() string {
	return string(s)
}

// FunnelContext records which funnel step an order was placed from.
type FunnelContext struct {
	StepID   string `json:"step_id"`
	FunnelID string `json:"funnel_id"`
}

// CustomFields is the JSONB blob attached to an order. It holds the funnel
// context and provider-specific payment metadata.
type CustomFields map[string]any

// Value implements driver.Valuer for JSONB columns.
func (f CustomFields) Value() (driver.Value, error) {
	if f == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner for JSONB columns.
func (f *CustomFields) Scan(src any) error {
	if src == nil {
		*f = CustomFields{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CustomFields", src)
	}
	if len(data) == 0 {
		*f = CustomFields{}
		return nil
	}
	return json.Unmarshal(data, f)
}

// FunnelContext extracts the funnel context, or nil when absent or malformed.
func (f CustomFields) FunnelContext() *FunnelContext {
	raw, ok := f["funnel_context"].(map[string]any)
	if !ok {
		return nil
	}
	stepID, _ := raw["step_id"].(string)
	funnelID, _ := raw["funnel_id"].(string)
	if stepID == "" {
		return nil
	}
	return &FunnelContext{StepID: stepID, FunnelID: funnelID}
}

// NestedString walks a chain of map keys and returns the string leaf, or ""
// when any link is missing or not the expected shape.
func (f CustomFields) NestedString(keys ...string) string {
	var cur any = map[string]any(f)
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[k]
	}
	s, _ := cur.(string)
	return s
}

// Order represents a shopper order.
type Order struct {
	ID            string       `db:"id" json:"id"`
	OrderNumber   string       `db:"order_number" json:"order_number"`
	StoreID       string       `db:"store_id" json:"store_id"`
	CustomerName  string       `db:"customer_name" json:"customer_name"`
	PaymentMethod string       `db:"payment_method" json:"payment_method"`
	Total         int64        `db:"total" json:"total"`
	Status        OrderStatus  `db:"status" json:"status"`
	AccessToken   string       `db:"access_token" json:"-"`
	CustomFields  CustomFields `db:"custom_fields" json:"custom_fields,omitempty"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// OrderItem represents one line of an order.
type OrderItem struct {
	ID        int64  `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID string `db:"product_id" json:"product_id"`
	Quantity  int    `db:"quantity" json:"quantity"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
}

// FunnelStep is one page in a merchant-defined purchase sequence.
// OnSuccessStepID is the linear "next" pointer; empty means the sequence ends.
type FunnelStep struct {
	ID              string `db:"id" json:"id"`
	FunnelID        string `db:"funnel_id" json:"funnel_id"`
	OnSuccessStepID string `db:"on_success_step_id" json:"on_success_step_id,omitempty"`
	Slug            string `db:"slug" json:"slug"`
}

// CheckoutItem is one cart line captured at checkout time.
type CheckoutItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// CheckoutOrderData is the order header captured at checkout time.
type CheckoutOrderData struct {
	StoreID       string         `json:"store_id"`
	CustomerName  string         `json:"customer_name"`
	CustomerEmail string         `json:"customer_email"`
	PaymentMethod string         `json:"payment_method"`
	Total         int64          `json:"total"`
	FunnelContext *FunnelContext `json:"funnel_context,omitempty"`
}

// PendingCheckout is the client-buffered checkout data awaiting payment
// confirmation before an order is persisted. It lives in redis under the
// checkout session key and is consumed exactly once.
type PendingCheckout struct {
	OrderData CheckoutOrderData `json:"order_data"`
	Items     []CheckoutItem    `json:"items"`
}

// PaymentDetails carries the provider's redirect metadata into a deferred
// order creation.
type PaymentDetails struct {
	Method        string    `json:"method"`
	TempID        string    `json:"temp_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Amount        string    `json:"amount,omitempty"`
	Fee           string    `json:"fee,omitempty"`
	VerifiedAt    time.Time `json:"verified_at"`
}
