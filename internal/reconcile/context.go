package reconcile

import "net/url"

// ReturnStatus is the provider-reported outcome embedded in the return URL.
type ReturnStatus string

const (
	ReturnStatusSuccess   ReturnStatus = "success"
	ReturnStatusCompleted ReturnStatus = "completed"
	ReturnStatusFailed    ReturnStatus = "failed"
	ReturnStatusCancelled ReturnStatus = "cancelled"
	ReturnStatusNone      ReturnStatus = ""
)

// Successful reports whether the provider confirmed the payment on redirect.
func (s ReturnStatus) Successful() bool {
	return s == ReturnStatusSuccess || s == ReturnStatusCompleted
}

// Failure reports whether the provider reported a failed or cancelled payment.
func (s ReturnStatus) Failure() bool {
	return s == ReturnStatusFailed || s == ReturnStatusCancelled
}

// PaymentReturnContext is derived from the payment-return URL's query
// parameters. Exactly one of OrderID/TempID is expected; SessionID identifies
// the checkout session (pending checkout, cart, one-shot guards).
type PaymentReturnContext struct {
	OrderID       string
	TempID        string
	Status        ReturnStatus
	PaymentMethod string
	TransactionID string
	PaymentAmount string
	PaymentFee    string
	OrderToken    string
	StoreID       string
	SessionID     string
}

// ParseReturnContext parses the payment-return URL contract.
//
// Query parameters: orderId, tempId, status (success|completed|failed|
// cancelled), pm (payment method, with paymentMethod as fallback),
// transactionId, paymentAmount, paymentFee, ot (order access token),
// storeId, sid (checkout session id).
func ParseReturnContext(q url.Values) PaymentReturnContext {
	method := q.Get("pm")
	if method == "" {
		method = q.Get("paymentMethod")
	}

	status := ReturnStatus(q.Get("status"))
	switch status {
	case ReturnStatusSuccess, ReturnStatusCompleted, ReturnStatusFailed, ReturnStatusCancelled:
	default:
		status = ReturnStatusNone
	}

	return PaymentReturnContext{
		OrderID:       q.Get("orderId"),
		TempID:        q.Get("tempId"),
		Status:        status,
		PaymentMethod: method,
		TransactionID: q.Get("transactionId"),
		PaymentAmount: q.Get("paymentAmount"),
		PaymentFee:    q.Get("paymentFee"),
		OrderToken:    q.Get("ot"),
		StoreID:       q.Get("storeId"),
		SessionID:     q.Get("sid"),
	}
}
