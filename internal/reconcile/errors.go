package reconcile

import "errors"

// Domain errors surfaced by reconciliation. All of them map to a rendered
// state with a recovery action; none should crash a request.
var (
	// ErrMissingIdentifiers - the return URL carried neither an order id nor a
	// temp checkout id.
	ErrMissingIdentifiers = errors.New("return URL carries no order or checkout identifier")

	// ErrAccessDenied - the order access token is missing or does not match.
	ErrAccessDenied = errors.New("order access token missing or invalid")

	// ErrOrderNotFound - the order id resolves to no row, or the fetch failed.
	ErrOrderNotFound = errors.New("order not found")

	// ErrCheckoutDataMissing - deferred-payment success return but no pending
	// checkout under the session key. The shopper must restart checkout.
	ErrCheckoutDataMissing = errors.New("pending checkout data missing")

	// ErrOrderCreationFailed - materializing the deferred order failed. The
	// pending checkout is restored so the shopper can retry manually.
	ErrOrderCreationFailed = errors.New("order creation failed")

	// ErrPaymentVerificationFailed - the provider reported the payment as not
	// successful during manual verification.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")

	// ErrMissingTransactionReference - the method-specific transaction
	// reference is absent from the order's custom fields; the provider is
	// never called.
	ErrMissingTransactionReference = errors.New("missing transaction reference")

	// ErrVerificationNotAllowed - manual verification requested for an order
	// that is not awaiting one.
	ErrVerificationNotAllowed = errors.New("verification not allowed in current status")
)

// ErrorCode maps a reconciliation error to a stable machine-readable code for
// API responses. Unknown errors map to "internal_error".
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingIdentifiers):
		return "missing_identifiers"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, ErrCheckoutDataMissing):
		return "checkout_data_missing"
	case errors.Is(err, ErrOrderCreationFailed):
		return "order_creation_failed"
	case errors.Is(err, ErrPaymentVerificationFailed):
		return "payment_verification_failed"
	case errors.Is(err, ErrMissingTransactionReference):
		return "missing_transaction_reference"
	case errors.Is(err, ErrVerificationNotAllowed):
		return "verification_not_allowed"
	default:
		return "internal_error"
	}
}
