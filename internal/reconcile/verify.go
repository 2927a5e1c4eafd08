package reconcile

import (
	"context"

	"payment-return-service/internal/models"
	"payment-return-service/internal/util"

	"go.uber.org/zap"
)

// transactionRefFields maps a payment method to the custom-fields path of its
// transaction reference. Methods without an entry use the top-level
// transactionId field.
var transactionRefFields = map[string][]string{
	"eps":    {"eps", "merchantTransactionId"},
	"stripe": {"stripe", "paymentIntentId"},
	"paypal": {"paypal", "captureId"},
	"mollie": {"mollie", "paymentId"},
}

// transactionRef selects the method-specific transaction reference from the
// order's custom fields, or "" when absent.
func transactionRef(order *models.Order) string {
	keys, ok := transactionRefFields[order.PaymentMethod]
	if !ok {
		keys = []string{"transactionId"}
	}
	return order.CustomFields.NestedString(keys...)
}

// VerifyPayment re-checks an order's payment with the provider. It is only
// allowed while the order is pending or processing and the return URL carries
// no failure signal.
//
// On provider-confirmed success the cart is cleared and the destination
// resolved. On provider-reported failure the displayed status flips to
// payment_failed; the authoritative row is updated by the provider's webhook,
// not here.
func (r *Reconciler) VerifyPayment(ctx context.Context, rc PaymentReturnContext) *Resolution {
	ctx, span := util.StartSpan(ctx, "Reconciler.VerifyPayment")
	defer span.End()

	order, err := r.fetchOrder(ctx, rc.OrderID, rc.StoreID, rc.OrderToken)
	if err != nil {
		return &Resolution{State: StateError, Err: err}
	}

	if rc.Status.Failure() || (order.Status != models.OrderStatusPending && order.Status != models.OrderStatusProcessing) {
		return &Resolution{State: StateError, Order: order, Err: ErrVerificationNotAllowed}
	}

	ref := transactionRef(order)
	if ref == "" {
		// Fail fast: the provider is never called without a reference.
		return &Resolution{State: StateError, Order: order, Err: ErrMissingTransactionReference}
	}

	util.VerificationAttemptsTotal.Inc()
	result, err := r.verifier.Verify(ctx, VerifyRequest{
		OrderID:   order.ID,
		PaymentID: ref,
		Method:    order.PaymentMethod,
	})
	if err != nil {
		r.logger.Error("Payment verification call failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return &Resolution{State: StateError, Order: order, Err: err}
	}

	r.publishPaymentVerified(ctx, order, ref, result.Success())

	if !result.Success() {
		util.VerificationFailedTotal.Inc()
		// View-level only; the webhook applies the authoritative transition.
		order.Status = models.OrderStatusPaymentFailed
		return &Resolution{
			State:     StateShowingFailure,
			Order:     order,
			RetryPath: r.paths.Checkout(),
			Err:       ErrPaymentVerificationFailed,
		}
	}

	util.VerificationSuccessTotal.Inc()
	if err := r.session.ClearCart(ctx, rc.SessionID); err != nil {
		r.logger.Warn("Failed to clear cart", zap.String("session_id", rc.SessionID), zap.Error(err))
	}

	order.Status = models.OrderStatusPaid
	return &Resolution{
		State:       StateRedirecting,
		Order:       order,
		Destination: r.resolveDestination(ctx, order),
	}
}

func (r *Reconciler) publishPaymentVerified(ctx context.Context, order *models.Order, ref string, verified bool) {
	event := &models.PaymentVerifiedEvent{
		BaseEvent:     newBaseEvent(models.EventTypePaymentVerified),
		OrderID:       order.ID,
		PaymentMethod: order.PaymentMethod,
		TransactionID: ref,
		Verified:      verified,
	}
	if err := r.events.PublishPaymentVerified(ctx, event); err != nil {
		r.logger.Error("Failed to publish PaymentVerified event", zap.Error(err))
	}
}
