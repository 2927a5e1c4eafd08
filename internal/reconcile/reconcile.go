package reconcile

import (
	"context"
	"fmt"
	"time"

	"payment-return-service/internal/models"
	"payment-return-service/internal/util"

	"go.uber.org/zap"
)

// State is a terminal rendering state of one reconciliation.
type State string

const (
	StateRedirecting          State = "redirecting"
	StateShowingFailure       State = "showing_failure"
	StateShowingSuccess       State = "showing_success"
	StateAwaitingVerification State = "awaiting_verification"
	StateError                State = "error"
)

// Resolution is the outcome of reconciling one payment return: an up-to-date
// order view and a single next destination (or a failure/error rendering).
type Resolution struct {
	State       State
	Order       *models.Order
	Destination string
	RetryPath   string
	Err         error
}

// OrderStore reads and writes persisted orders. Lookups return (nil, nil)
// when no row matches.
type OrderStore interface {
	GetOrderPublic(ctx context.Context, orderID, storeID string) (*models.Order, error)
	CreateDeferredOrder(ctx context.Context, pc *models.PendingCheckout, details models.PaymentDetails) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
	IsCourseOrder(ctx context.Context, ref string) (bool, error)
}

// FunnelStore resolves funnel steps. Lookups return (nil, nil) / "" when no
// row matches.
type FunnelStore interface {
	GetFunnelStep(ctx context.Context, stepID string) (*models.FunnelStep, error)
	GetFunnelStepSlug(ctx context.Context, stepID string) (string, error)
}

// CheckoutSession is the ephemeral per-session state: the pending checkout
// blob, the shopper's cart, and one-shot guards.
type CheckoutSession interface {
	// TakePendingCheckout atomically reads and removes the pending checkout,
	// returning (nil, nil) when absent.
	TakePendingCheckout(ctx context.Context, sessionID string) (*models.PendingCheckout, error)
	// RestorePendingCheckout puts the blob back after a failed create so the
	// shopper can retry without re-entering checkout data.
	RestorePendingCheckout(ctx context.Context, sessionID string, pc *models.PendingCheckout) error
	DiscardPendingCheckout(ctx context.Context, sessionID string) error
	ClearCart(ctx context.Context, sessionID string) error
	// Once reports true the first time it is called for a key, false after.
	Once(ctx context.Context, key string) (bool, error)
}

// VerifyRequest asks the payment provider whether a payment went through.
type VerifyRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Method    string `json:"method"`
}

// VerifyResult is the provider's answer.
type VerifyResult struct {
	PaymentStatus string `json:"payment_status"` // "success" or "failure"
}

// Success reports whether the provider confirmed the payment.
func (r VerifyResult) Success() bool {
	return r.PaymentStatus == "success"
}

// PaymentVerifier re-checks a payment with the provider.
type PaymentVerifier interface {
	Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error)
}

// EventPublisher publishes domain events. Publishing is best effort from the
// reconciler's perspective; failures are logged, never surfaced.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishPaymentVerified(ctx context.Context, event *models.PaymentVerifiedEvent) error
}

// Reconciler resolves a payment-return navigation event into an order view
// and a next-page destination.
type Reconciler struct {
	orders   OrderStore
	funnels  FunnelStore
	session  CheckoutSession
	verifier PaymentVerifier
	events   EventPublisher
	paths    Paths
	logger   *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(
	orders OrderStore,
	funnels FunnelStore,
	session CheckoutSession,
	verifier PaymentVerifier,
	events EventPublisher,
	paths Paths,
) *Reconciler {
	return &Reconciler{
		orders:   orders,
		funnels:  funnels,
		session:  session,
		verifier: verifier,
		events:   events,
		paths:    paths,
		logger:   util.GetLogger(),
	}
}

// Reconcile resolves one payment return. Every outcome, including errors, is
// a terminal rendering state; nothing is retried here.
func (r *Reconciler) Reconcile(ctx context.Context, rc PaymentReturnContext) *Resolution {
	ctx, span := util.StartSpan(ctx, "Reconciler.Reconcile")
	defer span.End()

	// Must be checked before any collaborator call.
	if rc.OrderID == "" && rc.TempID == "" {
		util.ReconciliationsTotal.WithLabelValues("error").Inc()
		return &Resolution{State: StateError, Err: ErrMissingIdentifiers}
	}

	if r.isCoursePayment(ctx, rc) {
		return r.finish(r.reconcileCourse(rc))
	}

	if rc.TempID != "" {
		if rc.Status.Successful() {
			return r.finish(r.reconcileDeferred(ctx, rc))
		}
		return r.finish(r.reconcileDeferredFailure(ctx, rc))
	}

	return r.finish(r.reconcileDirect(ctx, rc))
}

func (r *Reconciler) finish(res *Resolution) *Resolution {
	outcome := map[State]string{
		StateRedirecting:          "redirect",
		StateShowingFailure:       "failure",
		StateShowingSuccess:       "success_card",
		StateAwaitingVerification: "awaiting_verification",
		StateError:                "error",
	}[res.State]
	util.ReconciliationsTotal.WithLabelValues(outcome).Inc()
	return res
}

// reconcileDeferred materializes an order from the pending checkout after the
// provider confirmed payment on the redirect.
func (r *Reconciler) reconcileDeferred(ctx context.Context, rc PaymentReturnContext) *Resolution {
	// The pending checkout is taken atomically before the create call is
	// dispatched: a duplicate invocation of this flow finds nothing and can
	// never create a second order from the same checkout.
	pc, err := r.session.TakePendingCheckout(ctx, rc.SessionID)
	if err != nil {
		return &Resolution{State: StateError, Err: fmt.Errorf("load pending checkout: %w", err)}
	}
	if pc == nil {
		util.DeferredOrderFailuresTotal.WithLabelValues("no_pending").Inc()
		return &Resolution{State: StateError, Err: ErrCheckoutDataMissing, RetryPath: r.paths.Checkout()}
	}

	details := models.PaymentDetails{
		Method:        rc.PaymentMethod,
		TempID:        rc.TempID,
		TransactionID: rc.TransactionID,
		Amount:        rc.PaymentAmount,
		Fee:           rc.PaymentFee,
		VerifiedAt:    time.Now().UTC(),
	}

	order, err := r.orders.CreateDeferredOrder(ctx, pc, details)
	if err != nil {
		util.DeferredOrderFailuresTotal.WithLabelValues("create_error").Inc()
		// Put the checkout data back so the shopper can retry manually.
		if restoreErr := r.session.RestorePendingCheckout(ctx, rc.SessionID, pc); restoreErr != nil {
			r.logger.Error("Failed to restore pending checkout",
				zap.String("session_id", rc.SessionID),
				zap.Error(restoreErr))
		}
		r.logger.Error("Deferred order creation failed",
			zap.String("temp_id", rc.TempID),
			zap.Error(err))
		return &Resolution{
			State:     StateError,
			Err:       fmt.Errorf("%w: %v", ErrOrderCreationFailed, err),
			RetryPath: r.paths.Checkout(),
		}
	}

	util.DeferredOrdersCreatedTotal.Inc()
	r.logger.Info("Deferred order materialized",
		zap.String("order_id", order.ID),
		zap.String("temp_id", rc.TempID),
		zap.String("payment_method", rc.PaymentMethod))

	if err := r.session.ClearCart(ctx, rc.SessionID); err != nil {
		r.logger.Warn("Failed to clear cart", zap.String("session_id", rc.SessionID), zap.Error(err))
	}
	r.publishOrderCreated(ctx, order)

	return &Resolution{
		State:       StateRedirecting,
		Order:       order,
		Destination: r.resolveDestination(ctx, order),
	}
}

// reconcileDeferredFailure handles a failed or cancelled deferred payment.
// No order was ever persisted; a display-only view is synthesized from the
// URL fields.
func (r *Reconciler) reconcileDeferredFailure(ctx context.Context, rc PaymentReturnContext) *Resolution {
	if err := r.session.DiscardPendingCheckout(ctx, rc.SessionID); err != nil {
		r.logger.Warn("Failed to discard pending checkout",
			zap.String("session_id", rc.SessionID), zap.Error(err))
	}

	status := models.OrderStatusPaymentFailed
	if rc.Status == ReturnStatusCancelled {
		status = models.OrderStatusCancelled
	}

	view := &models.Order{
		ID:            rc.TempID,
		PaymentMethod: rc.PaymentMethod,
		StoreID:       rc.StoreID,
		Status:        status,
	}
	return &Resolution{State: StateShowingFailure, Order: view, RetryPath: r.paths.Checkout()}
}

// reconcileDirect handles returns for orders that already existed before the
// provider redirect.
func (r *Reconciler) reconcileDirect(ctx context.Context, rc PaymentReturnContext) *Resolution {
	order, err := r.fetchOrder(ctx, rc.OrderID, rc.StoreID, rc.OrderToken)
	if err != nil {
		return &Resolution{State: StateError, Err: err}
	}

	if rc.Status.Failure() {
		r.cancelOnce(ctx, rc, order)
		// URL-reported status wins over the persisted row for display.
		if rc.Status == ReturnStatusCancelled {
			order.Status = models.OrderStatusCancelled
		} else {
			order.Status = models.OrderStatusPaymentFailed
		}
		return &Resolution{State: StateShowingFailure, Order: order, RetryPath: r.paths.Checkout()}
	}

	switch order.Status {
	case models.OrderStatusPending, models.OrderStatusProcessing:
		// Payment outcome unknown: offer manual verification instead of
		// auto-redirecting.
		return &Resolution{State: StateAwaitingVerification, Order: order}
	case models.OrderStatusPaid:
		return &Resolution{State: StateShowingSuccess, Order: order}
	default:
		if rc.Status.Successful() {
			// Redirect beats a stale persisted failure.
			return &Resolution{State: StateShowingSuccess, Order: order}
		}
		return &Resolution{State: StateShowingFailure, Order: order, RetryPath: r.paths.Checkout()}
	}
}

// fetchOrder performs the public (token-gated) order read.
func (r *Reconciler) fetchOrder(ctx context.Context, orderID, storeID, token string) (*models.Order, error) {
	if token == "" {
		return nil, ErrAccessDenied
	}
	order, err := r.orders.GetOrderPublic(ctx, orderID, storeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderNotFound, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.AccessToken != token {
		return nil, ErrAccessDenied
	}
	return order, nil
}

// cancelOnce transitions a non-terminal order to cancelled, at most once per
// checkout session and fire-and-forget: its failure never blocks rendering.
func (r *Reconciler) cancelOnce(ctx context.Context, rc PaymentReturnContext, order *models.Order) {
	if order.Status.IsTerminal() {
		return
	}

	// The guard is set before the write is issued so an overlapping
	// invocation cannot double-issue it while the first is in flight.
	key := fmt.Sprintf("cancel:%s:%s", rc.SessionID, order.ID)
	first, err := r.session.Once(ctx, key)
	if err != nil {
		r.logger.Warn("Cancellation guard check failed", zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	if !first {
		return
	}

	if err := r.orders.UpdateOrderStatus(ctx, order.ID, models.OrderStatusCancelled); err != nil {
		r.logger.Warn("Cancellation status write failed",
			zap.String("order_id", order.ID), zap.Error(err))
		return
	}
	util.CancellationWritesTotal.Inc()
	r.publishOrderCancelled(ctx, order.ID, string(rc.Status))
}

func (r *Reconciler) publishOrderCreated(ctx context.Context, order *models.Order) {
	event := &models.OrderCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeOrderCreated),
		OrderID:       order.ID,
		StoreID:       order.StoreID,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		Deferred:      true,
	}
	if err := r.events.PublishOrderCreated(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func (r *Reconciler) publishOrderCancelled(ctx context.Context, orderID, reason string) {
	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   orderID,
		Reason:    reason,
	}
	if err := r.events.PublishOrderCancelled(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
}
