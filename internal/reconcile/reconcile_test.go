package reconcile

import (
	"context"
	"strings"
	"testing"

	"payment-return-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingCheckout(fc *models.FunnelContext) *models.PendingCheckout {
	return &models.PendingCheckout{
		OrderData: models.CheckoutOrderData{
			StoreID:       "store-1",
			CustomerName:  "Ada",
			PaymentMethod: "eps",
			Total:         4200,
			FunnelContext: fc,
		},
		Items: []models.CheckoutItem{
			{ProductID: "p1", Quantity: 2, UnitPrice: 2100},
		},
	}
}

func TestReconcileMissingIdentifiers(t *testing.T) {
	env := newTestEnv()

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		Status:    ReturnStatusSuccess,
		SessionID: "sess-1",
	})

	assert.Equal(t, StateError, res.State)
	assert.ErrorIs(t, res.Err, ErrMissingIdentifiers)

	// No collaborator may be touched before the identifier check.
	assert.Zero(t, env.orders.getCalls)
	assert.Zero(t, env.orders.createCalls)
	assert.Zero(t, env.orders.courseCalls)
	assert.Zero(t, env.session.takeCalls)
	assert.Zero(t, env.funnels.calls)
	assert.Zero(t, env.verifier.calls)
}

func TestDeferredSuccessCreatesOrderOnce(t *testing.T) {
	env := newTestEnv()
	env.session.pending["sess-1"] = pendingCheckout(nil)

	rc := PaymentReturnContext{
		TempID:        "tmp_123",
		Status:        ReturnStatusSuccess,
		PaymentMethod: "eps",
		SessionID:     "sess-1",
	}

	first := env.rec.Reconcile(context.Background(), rc)
	require.Equal(t, StateRedirecting, first.State)
	require.NotNil(t, first.Order)
	assert.False(t, env.session.hasPending("sess-1"))
	assert.Equal(t, []string{"sess-1"}, env.session.cartsCleared)

	// A duplicate invocation with the same tempId finds no checkout data and
	// must not create a second order.
	second := env.rec.Reconcile(context.Background(), rc)
	assert.Equal(t, StateError, second.State)
	assert.ErrorIs(t, second.Err, ErrCheckoutDataMissing)
	assert.Equal(t, 1, env.orders.createCalls)
}

func TestDeferredSuccessFunnelDestination(t *testing.T) {
	env := newTestEnv()
	env.session.pending["sess-1"] = pendingCheckout(&models.FunnelContext{StepID: "s1", FunnelID: "f1"})
	env.funnels.steps["s1"] = &models.FunnelStep{ID: "s1", FunnelID: "f1", OnSuccessStepID: "s2", Slug: "checkout"}
	env.funnels.slugs["s2"] = "upsell"

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		TempID:        "tmp_123",
		Status:        ReturnStatusSuccess,
		PaymentMethod: "eps",
		SessionID:     "sess-1",
	})

	require.Equal(t, StateRedirecting, res.State)
	assert.True(t, strings.HasPrefix(res.Destination, "/s/demo/funnel/f1/upsell?"), res.Destination)
	assert.Contains(t, res.Destination, "orderId="+res.Order.ID)
	assert.Contains(t, res.Destination, "ot="+res.Order.AccessToken)
	require.Len(t, env.events.created, 1)
	assert.True(t, env.events.created[0].Deferred)
}

func TestDeferredFailureDiscardsPending(t *testing.T) {
	env := newTestEnv()
	env.session.pending["sess-1"] = pendingCheckout(nil)

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		TempID:        "tmp_123",
		Status:        ReturnStatusCancelled,
		PaymentMethod: "eps",
		SessionID:     "sess-1",
	})

	assert.Equal(t, StateShowingFailure, res.State)
	require.NotNil(t, res.Order)
	assert.Equal(t, "tmp_123", res.Order.ID)
	assert.Equal(t, models.OrderStatusCancelled, res.Order.Status)
	assert.Empty(t, res.Destination)
	assert.Equal(t, "/s/demo/checkout", res.RetryPath)
	assert.False(t, env.session.hasPending("sess-1"))
	assert.Zero(t, env.orders.createCalls)
}

func TestDeferredFailureWithoutStatusRendersFailed(t *testing.T) {
	env := newTestEnv()
	env.session.pending["sess-1"] = pendingCheckout(nil)

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		TempID:    "tmp_123",
		SessionID: "sess-1",
	})

	assert.Equal(t, StateShowingFailure, res.State)
	assert.Equal(t, models.OrderStatusPaymentFailed, res.Order.Status)
	assert.Zero(t, env.orders.createCalls)
}

func TestDeferredCreateFailureRestoresPending(t *testing.T) {
	env := newTestEnv()
	env.session.pending["sess-1"] = pendingCheckout(nil)
	env.orders.createErr = errBoom

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		TempID:        "tmp_123",
		Status:        ReturnStatusCompleted,
		PaymentMethod: "eps",
		SessionID:     "sess-1",
	})

	assert.Equal(t, StateError, res.State)
	assert.ErrorIs(t, res.Err, ErrOrderCreationFailed)
	assert.Equal(t, 1, env.orders.createCalls)
	// Preserved for manual retry, not discarded.
	assert.True(t, env.session.hasPending("sess-1"))
	assert.Empty(t, env.session.cartsCleared)
}

func TestStatusPrecedenceURLOverridesPersisted(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusPaid, AccessToken: "tok",
	}

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusFailed,
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateShowingFailure, res.State)
	assert.Equal(t, models.OrderStatusPaymentFailed, res.Order.Status)
	// Terminal persisted status: no cancellation write.
	assert.Empty(t, env.orders.statusUpdates)
}

func TestCancellationWrittenAtMostOnce(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusPending, AccessToken: "tok",
	}

	rc := PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusCancelled,
		SessionID:  "sess-1",
	}

	for i := 0; i < 3; i++ {
		res := env.rec.Reconcile(context.Background(), rc)
		assert.Equal(t, StateShowingFailure, res.State)
		assert.Equal(t, models.OrderStatusCancelled, res.Order.Status)
		assert.Equal(t, "/s/demo/checkout", res.RetryPath)
	}

	assert.Equal(t, []models.OrderStatus{models.OrderStatusCancelled}, env.orders.statusUpdates)
	assert.Len(t, env.events.cancelled, 1)
}

func TestCancellationWriteFailureDoesNotBlockRendering(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusPending, AccessToken: "tok",
	}
	env.orders.updateErr = errBoom

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusFailed,
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateShowingFailure, res.State)
	assert.Nil(t, res.Err)
}

func TestPendingOrderAwaitsVerification(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusProcessing, AccessToken: "tok",
	}

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusSuccess,
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateAwaitingVerification, res.State)
	assert.Empty(t, res.Destination)
	assert.Zero(t, env.verifier.calls)
}

func TestPaidOrderShowsSuccessCard(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusPaid, AccessToken: "tok",
	}

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusSuccess,
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateShowingSuccess, res.State)
}

func TestMissingTokenIsAccessDenied(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusPaid, AccessToken: "tok",
	}

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:   "o1",
		StoreID:   "store-1",
		SessionID: "sess-1",
	})

	assert.Equal(t, StateError, res.State)
	assert.ErrorIs(t, res.Err, ErrAccessDenied)
	// The read is never attempted without a token.
	assert.Zero(t, env.orders.getCalls)
}

func TestWrongTokenIsAccessDenied(t *testing.T) {
	env := newTestEnv()
	env.orders.orders["o1"] = &models.Order{
		ID: "o1", StoreID: "store-1", Status: models.OrderStatusPaid, AccessToken: "tok",
	}

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "wrong",
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateError, res.State)
	assert.ErrorIs(t, res.Err, ErrAccessDenied)
}

func TestUnknownOrderIsNotFound(t *testing.T) {
	env := newTestEnv()

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "nope",
		StoreID:    "store-1",
		OrderToken: "tok",
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateError, res.State)
	assert.ErrorIs(t, res.Err, ErrOrderNotFound)
}

func TestCourseOrderRedirectsToCourseAccess(t *testing.T) {
	env := newTestEnv()
	env.orders.courseOrders["o1"] = true

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusSuccess,
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateRedirecting, res.State)
	assert.Contains(t, res.Destination, "/s/demo/courses/access?orderId=o1")
	// The standard flow's collaborators stay untouched.
	assert.Zero(t, env.orders.getCalls)
	assert.Zero(t, env.funnels.calls)
}

func TestCourseOrderFailureShowsFailure(t *testing.T) {
	env := newTestEnv()
	env.orders.courseOrders["o1"] = true

	res := env.rec.Reconcile(context.Background(), PaymentReturnContext{
		OrderID:    "o1",
		StoreID:    "store-1",
		OrderToken: "tok",
		Status:     ReturnStatusCancelled,
		SessionID:  "sess-1",
	})

	assert.Equal(t, StateShowingFailure, res.State)
	assert.Equal(t, models.OrderStatusCancelled, res.Order.Status)
}
