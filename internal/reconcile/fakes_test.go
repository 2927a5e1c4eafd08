package reconcile

import (
	"context"
	"errors"
	"sync"

	"payment-return-service/internal/models"
)

type fakeOrders struct {
	mu sync.Mutex

	orders       map[string]*models.Order
	courseOrders map[string]bool

	createCalls  int
	createErr    error
	createdOrder *models.Order

	statusUpdates []models.OrderStatus
	updateErr     error

	getCalls    int
	courseCalls int
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{
		orders:       map[string]*models.Order{},
		courseOrders: map[string]bool{},
	}
}

func (f *fakeOrders) GetOrderPublic(_ context.Context, orderID, _ string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	o, ok := f.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) CreateDeferredOrder(_ context.Context, pc *models.PendingCheckout, details models.PaymentDetails) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	order := f.createdOrder
	if order == nil {
		order = &models.Order{
			ID:            "created-order",
			StoreID:       pc.OrderData.StoreID,
			PaymentMethod: details.Method,
			Total:         pc.OrderData.Total,
			Status:        models.OrderStatusPaid,
			AccessToken:   "created-token",
			CustomFields:  models.CustomFields{},
		}
		if fc := pc.OrderData.FunnelContext; fc != nil {
			order.CustomFields["funnel_context"] = map[string]any{
				"step_id":   fc.StepID,
				"funnel_id": fc.FunnelID,
			}
		}
	}
	f.orders[order.ID] = order
	return order, nil
}

func (f *fakeOrders) UpdateOrderStatus(_ context.Context, orderID string, status models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.statusUpdates = append(f.statusUpdates, status)
	if o, ok := f.orders[orderID]; ok {
		o.Status = status
	}
	return nil
}

func (f *fakeOrders) IsCourseOrder(_ context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.courseCalls++
	return f.courseOrders[ref], nil
}

type fakeFunnels struct {
	steps map[string]*models.FunnelStep
	slugs map[string]string

	stepErr error
	slugErr error
	calls   int
}

func newFakeFunnels() *fakeFunnels {
	return &fakeFunnels{
		steps: map[string]*models.FunnelStep{},
		slugs: map[string]string{},
	}
}

func (f *fakeFunnels) GetFunnelStep(_ context.Context, stepID string) (*models.FunnelStep, error) {
	f.calls++
	if f.stepErr != nil {
		return nil, f.stepErr
	}
	return f.steps[stepID], nil
}

func (f *fakeFunnels) GetFunnelStepSlug(_ context.Context, stepID string) (string, error) {
	f.calls++
	if f.slugErr != nil {
		return "", f.slugErr
	}
	return f.slugs[stepID], nil
}

type fakeSession struct {
	mu sync.Mutex

	pending map[string]*models.PendingCheckout
	guards  map[string]bool

	cartsCleared []string
	takeCalls    int
	takeErr      error
	onceErr      error
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		pending: map[string]*models.PendingCheckout{},
		guards:  map[string]bool{},
	}
}

func (f *fakeSession) TakePendingCheckout(_ context.Context, sessionID string) (*models.PendingCheckout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takeCalls++
	if f.takeErr != nil {
		return nil, f.takeErr
	}
	pc, ok := f.pending[sessionID]
	if !ok {
		return nil, nil
	}
	delete(f.pending, sessionID)
	return pc, nil
}

func (f *fakeSession) RestorePendingCheckout(_ context.Context, sessionID string, pc *models.PendingCheckout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[sessionID] = pc
	return nil
}

func (f *fakeSession) DiscardPendingCheckout(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, sessionID)
	return nil
}

func (f *fakeSession) ClearCart(_ context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cartsCleared = append(f.cartsCleared, sessionID)
	return nil
}

func (f *fakeSession) Once(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onceErr != nil {
		return false, f.onceErr
	}
	if f.guards[key] {
		return false, nil
	}
	f.guards[key] = true
	return true, nil
}

func (f *fakeSession) hasPending(sessionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[sessionID]
	return ok
}

type fakeVerifier struct {
	result VerifyResult
	err    error

	calls   int
	lastReq VerifyRequest
}

func (f *fakeVerifier) Verify(_ context.Context, req VerifyRequest) (VerifyResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return VerifyResult{}, f.err
	}
	return f.result, nil
}

type fakePublisher struct {
	created   []*models.OrderCreatedEvent
	cancelled []*models.OrderCancelledEvent
	verified  []*models.PaymentVerifiedEvent
}

func (f *fakePublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakePublisher) PublishOrderCancelled(_ context.Context, e *models.OrderCancelledEvent) error {
	f.cancelled = append(f.cancelled, e)
	return nil
}

func (f *fakePublisher) PublishPaymentVerified(_ context.Context, e *models.PaymentVerifiedEvent) error {
	f.verified = append(f.verified, e)
	return nil
}

type fakeEventLog struct {
	processed map[string]bool
	checkErr  error
}

func newFakeEventLog() *fakeEventLog {
	return &fakeEventLog{processed: map[string]bool{}}
}

func (f *fakeEventLog) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	if f.checkErr != nil {
		return false, f.checkErr
	}
	return f.processed[eventID], nil
}

func (f *fakeEventLog) MarkEventProcessed(_ context.Context, eventID, _ string) error {
	f.processed[eventID] = true
	return nil
}

type testEnv struct {
	orders   *fakeOrders
	funnels  *fakeFunnels
	session  *fakeSession
	verifier *fakeVerifier
	events   *fakePublisher
	rec      *Reconciler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orders:   newFakeOrders(),
		funnels:  newFakeFunnels(),
		session:  newFakeSession(),
		verifier: &fakeVerifier{},
		events:   &fakePublisher{},
	}
	env.rec = NewReconciler(env.orders, env.funnels, env.session, env.verifier, env.events, Paths{Base: "/s/demo"})
	return env
}

var errBoom = errors.New("boom")
