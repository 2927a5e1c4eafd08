package reconcile

import (
	"context"

	"payment-return-service/internal/models"

	"go.uber.org/zap"
)

// PaymentKind distinguishes the two reconciliation variants. Course purchases
// are resolved by an entirely separate branch; their logic never interleaves
// with the standard flow.
type PaymentKind int

const (
	PaymentStandard PaymentKind = iota
	PaymentCourse
)

// isCoursePayment probes whether the return belongs to a course purchase.
// A probe failure is logged and treated as the standard variant.
func (r *Reconciler) isCoursePayment(ctx context.Context, rc PaymentReturnContext) bool {
	ref := rc.OrderID
	if ref == "" {
		ref = rc.TempID
	}
	isCourse, err := r.orders.IsCourseOrder(ctx, ref)
	if err != nil {
		r.logger.Warn("Course classification probe failed", zap.String("ref", ref), zap.Error(err))
		return false
	}
	return isCourse
}

// reconcileCourse resolves a course purchase. Course orders are always
// created up front, so there is no deferred branch: a failure signal renders
// the failure view, anything else redirects to course access.
func (r *Reconciler) reconcileCourse(rc PaymentReturnContext) *Resolution {
	if rc.Status.Failure() {
		status := models.OrderStatusPaymentFailed
		if rc.Status == ReturnStatusCancelled {
			status = models.OrderStatusCancelled
		}
		view := &models.Order{ID: rc.OrderID, StoreID: rc.StoreID, PaymentMethod: rc.PaymentMethod, Status: status}
		return &Resolution{State: StateShowingFailure, Order: view, RetryPath: r.paths.Checkout()}
	}
	return &Resolution{
		State:       StateRedirecting,
		Destination: r.paths.CourseAccess(rc.OrderID, rc.OrderToken),
	}
}
