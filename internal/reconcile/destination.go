package reconcile

import (
	"context"
	"time"

	"payment-return-service/internal/models"
	"payment-return-service/internal/util"

	"go.uber.org/zap"
)

// ResolveDestination resolves the next page for an order the shopper is
// entitled to read. It backs the "view order" action on the success card.
func (r *Reconciler) ResolveDestination(ctx context.Context, orderID, storeID, token string) (string, error) {
	ctx, span := util.StartSpan(ctx, "Reconciler.ResolveDestination")
	defer span.End()

	order, err := r.fetchOrder(ctx, orderID, storeID, token)
	if err != nil {
		return "", err
	}
	return r.resolveDestination(ctx, order), nil
}

// resolveDestination walks funnel context -> step -> next step -> slug.
// Funnel redirection is preferred whenever a valid next step exists; any
// missing link degrades to the generic confirmation page, never an error.
func (r *Reconciler) resolveDestination(ctx context.Context, order *models.Order) string {
	start := time.Now()
	defer func() {
		util.DestinationResolveLatency.Observe(time.Since(start).Seconds())
	}()

	generic := r.paths.OrderConfirmation(order.ID, order.AccessToken)

	fc := order.CustomFields.FunnelContext()
	if fc == nil {
		util.ConfirmationFallbacksTotal.Inc()
		return generic
	}

	step, err := r.funnels.GetFunnelStep(ctx, fc.StepID)
	if err != nil {
		r.logger.Warn("Funnel step lookup failed",
			zap.String("step_id", fc.StepID), zap.Error(err))
		util.ConfirmationFallbacksTotal.Inc()
		return generic
	}
	if step == nil || step.OnSuccessStepID == "" {
		util.ConfirmationFallbacksTotal.Inc()
		return generic
	}

	slug, err := r.funnels.GetFunnelStepSlug(ctx, step.OnSuccessStepID)
	if err != nil {
		r.logger.Warn("Funnel step slug lookup failed",
			zap.String("step_id", step.OnSuccessStepID), zap.Error(err))
		util.ConfirmationFallbacksTotal.Inc()
		return generic
	}
	if slug == "" {
		util.ConfirmationFallbacksTotal.Inc()
		return generic
	}

	util.FunnelRedirectsTotal.Inc()
	return r.paths.FunnelStep(step.FunnelID, slug, order.ID, order.AccessToken)
}
