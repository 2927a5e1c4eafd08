package reconcile

import (
	"fmt"
	"net/url"
)

// Paths builds storefront destinations for reconciliation outcomes. Exact
// routing lives in the storefront; this only produces the agreed path shapes.
type Paths struct {
	Base string
}

// OrderConfirmation is the generic order-confirmation page.
func (p Paths) OrderConfirmation(orderID, token string) string {
	return fmt.Sprintf("%s/order/%s?ot=%s", p.Base, url.PathEscape(orderID), url.QueryEscape(token))
}

// FunnelStep is the page for one funnel step, carrying the order id and
// access token so the step can render order details.
func (p Paths) FunnelStep(funnelID, slug, orderID, token string) string {
	return fmt.Sprintf("%s/funnel/%s/%s?orderId=%s&ot=%s",
		p.Base, url.PathEscape(funnelID), url.PathEscape(slug),
		url.QueryEscape(orderID), url.QueryEscape(token))
}

// Checkout is the "try again" target after a failed or cancelled payment.
func (p Paths) Checkout() string {
	return p.Base + "/checkout"
}

// CourseAccess is the destination for course purchases.
func (p Paths) CourseAccess(orderID, token string) string {
	return fmt.Sprintf("%s/courses/access?orderId=%s&ot=%s",
		p.Base, url.QueryEscape(orderID), url.QueryEscape(token))
}
