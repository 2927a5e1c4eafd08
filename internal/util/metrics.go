package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_return_reconciliations_total",
		Help: "Total number of payment-return reconciliations by outcome",
	}, []string{"outcome"})

	DeferredOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deferred_orders_created_total",
		Help: "Total number of orders materialized from a pending checkout",
	})

	DeferredOrderFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deferred_order_failures_total",
		Help: "Total number of failed deferred order materializations",
	}, []string{"reason"})

	CancellationWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_cancellation_writes_total",
		Help: "Total number of cancellation status writes issued on failed returns",
	})

	VerificationAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_verification_attempts_total",
		Help: "Total number of manual payment verification calls to the provider",
	})

	VerificationSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_verification_success_total",
		Help: "Total number of provider-confirmed verifications",
	})

	VerificationFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_verification_failed_total",
		Help: "Total number of provider-reported verification failures",
	})

	FunnelRedirectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "funnel_redirects_total",
		Help: "Total number of destinations resolved to a funnel step",
	})

	ConfirmationFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "confirmation_fallbacks_total",
		Help: "Total number of destinations degraded to the generic confirmation page",
	})

	DestinationResolveLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "destination_resolve_latency_seconds",
		Help:    "Latency of destination resolution",
		Buckets: prometheus.DefBuckets,
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_webhook_events_total",
		Help: "Total number of provider webhook events by result",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
