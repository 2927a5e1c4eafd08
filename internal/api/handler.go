package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"payment-return-service/internal/models"
	"payment-return-service/internal/reconcile"
	"payment-return-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReconcileService is the slice of the reconciler the HTTP layer needs.
type ReconcileService interface {
	Reconcile(ctx context.Context, rc reconcile.PaymentReturnContext) *reconcile.Resolution
	VerifyPayment(ctx context.Context, rc reconcile.PaymentReturnContext) *reconcile.Resolution
	ResolveDestination(ctx context.Context, orderID, storeID, token string) (string, error)
}

// WebhookPublisher bridges provider webhook notifications onto the event bus.
type WebhookPublisher interface {
	PublishProviderWebhook(ctx context.Context, event *models.ProviderWebhookEvent) error
}

// Handler contains HTTP handlers
type Handler struct {
	reconciler ReconcileService
	webhooks   WebhookPublisher
}

// NewHandler creates a new HTTP handler
func NewHandler(reconciler ReconcileService, webhooks WebhookPublisher) *Handler {
	return &Handler{
		reconciler: reconciler,
		webhooks:   webhooks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/payment/return", h.paymentReturn)
		v1.POST("/orders/:id/verify", h.verifyPayment)
		v1.GET("/orders/:id/destination", h.orderDestination)
		v1.POST("/webhooks/payment", h.paymentWebhook)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// paymentReturn reconciles a payment-provider redirect into an order view and
// a next destination.
func (h *Handler) paymentReturn(c *gin.Context) {
	rc := reconcile.ParseReturnContext(c.Request.URL.Query())
	res := h.reconciler.Reconcile(c.Request.Context(), rc)
	c.JSON(statusForResolution(res), resolutionBody(res))
}

// verifyPayment runs a manual verification round trip with the provider.
func (h *Handler) verifyPayment(c *gin.Context) {
	rc := reconcile.ParseReturnContext(c.Request.URL.Query())
	rc.OrderID = c.Param("id")
	res := h.reconciler.VerifyPayment(c.Request.Context(), rc)
	c.JSON(statusForResolution(res), resolutionBody(res))
}

// orderDestination resolves the next page for an order; backs the "view
// order" action on the success card.
func (h *Handler) orderDestination(c *gin.Context) {
	destination, err := h.reconciler.ResolveDestination(
		c.Request.Context(),
		c.Param("id"),
		c.Query("storeId"),
		c.Query("ot"),
	)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": reconcile.ErrorCode(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"destination": destination})
}

// webhookPayload is the provider's notification body.
type webhookPayload struct {
	OrderID       string `json:"order_id" binding:"required"`
	StoreID       string `json:"store_id"`
	Status        string `json:"status" binding:"required"`
	TransactionID string `json:"transaction_id"`
	Method        string `json:"method"`
}

// paymentWebhook accepts the provider's asynchronous notification and bridges
// it onto the event bus; the webhook worker applies it.
func (h *Handler) paymentWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid webhook payload",
			"details": err.Error(),
		})
		return
	}

	event := &models.ProviderWebhookEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeProviderWebhook,
			Timestamp: time.Now(),
		},
		OrderID:       payload.OrderID,
		StoreID:       payload.StoreID,
		Status:        payload.Status,
		TransactionID: payload.TransactionID,
		Method:        payload.Method,
	}

	if err := h.webhooks.PublishProviderWebhook(c.Request.Context(), event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to enqueue webhook event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

// resolutionBody renders a resolution for the storefront.
func resolutionBody(res *reconcile.Resolution) gin.H {
	body := gin.H{"state": res.State}
	if res.Order != nil {
		body["order"] = res.Order
	}
	if res.Destination != "" {
		body["destination"] = res.Destination
	}
	if res.RetryPath != "" {
		body["retry_path"] = res.RetryPath
	}
	if res.Err != nil {
		body["error"] = reconcile.ErrorCode(res.Err)
	}
	return body
}

// statusForResolution maps a resolution to an HTTP status. Failure renderings
// are still 200s: they are valid pages, not transport errors.
func statusForResolution(res *reconcile.Resolution) int {
	if res.State != reconcile.StateError {
		return http.StatusOK
	}
	return statusForError(res.Err)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrMissingIdentifiers):
		return http.StatusBadRequest
	case errors.Is(err, reconcile.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, reconcile.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, reconcile.ErrCheckoutDataMissing),
		errors.Is(err, reconcile.ErrMissingTransactionReference),
		errors.Is(err, reconcile.ErrVerificationNotAllowed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
