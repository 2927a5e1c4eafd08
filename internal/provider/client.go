package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"payment-return-service/internal/reconcile"
	"payment-return-service/internal/util"

	"go.uber.org/zap"
)

// Client calls the payment provider's verification endpoint.
type Client struct {
	httpClient *http.Client
	verifyURL  string
	apiKey     string
	logger     *zap.Logger
}

// NewClient creates a verification client.
func NewClient(verifyURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		verifyURL:  verifyURL,
		apiKey:     apiKey,
		logger:     util.GetLogger(),
	}
}

// Verify asks the provider whether the payment behind the transaction
// reference went through. Any non-200 answer is an error, not a verdict.
func (c *Client) Verify(ctx context.Context, req reconcile.VerifyRequest) (reconcile.VerifyResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return reconcile.VerifyResult{}, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, bytes.NewReader(body))
	if err != nil {
		return reconcile.VerifyResult{}, fmt.Errorf("failed to build verify request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return reconcile.VerifyResult{}, fmt.Errorf("verify call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return reconcile.VerifyResult{}, fmt.Errorf("verify call returned status %d", resp.StatusCode)
	}

	var result reconcile.VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return reconcile.VerifyResult{}, fmt.Errorf("failed to decode verify response: %w", err)
	}

	c.logger.Info("Payment verification answered",
		zap.String("order_id", req.OrderID),
		zap.String("method", req.Method),
		zap.String("payment_status", result.PaymentStatus))

	return result, nil
}
