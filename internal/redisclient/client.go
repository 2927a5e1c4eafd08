package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"payment-return-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/take_pending.lua
var takePendingScript string

// Client holds the per-session ephemeral state: pending checkout blobs,
// shopper carts, and one-shot guards.
type Client struct {
	rdb        *redis.Client
	takeScript *redis.Script
	pendingTTL time.Duration
	guardTTL   time.Duration
}

// NewClient creates a new Redis client with the take script loaded
func NewClient(addr, password string, db int, pendingTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:        rdb,
		takeScript: redis.NewScript(takePendingScript),
		pendingTTL: pendingTTL,
		guardTTL:   time.Hour,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func pendingKey(sessionID string) string {
	return fmt.Sprintf("pending-checkout:%s", sessionID)
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

// PutPendingCheckout stores the checkout blob captured before the payment
// redirect. Called by the checkout flow and again when a failed deferred
// creation restores the blob for manual retry.
func (c *Client) PutPendingCheckout(ctx context.Context, sessionID string, pc *models.PendingCheckout) error {
	data, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("failed to marshal pending checkout: %w", err)
	}
	return c.rdb.Set(ctx, pendingKey(sessionID), data, c.pendingTTL).Err()
}

// RestorePendingCheckout puts the blob back after a failed order creation.
func (c *Client) RestorePendingCheckout(ctx context.Context, sessionID string, pc *models.PendingCheckout) error {
	return c.PutPendingCheckout(ctx, sessionID, pc)
}

// TakePendingCheckout atomically reads and removes the pending checkout via
// Lua, so concurrent consumers can never both observe the blob. Returns
// (nil, nil) when absent.
func (c *Client) TakePendingCheckout(ctx context.Context, sessionID string) (*models.PendingCheckout, error) {
	result, err := c.takeScript.Run(ctx, c.rdb, []string{pendingKey(sessionID)}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take pending script failed: %w", err)
	}

	raw, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script result type %T", result)
	}

	var pc models.PendingCheckout
	if err := json.Unmarshal([]byte(raw), &pc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending checkout: %w", err)
	}
	return &pc, nil
}

// DiscardPendingCheckout removes the blob without reading it.
func (c *Client) DiscardPendingCheckout(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, pendingKey(sessionID)).Err()
}

// ClearCart empties the shopper's cart for the session.
func (c *Client) ClearCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKey(sessionID)).Err()
}

// Once reports true the first time it is called for a key within the guard
// TTL, false after. The key is claimed before the caller performs the guarded
// operation.
func (c *Client) Once(ctx context.Context, key string) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("once:%s", key), "1", c.guardTTL).Result()
}
