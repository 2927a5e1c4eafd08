package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"payment-return-service/internal/models"

	"github.com/google/uuid"
)

// GetOrderPublic retrieves an order scoped to a store, or (nil, nil) when no
// row matches. The access token is returned on the row; the caller enforces
// the token check.
func (s *Store) GetOrderPublic(ctx context.Context, orderID, storeID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND store_id = $2", orderID, storeID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateDeferredOrder materializes an order from a pending checkout after the
// provider confirmed payment. The order and its items are written in one
// transaction; the order is born paid and carries the funnel context and
// payment details in its custom fields.
func (s *Store) CreateDeferredOrder(ctx context.Context, pc *models.PendingCheckout, details models.PaymentDetails) (*models.Order, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order := &models.Order{
		ID:            uuid.New().String(),
		OrderNumber:   newOrderNumber(),
		StoreID:       pc.OrderData.StoreID,
		CustomerName:  pc.OrderData.CustomerName,
		PaymentMethod: details.Method,
		Total:         pc.OrderData.Total,
		Status:        models.OrderStatusPaid,
		AccessToken:   uuid.New().String(),
		CustomFields:  deferredCustomFields(pc, details),
	}

	query := `
		INSERT INTO orders (id, order_number, store_id, customer_name, payment_method, total, status, access_token, custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	row := tx.QueryRowxContext(ctx, query,
		order.ID, order.OrderNumber, order.StoreID, order.CustomerName,
		order.PaymentMethod, order.Total, order.Status, order.AccessToken, order.CustomFields)
	if err := row.Scan(&order.CreatedAt, &order.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range pc.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
			order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus updates order status
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2",
		status, orderID)
	return err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}

// deferredCustomFields assembles the JSONB blob for a deferred order: the
// funnel context captured at checkout plus the provider's redirect metadata.
func deferredCustomFields(pc *models.PendingCheckout, details models.PaymentDetails) models.CustomFields {
	cf := models.CustomFields{
		"payment": map[string]any{
			"method":      details.Method,
			"temp_id":     details.TempID,
			"amount":      details.Amount,
			"fee":         details.Fee,
			"verified_at": details.VerifiedAt.Format(time.RFC3339),
		},
	}
	if details.TransactionID != "" {
		cf["transactionId"] = details.TransactionID
	}
	if fc := pc.OrderData.FunnelContext; fc != nil {
		cf["funnel_context"] = map[string]any{
			"step_id":   fc.StepID,
			"funnel_id": fc.FunnelID,
		}
	}
	return cf
}

func newOrderNumber() string {
	return "ON-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
