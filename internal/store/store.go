package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payment-return-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// GetFunnelStep retrieves a funnel step by ID, or (nil, nil) when absent.
func (s *Store) GetFunnelStep(ctx context.Context, stepID string) (*models.FunnelStep, error) {
	var step models.FunnelStep
	err := s.db.GetContext(ctx, &step,
		"SELECT id, funnel_id, COALESCE(on_success_step_id, '') AS on_success_step_id, slug FROM funnel_steps WHERE id = $1",
		stepID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// GetFunnelStepSlug retrieves just the slug of a funnel step, or "" when the
// step does not exist.
func (s *Store) GetFunnelStepSlug(ctx context.Context, stepID string) (string, error) {
	var slug string
	err := s.db.GetContext(ctx, &slug, "SELECT slug FROM funnel_steps WHERE id = $1", stepID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return slug, nil
}

// IsCourseOrder reports whether the reference (order id or temp checkout id)
// belongs to a course purchase.
func (s *Store) IsCourseOrder(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM course_enrollments WHERE order_id = $1 OR checkout_ref = $1)",
		ref)
	return exists, err
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
