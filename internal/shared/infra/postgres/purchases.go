package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemarket/backoffice/internal/services/compensation"
	"github.com/cinemarket/backoffice/internal/services/purchase"
	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
	"github.com/cinemarket/backoffice/internal/shared/domain/events"
	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// PurchaseStore implements purchase.Store and compensation.PurchaseRejector
// using PostgreSQL. Outbox registration and ledger writes share the
// purchase's transaction so each operation commits as one atomic unit.
type PurchaseStore struct {
	pool   *pgxpool.Pool
	outbox *OutboxStore
	logger *slog.Logger
}

// NewPurchaseStore creates a new PurchaseStore.
func NewPurchaseStore(pool *pgxpool.Pool, outbox *OutboxStore, logger *slog.Logger) *PurchaseStore {
	return &PurchaseStore{
		pool:   pool,
		outbox: outbox,
		logger: logger.With("repository", "purchases"),
	}
}

// CreateConfirmed persists the purchase and stages its confirmation event
// in the outbox within one transaction.
func (s *PurchaseStore) CreateConfirmed(ctx context.Context, p *purchase.Purchase, env *events.Envelope) error {
	items, err := json.Marshal(p.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal purchase items: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO purchase (id, customer_email, status, total, items, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, query, p.ID, p.CustomerEmail, p.Status, p.Total, items, p.ConfirmedAt); err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}

	if err := s.outbox.Register(ctx, tx, "PURCHASE", p.ID, env); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit purchase: %w", err)
	}
	return nil
}

// Get retrieves a purchase by id.
func (s *PurchaseStore) Get(ctx context.Context, id string) (*purchase.Purchase, error) {
	query := `
		SELECT id, customer_email, status, total, items,
		       COALESCE(rejection_reason, ''), COALESCE(rejection_details, ''), confirmed_at
		FROM purchase
		WHERE id = $1
	`

	var p purchase.Purchase
	var items []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.CustomerEmail, &p.Status, &p.Total,
		&items, &p.RejectionReason, &p.RejectionDetails, &p.ConfirmedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, faults.NotFound("purchase not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	if err := json.Unmarshal(items, &p.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal purchase items: %w", err)
	}
	return &p, nil
}

// ApplyRejection marks the purchase REJECTED and records the event id in
// the processed-event ledger within one transaction. A purchase that is
// already REJECTED is left untouched; the ledger row is written either
// way so the redelivered event never reapplies.
func (s *PurchaseStore) ApplyRejection(ctx context.Context, purchaseID, reason, details, eventID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return faults.Transient("failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	var status purchase.Status
	err = tx.QueryRow(ctx, `SELECT status FROM purchase WHERE id = $1 FOR UPDATE`, purchaseID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return faults.NotFound("purchase to compensate not found", purchaseID)
	}
	if err != nil {
		return faults.Transient("failed to load purchase", err)
	}

	if status != purchase.StatusRejected {
		query := `
			UPDATE purchase
			SET status = $1, rejection_reason = $2, rejection_details = $3
			WHERE id = $4
		`
		if _, err := tx.Exec(ctx, query, purchase.StatusRejected, reason, details, purchaseID); err != nil {
			return faults.Transient("failed to reject purchase", err)
		}
	} else {
		s.logger.Info("purchase already rejected, keeping original reason", "purchase_id", purchaseID)
	}

	ledger := `
		INSERT INTO processed_event (event_id, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (event_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, ledger, eventID, clock.Now()); err != nil {
		return faults.Transient("failed to record processed event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return faults.Transient("failed to commit compensation", err)
	}
	return nil
}

// Ensure PurchaseStore implements both consuming interfaces
var (
	_ purchase.Store                = (*PurchaseStore)(nil)
	_ compensation.PurchaseRejector = (*PurchaseStore)(nil)
)
