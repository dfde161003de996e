package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemarket/backoffice/internal/services/outbox"
	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
	"github.com/cinemarket/backoffice/internal/shared/domain/events"
)

// OutboxStore implements outbox.Store using PostgreSQL.
type OutboxStore struct {
	pool        *pgxpool.Pool
	maxAttempts int
	logger      *slog.Logger
}

// NewOutboxStore creates a new OutboxStore. maxAttempts is the cap after
// which a failing event becomes terminally FAILED.
func NewOutboxStore(pool *pgxpool.Pool, maxAttempts int, logger *slog.Logger) *OutboxStore {
	return &OutboxStore{
		pool:        pool,
		maxAttempts: maxAttempts,
		logger:      logger.With("repository", "outbox"),
	}
}

// Register inserts a PENDING row inside the caller's transaction, so the
// event commits together with the domain change it represents. No dedup
// here: at-least-once by design, consumers must be idempotent.
func (s *OutboxStore) Register(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID string, env *events.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	query := `
		INSERT INTO outbox_event (aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.Exec(ctx, query, aggregateType, aggregateID, env.EventType, payload, outbox.StatusPending, clock.Now())
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	s.logger.Debug("event registered in outbox",
		"event_id", env.EventID,
		"event_type", env.EventType,
		"aggregate_id", aggregateID,
	)
	return nil
}

// FetchPending returns the oldest PENDING rows, createdAt ascending.
// Backoff gating happens in the relay, not in SQL.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int) ([]outbox.Event, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload,
		       status, created_at, published_at, attempts, COALESCE(last_error, '')
		FROM outbox_event
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, outbox.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var entries []outbox.Event
	for rows.Next() {
		var e outbox.Event
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload,
			&e.Status, &e.CreatedAt, &e.PublishedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}

	return entries, nil
}

// MarkPublished transitions a PENDING row to PUBLISHED.
func (s *OutboxStore) MarkPublished(ctx context.Context, id int64) error {
	query := `
		UPDATE outbox_event
		SET status = $1, published_at = $2, last_error = NULL
		WHERE id = $3 AND status = $4
	`

	result, err := s.pool.Exec(ctx, query, outbox.StatusPublished, clock.Now(), id, outbox.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to mark outbox event published: %w", err)
	}

	if result.RowsAffected() == 0 {
		s.logger.Warn("outbox event not pending on publish confirmation", "outbox_id", id)
	}

	return nil
}

// RecordFailure increments attempts and stores the reason; the row flips
// to FAILED exactly when attempts reaches the cap.
func (s *OutboxStore) RecordFailure(ctx context.Context, id int64, reason string) error {
	query := `
		UPDATE outbox_event
		SET attempts = attempts + 1,
		    last_error = $1,
		    status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE $4 END
		WHERE id = $5 AND status = $4
	`

	_, err := s.pool.Exec(ctx, query, reason, s.maxAttempts, outbox.StatusFailed, outbox.StatusPending, id)
	if err != nil {
		return fmt.Errorf("failed to record outbox failure: %w", err)
	}

	return nil
}

// Ensure OutboxStore implements outbox.Store
var _ outbox.Store = (*OutboxStore)(nil)
