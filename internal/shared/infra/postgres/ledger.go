package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemarket/backoffice/internal/services/compensation"
)

// LedgerStore implements compensation.Ledger on the processed_event
// table: the existence of a row means "already applied".
type LedgerStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *pgxpool.Pool, logger *slog.Logger) *LedgerStore {
	return &LedgerStore{
		pool:   pool,
		logger: logger.With("repository", "processed-events"),
	}
}

// Contains reports whether eventID was already processed.
func (s *LedgerStore) Contains(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM processed_event WHERE event_id = $1)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

// Ensure LedgerStore implements compensation.Ledger
var _ compensation.Ledger = (*LedgerStore)(nil)
