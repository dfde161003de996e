package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemarket/backoffice/internal/services/reconcile"
	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
)

// LockStore implements reconcile.LockStore on the bootstrap_lock table.
// The conditional update is the whole synchronization mechanism: the row's
// transaction isolation guarantees at most one caller sees locked=false.
type LockStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewLockStore creates a new LockStore.
func NewLockStore(pool *pgxpool.Pool, logger *slog.Logger) *LockStore {
	return &LockStore{
		pool:   pool,
		logger: logger.With("repository", "bootstrap-lock"),
	}
}

// Acquire attempts the compare-and-swap; false means already held.
func (s *LockStore) Acquire(ctx context.Context, lockName, ownerID string) (bool, error) {
	query := `
		UPDATE bootstrap_lock
		SET locked = TRUE, owner_id = $1, locked_at = $2
		WHERE lock_name = $3 AND locked = FALSE
	`

	result, err := s.pool.Exec(ctx, query, ownerID, clock.Now(), lockName)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", lockName, err)
	}

	acquired := result.RowsAffected() == 1
	if acquired {
		s.logger.Debug("lock acquired", "lock_name", lockName, "owner_id", ownerID)
	}
	return acquired, nil
}

// Release clears the lock held by ownerID.
func (s *LockStore) Release(ctx context.Context, lockName, ownerID string) error {
	query := `
		UPDATE bootstrap_lock
		SET locked = FALSE, owner_id = NULL, locked_at = NULL
		WHERE lock_name = $1 AND owner_id = $2
	`

	result, err := s.pool.Exec(ctx, query, lockName, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", lockName, err)
	}

	if result.RowsAffected() == 0 {
		s.logger.Warn("lock not held by owner on release", "lock_name", lockName, "owner_id", ownerID)
	}
	return nil
}

// Ensure LockStore implements reconcile.LockStore
var _ reconcile.LockStore = (*LockStore)(nil)
