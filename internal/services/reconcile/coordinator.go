// Package reconcile rebuilds the movie projection from the full upstream
// catalog, correcting drift the incremental event stream may have missed.
// At most one rebuild runs cluster-wide; a second caller fails fast.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/cinemarket/backoffice/internal/services/projection"
	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// LockName identifies the single rebuild lock row.
const LockName = "movie_projection_rebuild"

// LockStore is the cross-process mutual exclusion primitive: one row per
// lock, acquired by atomic conditional update.
//
// Known gap: there is no lease expiry. If the owning process crashes
// mid-run the lock stays held until cleared manually; locked_at is
// persisted so operators can spot a stale lock.
type LockStore interface {
	// Acquire attempts the compare-and-swap. It returns false, without
	// blocking, when the lock is already held.
	Acquire(ctx context.Context, lockName, ownerID string) (bool, error)

	// Release clears the lock unconditionally for the given owner.
	Release(ctx context.Context, lockName, ownerID string) error
}

// Result reports what one rebuild run did.
type Result struct {
	Fetched     int   `json:"fetched"`
	Inserted    int   `json:"inserted"`
	Updated     int   `json:"updated"`
	Deactivated int   `json:"deactivated"`
	DurationMs  int64 `json:"durationMs"`
}

// Coordinator runs the full-catalog reconciliation pass.
type Coordinator struct {
	catalog CatalogClient
	store   projection.Store
	locks   LockStore
	logger  *slog.Logger
}

// NewCoordinator creates a reconciliation coordinator.
func NewCoordinator(catalog CatalogClient, store projection.Store, locks LockStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		catalog: catalog,
		store:   store,
		locks:   locks,
		logger:  logger.With("component", "reconcile-coordinator"),
	}
}

// Rebuild fetches the complete catalog, diffs it against the projection
// store, then deactivates projections the catalog no longer reports.
// Lock acquisition failure surfaces as a conflict fault; fetch and store
// failures propagate unmodified. The lock is released on every exit path.
func (c *Coordinator) Rebuild(ctx context.Context) (*Result, error) {
	start := clock.Now()
	ownerID := uuid.NewString()

	acquired, err := c.locks.Acquire(ctx, LockName, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire rebuild lock: %w", err)
	}
	if !acquired {
		return nil, faults.Conflict("projection rebuild already running")
	}
	defer func() {
		// Release must run even when the run context is cancelled.
		releaseCtx := context.WithoutCancel(ctx)
		if err := c.locks.Release(releaseCtx, LockName, ownerID); err != nil {
			c.logger.Error("failed to release rebuild lock", "owner_id", ownerID, "error", err)
		}
	}()

	snapshots, err := c.catalog.FetchAll(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{Fetched: len(snapshots)}
	inCatalog := make(map[string]struct{}, len(snapshots))

	for _, snap := range snapshots {
		key := strconv.FormatInt(snap.MovieID, 10)
		inCatalog[key] = struct{}{}
		if err := c.applySnapshot(ctx, key, snap, res); err != nil {
			return nil, err
		}
	}

	deactivated, err := c.sweepOrphans(ctx, inCatalog)
	if err != nil {
		return nil, err
	}
	res.Deactivated += deactivated

	res.DurationMs = clock.Now().Sub(start).Milliseconds()
	c.logger.Info("projection rebuild finished",
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"updated", res.Updated,
		"deactivated", res.Deactivated,
		"duration_ms", res.DurationMs,
	)
	return res, nil
}

func (c *Coordinator) applySnapshot(ctx context.Context, key string, snap Snapshot, res *Result) error {
	existing, err := c.store.Find(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load projection %s: %w", key, err)
	}

	if existing == nil {
		p := &projection.Projection{
			MovieID: key,
			Title:   snap.Title,
			Price:   snap.Price,
			Active:  snap.Active,
			Version: snap.Version,
		}
		if err := c.store.Save(ctx, p); err != nil {
			return fmt.Errorf("failed to insert projection %s: %w", key, err)
		}
		res.Inserted++
		return nil
	}

	// Monotonic merge: never regress a version the event stream already
	// advanced past the catalog's view.
	next := projection.Projection{
		MovieID: key,
		Title:   snap.Title,
		Price:   snap.Price,
		Active:  snap.Active,
		Version: max(existing.Version, snap.Version),
	}
	if next == *existing {
		return nil
	}

	if err := c.store.Save(ctx, &next); err != nil {
		return fmt.Errorf("failed to update projection %s: %w", key, err)
	}
	if existing.Active && !next.Active {
		res.Deactivated++
	} else {
		res.Updated++
	}
	return nil
}

// sweepOrphans deactivates projections absent from the fetched catalog,
// modelling upstream deletion or retirement.
func (c *Coordinator) sweepOrphans(ctx context.Context, inCatalog map[string]struct{}) (int, error) {
	all, err := c.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list projections: %w", err)
	}

	deactivated := 0
	for _, p := range all {
		if _, ok := inCatalog[p.MovieID]; ok || !p.Active {
			continue
		}
		inactive := p
		inactive.Active = false
		inactive.Version = p.Version + 1
		if err := c.store.Save(ctx, &inactive); err != nil {
			return deactivated, fmt.Errorf("failed to deactivate projection %s: %w", p.MovieID, err)
		}
		deactivated++
	}
	return deactivated, nil
}
