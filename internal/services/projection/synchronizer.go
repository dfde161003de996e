package projection

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// Synchronizer applies individual catalog-change events to the store with
// strict per-key version ordering. It is idempotent under redelivery and
// surfaces gaps instead of silently overwriting or dropping.
type Synchronizer struct {
	store  Store
	logger *slog.Logger
}

// NewSynchronizer creates a synchronizer.
func NewSynchronizer(store Store, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		store:  store,
		logger: logger.With("component", "projection-synchronizer"),
	}
}

// Apply runs one event through the per-key state machine:
//
//	no row, v == 0  → normalize to 1, insert
//	no row, v < 0   → validation fault
//	no row, v > 0   → insert with v
//	row, v ≤ current     → no-op (duplicate or stale)
//	row, v == current+1  → full field update
//	row, v > current+1   → version-gap fault
func (s *Synchronizer) Apply(ctx context.Context, ev *CatalogEvent) error {
	if ev == nil {
		return faults.Validation("catalog event payload is missing")
	}
	if ev.MovieID == nil {
		return faults.Validation("catalog event movieId is missing")
	}
	key := strconv.FormatInt(*ev.MovieID, 10)

	existing, err := s.store.Find(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to load projection %s: %w", key, err)
	}

	if existing == nil {
		version := ev.Version
		switch {
		case version == 0:
			s.logger.Warn("normalized initial catalog event version",
				"movie_id", key,
				"incoming_version", ev.Version,
				"normalized_version", 1,
			)
			version = 1
		case version < 0:
			f := faults.Validation("catalog event has negative version")
			f.Key = key
			f.Incoming = ev.Version
			return f
		}
		return s.save(ctx, ev, key, version)
	}

	current := existing.Version

	if ev.Version <= current {
		s.logger.Info("ignored duplicate catalog event",
			"movie_id", key,
			"current_version", current,
			"incoming_version", ev.Version,
		)
		return nil
	}

	if ev.Version > current+1 {
		return faults.VersionGap(key, current, ev.Version)
	}

	return s.save(ctx, ev, key, ev.Version)
}

func (s *Synchronizer) save(ctx context.Context, ev *CatalogEvent, key string, version int64) error {
	p := &Projection{
		MovieID: key,
		Title:   ev.Title,
		Price:   ev.Price,
		Active:  ev.Active,
		Version: version,
	}
	if err := s.store.Save(ctx, p); err != nil {
		return fmt.Errorf("failed to save projection %s: %w", key, err)
	}

	s.logger.Debug("applied catalog event",
		"movie_id", key,
		"version", version,
		"active", ev.Active,
	)
	return nil
}
