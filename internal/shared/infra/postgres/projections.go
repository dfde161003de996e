package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cinemarket/backoffice/internal/services/projection"
	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
)

// ProjectionStore implements projection.Store using PostgreSQL.
type ProjectionStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewProjectionStore creates a new ProjectionStore.
func NewProjectionStore(pool *pgxpool.Pool, logger *slog.Logger) *ProjectionStore {
	return &ProjectionStore{
		pool:   pool,
		logger: logger.With("repository", "projections"),
	}
}

// Find returns the projection for movieID, or (nil, nil) when absent.
func (s *ProjectionStore) Find(ctx context.Context, movieID string) (*projection.Projection, error) {
	query := `
		SELECT movie_id, title, price, active, version
		FROM movie_projection
		WHERE movie_id = $1
	`

	var p projection.Projection
	err := s.pool.QueryRow(ctx, query, movieID).Scan(&p.MovieID, &p.Title, &p.Price, &p.Active, &p.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get projection: %w", err)
	}

	return &p, nil
}

// Save upserts the projection.
func (s *ProjectionStore) Save(ctx context.Context, p *projection.Projection) error {
	query := `
		INSERT INTO movie_projection (movie_id, title, price, active, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (movie_id) DO UPDATE
		SET title = EXCLUDED.title,
		    price = EXCLUDED.price,
		    active = EXCLUDED.active,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query, p.MovieID, p.Title, p.Price, p.Active, p.Version, clock.Now())
	if err != nil {
		return fmt.Errorf("failed to save projection: %w", err)
	}

	return nil
}

// All returns every projection, movie id ascending.
func (s *ProjectionStore) All(ctx context.Context) ([]projection.Projection, error) {
	query := `
		SELECT movie_id, title, price, active, version
		FROM movie_projection
		ORDER BY movie_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projections: %w", err)
	}
	defer rows.Close()

	var projections []projection.Projection
	for rows.Next() {
		var p projection.Projection
		if err := rows.Scan(&p.MovieID, &p.Title, &p.Price, &p.Active, &p.Version); err != nil {
			return nil, fmt.Errorf("failed to scan projection row: %w", err)
		}
		projections = append(projections, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projection rows: %w", err)
	}

	return projections, nil
}

// Ensure ProjectionStore implements projection.Store
var _ projection.Store = (*ProjectionStore)(nil)
