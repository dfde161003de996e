// Package projection maintains the locally materialized, versioned
// read-model of the externally-owned movie catalog.
package projection

import (
	"context"
	"encoding/json"
	"time"
)

// Projection is a versioned snapshot of one catalog movie. Rows are never
// deleted, only soft-deactivated; version never decreases.
type Projection struct {
	MovieID string
	Title   string
	Price   float64
	Active  bool
	Version int64
}

// Store persists projections.
// This interface is owned by the projection package; the postgres adapter
// implements it.
type Store interface {
	// Find returns the projection for movieID, or (nil, nil) when absent.
	Find(ctx context.Context, movieID string) (*Projection, error)

	// Save upserts the projection.
	Save(ctx context.Context, p *Projection) error

	// All returns every projection in the store.
	All(ctx context.Context) ([]Projection, error)
}

// CatalogEvent is the payload of an inbound catalog-change message.
// MovieID is a pointer so a missing field is distinguishable from zero.
type CatalogEvent struct {
	MovieID *int64  `json:"movieId"`
	Title   string  `json:"title"`
	Price   float64 `json:"price"`
	Active  bool    `json:"active"`
	Version int64   `json:"version"`
}

// catalogEnvelope is the wire shape of an inbound catalog message. Upstream
// event ids are opaque strings, not necessarily UUIDs.
type catalogEnvelope struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}
