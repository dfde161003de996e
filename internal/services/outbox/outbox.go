// Package outbox implements the transactional outbox: durable staging of
// domain events so that a broker failure after the domain transaction
// commits never loses an event. Registration happens inside the caller's
// transaction; the Relay drains PENDING rows on a fixed interval.
package outbox

import (
	"context"
	"time"

	"github.com/cinemarket/backoffice/internal/shared/domain/events"
)

// Status of an outbox event. PENDING rows may still be published; PUBLISHED
// and FAILED are terminal.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusPublished Status = "PUBLISHED"
	StatusFailed    Status = "FAILED"
)

// Event is a row in the outbox_event table.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	Status        Status
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Attempts      int
	LastError     string
}

// maxBackoffShift caps the exponent: shifting further would overflow the
// duration into a negative delay, making the row due immediately.
const maxBackoffShift = 20

// Backoff returns the delay before the event's next publish attempt:
// base × 2^attempts, so a broken channel is never hot-looped. Attempts
// beyond maxBackoffShift all map to the same ceiling.
func Backoff(base time.Duration, attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > maxBackoffShift {
		attempts = maxBackoffShift
	}
	return base << uint(attempts)
}

// Due reports whether the event is eligible for a publish attempt at now.
func (e *Event) Due(base time.Duration, now time.Time) bool {
	return !e.CreatedAt.Add(Backoff(base, e.Attempts)).After(now)
}

// Store is the relay's view of the outbox table.
// This interface is owned by the outbox package; the postgres adapter
// implements it.
type Store interface {
	// FetchPending returns the oldest PENDING rows, createdAt ascending.
	FetchPending(ctx context.Context, limit int) ([]Event, error)

	// MarkPublished transitions the row to PUBLISHED in a fresh unit of
	// work, stamping publishedAt and clearing lastError.
	MarkPublished(ctx context.Context, id int64) error

	// RecordFailure increments attempts and stores the reason; the row
	// becomes FAILED once attempts reaches the configured cap, otherwise
	// it stays PENDING for the next cycle.
	RecordFailure(ctx context.Context, id int64, reason string) error
}

// MessageChannel delivers an envelope to the broker and reports the
// confirmed outcome. An error means nack, timeout or return; the relay
// treats all three the same way.
type MessageChannel interface {
	Publish(ctx context.Context, env *events.Envelope) error
}
