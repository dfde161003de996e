package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
)

// Transport header names attached to every published message. Consumers use
// event-id for dedup and correlation-id for tracing.
const (
	HeaderEventID       = "event-id"
	HeaderCorrelationID = "correlation-id"
	HeaderSource        = "source"
	HeaderType          = "type"
)

// Envelope is the common structure for outbound domain events. The same
// shape is stored in the outbox payload column and published on the wire.
type Envelope struct {
	// EventID is the unique identifier for this event
	EventID uuid.UUID `json:"eventId"`

	// EventType is the discriminator and doubles as the routing key
	// (e.g., "sales.purchase.confirmed")
	EventType string `json:"eventType"`

	// OccurredAt is when the domain change happened
	OccurredAt time.Time `json:"occurredAt"`

	// Source identifies the producing service
	Source string `json:"source,omitempty"`

	// Payload contains the event-specific data
	Payload json.RawMessage `json:"payload"`
}

// New creates an envelope with a generated ID and the current clock time.
func New(eventType, source string, payload any) (*Envelope, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		EventID:    uuid.New(),
		EventType:  eventType,
		OccurredAt: clock.Now(),
		Source:     source,
		Payload:    payloadBytes,
	}, nil
}

// ParsePayload unmarshals the payload into the provided type.
func (e *Envelope) ParsePayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}
