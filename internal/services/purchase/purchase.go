// Package purchase holds the back-office view of a purchase and the
// confirmation entry point that feeds the transactional outbox. The full
// cart/pricing domain lives in another service; this package only models
// what the eventual-consistency layer needs: a confirmed purchase that can
// later be compensated to REJECTED.
package purchase

import (
	"context"
	"time"

	"github.com/cinemarket/backoffice/internal/shared/domain/events"
)

// Status of a purchase. REJECTED is reached only through compensation.
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusRejected  Status = "REJECTED"
)

// EventTypeConfirmed is the outbound event type (and routing key) for
// purchase confirmations.
const EventTypeConfirmed = "sales.purchase.confirmed"

// Source identifies this service in outbound envelopes.
const Source = "sales-backoffice"

// Item is one line of a purchase.
type Item struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// Purchase is the persisted aggregate.
type Purchase struct {
	ID               string
	CustomerEmail    string
	Status           Status
	Total            float64
	Items            []Item
	RejectionReason  string
	RejectionDetails string
	ConfirmedAt      time.Time
}

// ConfirmedEvent is the payload published when a purchase is confirmed.
type ConfirmedEvent struct {
	PurchaseID    string    `json:"purchaseId"`
	CustomerEmail string    `json:"customerEmail"`
	ConfirmedAt   time.Time `json:"confirmedAt"`
	Items         []Item    `json:"items"`
	Total         float64   `json:"total"`
}

// Store persists purchases. CreateConfirmed must write the purchase row
// and register the confirmation event in the outbox within one
// transaction: both commit or neither.
type Store interface {
	CreateConfirmed(ctx context.Context, p *Purchase, env *events.Envelope) error
	Get(ctx context.Context, id string) (*Purchase, error)
}
