// Package compensation reacts to stock-rejection notifications from the
// inventory service by rolling a confirmed purchase back to REJECTED,
// exactly once per event, with bounded retry and dead-lettering.
package compensation

import (
	"context"
	"fmt"
	"strings"
)

// StockRejectedEvent is an inbound stock-rejection notification.
type StockRejectedEvent struct {
	EventID    string         `json:"eventId"`
	PurchaseID string         `json:"purchaseId"`
	Reason     string         `json:"reason"`
	Lines      []RejectedLine `json:"lineDetails"`
}

// RejectedLine describes one product line the stock service refused.
type RejectedLine struct {
	ProductID    int64 `json:"productId"`
	RequestedQty int   `json:"requestedQty"`
	AvailableQty int   `json:"availableQty"`
}

// FormatLines renders the rejected lines as a single human-readable
// details string stored on the purchase for manual triage.
func FormatLines(lines []RejectedLine) string {
	if len(lines) == 0 {
		return ""
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("productId=%d, requested=%d, available=%d",
			l.ProductID, l.RequestedQty, l.AvailableQty))
	}
	return strings.Join(parts, " | ")
}

// Ledger is the consumer-side idempotency set of processed event ids.
type Ledger interface {
	Contains(ctx context.Context, eventID string) (bool, error)
}

// PurchaseRejector applies the compensating state change. ApplyRejection
// marks the purchase REJECTED (first time only, reason and details are
// never overwritten on replay) and records the event id in the processed
// ledger within the same unit of work. A missing purchase surfaces as a
// not-found fault.
type PurchaseRejector interface {
	ApplyRejection(ctx context.Context, purchaseID, reason, details, eventID string) error
}
