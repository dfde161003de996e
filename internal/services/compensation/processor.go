package compensation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// Processor applies one stock-rejection event. It is safe under
// redelivery: the processed-event ledger makes replays a no-op.
type Processor struct {
	ledger    Ledger
	purchases PurchaseRejector
	logger    *slog.Logger
}

// NewProcessor creates a compensation processor.
func NewProcessor(ledger Ledger, purchases PurchaseRejector, logger *slog.Logger) *Processor {
	return &Processor{
		ledger:    ledger,
		purchases: purchases,
		logger:    logger.With("component", "compensation-processor"),
	}
}

// Process validates the event, checks the idempotency ledger, and applies
// the compensating rejection. A nil return means the message can be acked;
// the caller routes errors through the retry policy.
func (p *Processor) Process(ctx context.Context, ev *StockRejectedEvent) error {
	if err := validate(ev); err != nil {
		return err
	}

	logger := p.logger.With("event_id", ev.EventID, "purchase_id", ev.PurchaseID)

	processed, err := p.ledger.Contains(ctx, ev.EventID)
	if err != nil {
		return faults.Transient("failed to check processed-event ledger", err)
	}
	if processed {
		logger.Info("ignored duplicate stock-rejected event")
		return nil
	}

	details := FormatLines(ev.Lines)
	if err := p.purchases.ApplyRejection(ctx, ev.PurchaseID, ev.Reason, details, ev.EventID); err != nil {
		return err
	}

	logger.Info("compensation applied", "reason", ev.Reason)
	return nil
}

func validate(ev *StockRejectedEvent) error {
	switch {
	case ev == nil:
		return faults.Validation("stock-rejected event is missing")
	case strings.TrimSpace(ev.EventID) == "":
		return faults.Validation("stock-rejected event has no eventId")
	case strings.TrimSpace(ev.PurchaseID) == "":
		return faults.Validation("stock-rejected event has no purchaseId")
	case strings.TrimSpace(ev.Reason) == "":
		return faults.Validation("stock-rejected event has no reason")
	}
	return nil
}
