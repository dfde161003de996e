package purchase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
	"github.com/cinemarket/backoffice/internal/shared/domain/events"
	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// Service confirms purchases. It is the producing side of the outbox: the
// domain mutation and the pending event are committed together, so the
// confirmation event can never be lost even if the broker is down.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a purchase service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With("service", "purchase"),
	}
}

// Confirm persists a confirmed purchase and stages its confirmation event.
func (s *Service) Confirm(ctx context.Context, customerEmail string, items []Item) (*Purchase, error) {
	if customerEmail == "" {
		return nil, faults.Validation("customer email is required")
	}
	if len(items) == 0 {
		return nil, faults.Validation("purchase needs at least one item")
	}

	total := 0.0
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, faults.Validation("item quantity must be positive")
		}
		total += float64(it.Quantity) * it.UnitPrice
	}

	p := &Purchase{
		ID:            uuid.NewString(),
		CustomerEmail: customerEmail,
		Status:        StatusConfirmed,
		Total:         total,
		Items:         items,
		ConfirmedAt:   clock.Now(),
	}

	env, err := events.New(EventTypeConfirmed, Source, ConfirmedEvent{
		PurchaseID:    p.ID,
		CustomerEmail: p.CustomerEmail,
		ConfirmedAt:   p.ConfirmedAt,
		Items:         p.Items,
		Total:         p.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build confirmation event: %w", err)
	}

	if err := s.store.CreateConfirmed(ctx, p, env); err != nil {
		return nil, fmt.Errorf("failed to persist purchase: %w", err)
	}

	s.logger.Info("purchase confirmed",
		"purchase_id", p.ID,
		"event_id", env.EventID,
		"total", p.Total,
	)
	return p, nil
}
