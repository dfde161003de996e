package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
	"github.com/cinemarket/backoffice/internal/shared/domain/events"
)

// RelayConfig holds configuration for the relay worker.
type RelayConfig struct {
	PollInterval   time.Duration
	BatchSize      int
	BaseDelay      time.Duration
	ConfirmTimeout time.Duration
}

// Relay periodically drains due PENDING outbox rows into the message
// channel and reconciles the publish outcome back into the store.
//
// Multiple relay instances are tolerated only if downstream consumers are
// idempotent; this layer alone guarantees at-least-once, not exactly-once.
type Relay struct {
	store   Store
	channel MessageChannel
	config  RelayConfig
	logger  *slog.Logger
}

// NewRelay creates a relay worker.
func NewRelay(store Store, channel MessageChannel, config RelayConfig, logger *slog.Logger) *Relay {
	return &Relay{
		store:   store,
		channel: channel,
		config:  config,
		logger:  logger.With("component", "outbox-relay"),
	}
}

// Start runs publish cycles on a fixed interval until the context is
// cancelled.
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("starting outbox relay",
		"poll_interval", r.config.PollInterval,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			r.Cycle(ctx)
		}
	}
}

// Cycle runs a single poll-and-publish pass. Exposed separately so tests
// can drive the relay without the ticker.
func (r *Relay) Cycle(ctx context.Context) {
	batch, err := r.store.FetchPending(ctx, r.config.BatchSize)
	if err != nil {
		r.logger.Error("failed to fetch pending outbox events", "error", err)
		return
	}

	now := clock.Now()
	for i := range batch {
		ev := &batch[i]
		if !ev.Due(r.config.BaseDelay, now) {
			continue
		}
		r.publishOne(ctx, ev)
	}
}

func (r *Relay) publishOne(ctx context.Context, ev *Event) {
	logger := r.logger.With(
		"outbox_id", ev.ID,
		"event_type", ev.EventType,
		"aggregate_id", ev.AggregateID,
		"attempts", ev.Attempts,
	)

	var env events.Envelope
	if err := json.Unmarshal(ev.Payload, &env); err != nil {
		// Corrupt payloads still burn attempts so they eventually land
		// in FAILED instead of clogging the queue forever.
		logger.Error("outbox payload is not a valid envelope", "error", err)
		r.recordFailure(ctx, logger, ev.ID, "invalid payload: "+err.Error())
		return
	}

	// Publication blocks only up to the confirm timeout, never indefinitely.
	pubCtx, cancel := context.WithTimeout(ctx, r.config.ConfirmTimeout)
	err := r.channel.Publish(pubCtx, &env)
	cancel()

	if err != nil {
		logger.Warn("publish not confirmed", "error", err)
		r.recordFailure(ctx, logger, ev.ID, err.Error())
		return
	}

	if err := r.store.MarkPublished(ctx, ev.ID); err != nil {
		// The event was delivered but the row stays PENDING; it will be
		// republished next cycle. At-least-once, consumers dedup.
		logger.Error("failed to mark outbox event published", "error", err)
		return
	}

	logger.Info("outbox event published", "event_id", env.EventID)
}

func (r *Relay) recordFailure(ctx context.Context, logger *slog.Logger, id int64, reason string) {
	if err := r.store.RecordFailure(ctx, id, reason); err != nil {
		logger.Error("failed to record outbox failure", "error", err)
	}
}
