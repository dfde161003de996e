package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
	"github.com/cinemarket/backoffice/internal/shared/infra/rabbitmq"
)

// Consumer reads catalog-change messages one at a time and feeds them to
// the synchronizer. Delivery is at-least-once and possibly out of order;
// the synchronizer's version checks make redelivery safe.
type Consumer struct {
	ch     *amqp.Channel
	sync   *Synchronizer
	logger *slog.Logger
}

// NewConsumer creates a catalog event consumer on the given channel.
func NewConsumer(ch *amqp.Channel, sync *Synchronizer, logger *slog.Logger) (*Consumer, error) {
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set channel QoS: %w", err)
	}
	return &Consumer{
		ch:     ch,
		sync:   sync,
		logger: logger.With("component", "catalog-consumer"),
	}, nil
}

// Start consumes from the catalog queue until the context is cancelled or
// the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(rabbitmq.CatalogQueue, "catalog-consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", rabbitmq.CatalogQueue, err)
	}

	c.logger.Info("catalog consumer started", "queue", rabbitmq.CatalogQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("catalog consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("catalog delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var env catalogEnvelope
	if err := json.Unmarshal(d.Body, &env); err != nil {
		c.logger.Error("discarding malformed catalog message", "error", err)
		c.reject(d, false)
		return
	}

	logger := c.logger.With("event_id", env.EventID, "event_type", env.EventType)

	var ev *CatalogEvent
	if len(env.Payload) > 0 {
		ev = &CatalogEvent{}
		if err := json.Unmarshal(env.Payload, ev); err != nil {
			logger.Error("discarding catalog event with malformed payload", "error", err)
			c.reject(d, false)
			return
		}
	}

	err := c.sync.Apply(ctx, ev)
	switch {
	case err == nil:
		c.ack(d)
	case faults.IsKind(err, faults.KindVersionGap):
		// Not a transient fault: redelivery cannot close the gap, only
		// in-order delivery or a reconciliation run can.
		logger.Error("catalog event discarded, version gap detected", "error", err)
		c.reject(d, false)
	case !faults.Retryable(err):
		logger.Error("catalog event discarded, invalid payload", "error", err)
		c.reject(d, false)
	default:
		// Store hiccup: requeue for another attempt.
		logger.Warn("catalog event requeued after store error", "error", err)
		c.reject(d, true)
	}
}

func (c *Consumer) ack(d amqp.Delivery) {
	if err := d.Ack(false); err != nil {
		c.logger.Error("failed to ack catalog message", "error", err)
	}
}

func (c *Consumer) reject(d amqp.Delivery, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		c.logger.Error("failed to nack catalog message", "error", err)
	}
}
