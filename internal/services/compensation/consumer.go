package compensation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cinemarket/backoffice/internal/shared/infra/rabbitmq"
)

// Consumer reads stock-rejected messages one at a time with manual acks.
// Failed messages are nacked into the broker's fixed-TTL retry queue until
// the redelivery budget is exhausted, then forwarded verbatim to the DLQ
// with a rejection-reason annotation and removed from the working queue.
//
// Malformed payloads deliberately share the retry path with transient
// failures; routing them straight to the DLQ would change observable
// retry counts.
type Consumer struct {
	ch         *amqp.Channel
	dlq        deadLetterPublisher
	processor  *Processor
	maxRetries int
	logger     *slog.Logger
}

// deadLetterPublisher is the slice of the channel used to park exhausted
// messages on the DLQ.
type deadLetterPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// NewConsumer creates a stock-rejected consumer on the given channel.
func NewConsumer(ch *amqp.Channel, processor *Processor, maxRetries int, logger *slog.Logger) (*Consumer, error) {
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set channel QoS: %w", err)
	}
	return &Consumer{
		ch:         ch,
		dlq:        ch,
		processor:  processor,
		maxRetries: maxRetries,
		logger:     logger.With("component", "stock-consumer"),
	}, nil
}

// Start consumes from the stock-rejected queue until the context is
// cancelled or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	deliveries, err := c.ch.Consume(rabbitmq.StockQueue, "stock-consumer", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume from %s: %w", rabbitmq.StockQueue, err)
	}

	c.logger.Info("stock-rejected consumer started",
		"queue", rabbitmq.StockQueue,
		"max_retries", c.maxRetries,
	)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stock-rejected consumer stopped")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("stock delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	var ev StockRejectedEvent
	err := json.Unmarshal(d.Body, &ev)
	if err == nil {
		err = c.processor.Process(ctx, &ev)
	}

	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			c.logger.Error("failed to ack stock-rejected message", "error", ackErr)
		}
		return
	}

	redeliveries := deathCount(d.Headers)
	logger := c.logger.With("event_id", ev.EventID, "redeliveries", redeliveries)

	if redeliveries < int64(c.maxRetries) {
		logger.Warn("stock-rejected event scheduled for retry", "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			logger.Error("failed to nack stock-rejected message", "error", nackErr)
		}
		return
	}

	// Terminal: park the original message for manual triage, then ack it
	// off the working queue.
	if dlqErr := c.forwardToDeadLetter(ctx, d, err.Error()); dlqErr != nil {
		logger.Error("failed to forward to dead-letter queue, requeueing", "error", dlqErr)
		if nackErr := d.Nack(false, true); nackErr != nil {
			logger.Error("failed to requeue stock-rejected message", "error", nackErr)
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		logger.Error("failed to ack dead-lettered message", "error", ackErr)
	}
	logger.Error("stock-rejected event dead-lettered", "error", err)
}

func (c *Consumer) forwardToDeadLetter(ctx context.Context, d amqp.Delivery, reason string) error {
	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers["x-reject-reason"] = reason

	return c.dlq.PublishWithContext(ctx,
		rabbitmq.DeadLetterExchange,
		rabbitmq.StockRoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			MessageId:    d.MessageId,
			Headers:      headers,
			Body:         d.Body,
		})
}

// deathCount reads the broker-attached redelivery count from the x-death
// header the retry queue stamps on each requeue.
func deathCount(headers amqp.Table) int64 {
	xDeath, ok := headers["x-death"].([]interface{})
	if !ok || len(xDeath) == 0 {
		return 0
	}
	entry, ok := xDeath[0].(amqp.Table)
	if !ok {
		return 0
	}
	switch count := entry["count"].(type) {
	case int64:
		return count
	case int32:
		return int64(count)
	case int:
		return int64(count)
	}
	return 0
}
