package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cinemarket/backoffice/internal/shared/domain/events"
	"github.com/cinemarket/backoffice/internal/shared/domain/faults"
)

// Publisher implements outbox.MessageChannel on a confirm-mode channel.
// Publish blocks until the broker acks, nacks, or the context expires.
type Publisher struct {
	ch       *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewPublisher opens a channel in confirm mode on conn. Returned
// (unroutable) messages are drained and logged; the broker still acks
// them, so routing misconfiguration shows up in the log, not the outbox.
func NewPublisher(conn *amqp.Connection, exchange string, logger *slog.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open publisher channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("failed to put channel in confirm mode: %w", err)
	}

	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger.With("component", "rabbitmq-publisher"),
	}

	returns := ch.NotifyReturn(make(chan amqp.Return, 1))
	go p.drainReturns(returns)

	return p, nil
}

// Publish sends the envelope with its event type as routing key and waits
// for broker confirmation up to the context deadline.
func (p *Publisher) Publish(ctx context.Context, env *events.Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx,
		p.exchange,
		env.EventType, // routing key
		true,          // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.EventID.String(),
			Timestamp:    env.OccurredAt,
			Type:         env.EventType,
			Headers: amqp.Table{
				events.HeaderEventID:       env.EventID.String(),
				events.HeaderCorrelationID: env.EventID.String(),
				events.HeaderSource:        env.Source,
				events.HeaderType:          env.EventType,
			},
			Body: body,
		})
	if err != nil {
		return faults.Transient("failed to publish event", err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return faults.Transient("publish confirmation timed out", err)
	}
	if !acked {
		return faults.Transient(fmt.Sprintf("broker nacked event %s", env.EventID), nil)
	}

	p.logger.Debug("event published",
		"exchange", p.exchange,
		"routing_key", env.EventType,
		"event_id", env.EventID,
	)
	return nil
}

func (p *Publisher) drainReturns(returns <-chan amqp.Return) {
	for ret := range returns {
		p.logger.Error("event returned as unroutable",
			"exchange", ret.Exchange,
			"routing_key", ret.RoutingKey,
			"reply_text", ret.ReplyText,
			"message_id", ret.MessageId,
		)
	}
}

// Close closes the publisher channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}
