// Package rabbitmq holds the broker topology and the confirm-mode
// publisher used by the outbox relay.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

// Connect dials the broker, retrying with exponential backoff because
// RabbitMQ is usually still starting when the service comes up locally.
func Connect(ctx context.Context, url string, logger *slog.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection

	backoff := retry.WithMaxRetries(9, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		conn, err = amqp.Dial(url)
		if err != nil {
			logger.Warn("failed to connect to RabbitMQ, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	logger.Info("connected to RabbitMQ")
	return conn, nil
}
