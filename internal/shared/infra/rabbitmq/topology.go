package rabbitmq

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange, queue and routing-key names. The stock-rejected working queue
// dead-letters into a fixed-TTL retry queue which expires back into the
// working queue; messages that exhaust their retry budget are forwarded to
// the DLQ by the consumer.
const (
	SalesExchange   = "sales.events"
	CatalogExchange = "catalog.events"

	CatalogQueue = "sales.catalog.movies"

	StockQueue         = "sales.stock.rejected"
	StockRetryExchange = "sales.stock.retry"
	StockRetryQueue    = "sales.stock.rejected.retry"
	StockRoutingKey    = "stock-rejected"

	DeadLetterExchange = "sales.dlx"
	StockDeadQueue     = "sales.stock.rejected.dlq"
)

// Routing keys of the upstream catalog events this service consumes.
var catalogBindings = []string{"MovieCreated.v1", "MovieUpdated.v1", "MovieRetired.v1"}

// Declare sets up all exchanges, queues and bindings. Declarations are
// idempotent so every instance runs this on startup.
func Declare(ch *amqp.Channel, stockRetryTTL time.Duration) error {
	exchanges := []struct{ name, kind string }{
		{SalesExchange, "topic"},
		{CatalogExchange, "topic"},
		{StockRetryExchange, "direct"},
		{DeadLetterExchange, "direct"},
	}
	for _, ex := range exchanges {
		if err := ch.ExchangeDeclare(ex.name, ex.kind, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare exchange %s: %w", ex.name, err)
		}
	}

	if _, err := ch.QueueDeclare(CatalogQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", CatalogQueue, err)
	}
	for _, key := range catalogBindings {
		if err := ch.QueueBind(CatalogQueue, key, CatalogExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind %s to %s: %w", CatalogQueue, key, err)
		}
	}

	// Rejected stock messages are nacked without requeue; the queue's DLX
	// routes them into the retry queue.
	if _, err := ch.QueueDeclare(StockQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    StockRetryExchange,
		"x-dead-letter-routing-key": StockRoutingKey,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", StockQueue, err)
	}
	if err := ch.QueueBind(StockQueue, StockRoutingKey, SalesExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", StockQueue, err)
	}

	// Fixed-delay redelivery: messages sit here for the TTL, then expire
	// back into the working queue through the default exchange.
	if _, err := ch.QueueDeclare(StockRetryQueue, true, false, false, false, amqp.Table{
		"x-message-ttl":             stockRetryTTL.Milliseconds(),
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": StockQueue,
	}); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", StockRetryQueue, err)
	}
	if err := ch.QueueBind(StockRetryQueue, StockRoutingKey, StockRetryExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", StockRetryQueue, err)
	}

	if _, err := ch.QueueDeclare(StockDeadQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", StockDeadQueue, err)
	}
	if err := ch.QueueBind(StockDeadQueue, StockRoutingKey, DeadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind %s: %w", StockDeadQueue, err)
	}

	return nil
}
