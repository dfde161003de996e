package compensation

import (
	"context"
	"io"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockLedger implements Ledger.
type mockLedger struct {
	ContainsFn func(ctx context.Context, eventID string) (bool, error)
	calls      int
}

func (m *mockLedger) Contains(ctx context.Context, eventID string) (bool, error) {
	m.calls++
	return m.ContainsFn(ctx, eventID)
}

// mockRejector implements PurchaseRejector.
type mockRejector struct {
	ApplyRejectionFn func(ctx context.Context, purchaseID, reason, details, eventID string) error
	calls            int
}

func (m *mockRejector) ApplyRejection(ctx context.Context, purchaseID, reason, details, eventID string) error {
	m.calls++
	return m.ApplyRejectionFn(ctx, purchaseID, reason, details, eventID)
}

// fakeAcknowledger records the ack/nack decisions handle makes.
type fakeAcknowledger struct {
	acks  int
	nacks []bool // requeue flag per nack
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks = append(f.nacks, requeue)
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.nacks = append(f.nacks, requeue)
	return nil
}

// fakeDeadLetterPublisher implements deadLetterPublisher.
type fakeDeadLetterPublisher struct {
	PublishFn func(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	exchanges []string
	keys      []string
	published []amqp.Publishing
}

func (f *fakeDeadLetterPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchanges = append(f.exchanges, exchange)
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	if f.PublishFn != nil {
		return f.PublishFn(ctx, exchange, key, mandatory, immediate, msg)
	}
	return nil
}

func validEvent() *StockRejectedEvent {
	return &StockRejectedEvent{
		EventID:    "ev-1",
		PurchaseID: "p-1",
		Reason:     "INSUFFICIENT_STOCK",
		Lines: []RejectedLine{
			{ProductID: 10, RequestedQty: 3, AvailableQty: 1},
		},
	}
}
