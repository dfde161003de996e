package projection

import (
	"context"
	"fmt"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func testConsumer(store *memStore) *Consumer {
	return &Consumer{
		sync:   NewSynchronizer(store, testLogger()),
		logger: testLogger(),
	}
}

func catalogDelivery(ack *fakeAcknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body)}
}

func catalogBody(movieID, version int64) string {
	return fmt.Sprintf(
		`{"eventId":"e-1","eventType":"MovieCreated.v1","occurredAt":"2026-03-01T10:00:00Z",`+
			`"payload":{"movieId":%d,"title":"Alien","price":8.5,"active":true,"version":%d}}`,
		movieID, version)
}

func TestConsumerHandle_AcksAppliedEvent(t *testing.T) {
	store := newMemStore()
	consumer := testConsumer(store)

	ack := &fakeAcknowledger{}
	consumer.handle(context.Background(), catalogDelivery(ack, catalogBody(7, 1)))

	assert.Equal(t, 1, ack.acks)
	assert.Empty(t, ack.nacks)

	got, ok := store.get("7")
	require.True(t, ok)
	assert.Equal(t, int64(1), got.Version)
}

func TestConsumerHandle_MalformedEnvelopeNotRequeued(t *testing.T) {
	store := newMemStore()
	consumer := testConsumer(store)

	ack := &fakeAcknowledger{}
	consumer.handle(context.Background(), catalogDelivery(ack, "not json"))

	assert.Equal(t, 0, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}

func TestConsumerHandle_MalformedPayloadNotRequeued(t *testing.T) {
	store := newMemStore()
	consumer := testConsumer(store)

	ack := &fakeAcknowledger{}
	body := `{"eventId":"e-1","eventType":"MovieCreated.v1","payload":"oops"}`
	consumer.handle(context.Background(), catalogDelivery(ack, body))

	assert.Equal(t, 0, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}

func TestConsumerHandle_MissingMovieIDNotRequeued(t *testing.T) {
	store := newMemStore()
	consumer := testConsumer(store)

	ack := &fakeAcknowledger{}
	body := `{"eventId":"e-1","eventType":"MovieCreated.v1","payload":{"title":"NoID","version":1}}`
	consumer.handle(context.Background(), catalogDelivery(ack, body))

	// Validation faults cannot be fixed by redelivery.
	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])
}

func TestConsumerHandle_VersionGapNotRequeued(t *testing.T) {
	store := newMemStore()
	store.rows["7"] = Projection{MovieID: "7", Title: "Alien", Active: true, Version: 1}
	consumer := testConsumer(store)

	ack := &fakeAcknowledger{}
	consumer.handle(context.Background(), catalogDelivery(ack, catalogBody(7, 5)))

	require.Len(t, ack.nacks, 1)
	assert.False(t, ack.nacks[0])

	// State left for the reconciliation run to fix.
	got, _ := store.get("7")
	assert.Equal(t, int64(1), got.Version)
}

func TestConsumerHandle_StoreErrorRequeued(t *testing.T) {
	store := newMemStore()
	store.findErr = fmt.Errorf("connection reset")
	consumer := testConsumer(store)

	ack := &fakeAcknowledger{}
	consumer.handle(context.Background(), catalogDelivery(ack, catalogBody(7, 1)))

	assert.Equal(t, 0, ack.acks)
	require.Len(t, ack.nacks, 1)
	assert.True(t, ack.nacks[0])
}
