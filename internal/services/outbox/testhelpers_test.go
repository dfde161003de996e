package outbox

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cinemarket/backoffice/internal/shared/domain/clock"
	"github.com/cinemarket/backoffice/internal/shared/domain/events"
)

// memStore is an in-memory Store with the same attempt-cap semantics as
// the postgres adapter.
type memStore struct {
	mu          sync.Mutex
	maxAttempts int
	nextID      int64
	events      map[int64]*Event

	publishCalls map[int64]int
}

func newMemStore(maxAttempts int) *memStore {
	return &memStore{
		maxAttempts:  maxAttempts,
		nextID:       1,
		events:       make(map[int64]*Event),
		publishCalls: make(map[int64]int),
	}
}

func (s *memStore) add(payload []byte, createdAt time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.events[id] = &Event{
		ID:            id,
		AggregateType: "PURCHASE",
		AggregateID:   "p-1",
		EventType:     "sales.purchase.confirmed",
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     createdAt,
	}
	return id
}

func (s *memStore) get(id int64) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.events[id]
}

func (s *memStore) FetchPending(ctx context.Context, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []Event
	for _, e := range s.events {
		if e.Status == StatusPending {
			pending = append(pending, *e)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *memStore) MarkPublished(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.events[id]
	if e.Status != StatusPending {
		return nil
	}
	now := clock.Now()
	e.Status = StatusPublished
	e.PublishedAt = &now
	e.LastError = ""
	s.publishCalls[id]++
	return nil
}

func (s *memStore) RecordFailure(ctx context.Context, id int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.events[id]
	if e.Status != StatusPending {
		return nil
	}
	e.Attempts++
	e.LastError = reason
	if e.Attempts >= s.maxAttempts {
		e.Status = StatusFailed
	}
	return nil
}

// mockChannel implements MessageChannel for testing.
type mockChannel struct {
	mu        sync.Mutex
	PublishFn func(ctx context.Context, env *events.Envelope) error
	published []*events.Envelope
}

func (m *mockChannel) Publish(ctx context.Context, env *events.Envelope) error {
	m.mu.Lock()
	m.published = append(m.published, env)
	m.mu.Unlock()
	return m.PublishFn(ctx, env)
}

func (m *mockChannel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func testEnvelopePayload(t *testing.T) []byte {
	t.Helper()
	env, err := events.New("sales.purchase.confirmed", "sales-backoffice", map[string]string{"purchaseId": "p-1"})
	if err != nil {
		t.Fatalf("failed to build envelope: %v", err)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return raw
}
