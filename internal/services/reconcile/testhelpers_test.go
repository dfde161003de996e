package reconcile

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/cinemarket/backoffice/internal/services/projection"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockCatalog implements CatalogClient.
type mockCatalog struct {
	FetchAllFn func(ctx context.Context) ([]Snapshot, error)
}

func (m *mockCatalog) FetchAll(ctx context.Context) ([]Snapshot, error) {
	return m.FetchAllFn(ctx)
}

// memProjectionStore is an in-memory projection.Store.
type memProjectionStore struct {
	mu   sync.Mutex
	rows map[string]projection.Projection
}

func newMemProjectionStore() *memProjectionStore {
	return &memProjectionStore{rows: make(map[string]projection.Projection)}
}

func (s *memProjectionStore) Find(ctx context.Context, movieID string) (*projection.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[movieID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memProjectionStore) Save(ctx context.Context, p *projection.Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[p.MovieID] = *p
	return nil
}

func (s *memProjectionStore) All(ctx context.Context) ([]projection.Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]projection.Projection, 0, len(s.rows))
	for _, p := range s.rows {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].MovieID < all[j].MovieID })
	return all, nil
}

func (s *memProjectionStore) get(movieID string) (projection.Projection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[movieID]
	return p, ok
}

// memLockStore is an in-memory LockStore with the same conditional-update
// semantics as the bootstrap_lock row.
type memLockStore struct {
	mu       sync.Mutex
	held     bool
	owner    string
	acquires int
	releases int
}

func (l *memLockStore) Acquire(ctx context.Context, lockName, ownerID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.held {
		return false, nil
	}
	l.held = true
	l.owner = ownerID
	return true, nil
}

func (l *memLockStore) Release(ctx context.Context, lockName, ownerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held && l.owner == ownerID {
		l.held = false
		l.owner = ""
		l.releases++
	}
	return nil
}

func (l *memLockStore) isHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
