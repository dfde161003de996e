package projection

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory Store.
type memStore struct {
	mu   sync.Mutex
	rows map[string]Projection

	findErr error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]Projection)}
}

func (s *memStore) Find(ctx context.Context, movieID string) (*Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	p, ok := s.rows[movieID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *memStore) Save(ctx context.Context, p *Projection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.rows[p.MovieID] = *p
	return nil
}

func (s *memStore) All(ctx context.Context) ([]Projection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]Projection, 0, len(s.rows))
	for _, p := range s.rows {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].MovieID < all[j].MovieID })
	return all, nil
}

func (s *memStore) get(movieID string) (Projection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.rows[movieID]
	return p, ok
}

func int64Ptr(v int64) *int64 { return &v }
