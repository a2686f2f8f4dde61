package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps snapshots per correlation id. Used in tests and as the
// default trail when no database is configured.
type InMemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snaps: make(map[string][]Snapshot)}
}

func (s *InMemoryStore) Append(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.CorrelationID] = append(s.snaps[snap.CorrelationID], snap)
	return nil
}

// ListByCorrelation returns the snapshots for one key in persistence order.
func (s *InMemoryStore) ListByCorrelation(_ context.Context, correlationID string) ([]Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Snapshot{}, s.snaps[correlationID]...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = make(map[string][]Snapshot)
}
