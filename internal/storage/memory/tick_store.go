package memory

import (
	"context"
	"sync"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data []*domain.Tick
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// InsertBulk appends a batch of ticks.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, tick := range ticks {
		if tick == nil || tick.Symbol == "" {
			return storage.ErrInvalidInput
		}
		cp := *tick
		s.data = append(s.data, &cp)
	}
	return nil
}

// All returns every archived tick in insertion order.
func (s *TickStore) All() []*domain.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Tick, 0, len(s.data))
	for _, tick := range s.data {
		cp := *tick
		result = append(result, &cp)
	}
	return result
}
