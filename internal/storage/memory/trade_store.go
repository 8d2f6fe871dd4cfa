package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"momentum-lab/internal/domain"
	"momentum-lab/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu       sync.RWMutex
	data     map[string]*domain.Trade // keyed by trade id
	bySignal map[string]string        // signal id -> trade id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:     make(map[string]*domain.Trade),
		bySignal: make(map[string]string),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// CreatePending adds a new pending trade. Returns ErrDuplicateKey if the
// trade id or its signal id already exists.
func (s *TradeStore) CreatePending(_ context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" || t.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.bySignal[t.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	cp := *t
	s.data[t.ID] = &cp
	s.bySignal[t.SignalID] = t.ID
	return nil
}

// GetByID retrieves a trade by its id. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, id string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	cp := *t
	return &cp, nil
}

// ExistsForSignal reports whether a trade referencing the signal exists.
func (s *TradeStore) ExistsForSignal(_ context.Context, signalID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.bySignal[signalID]
	return exists, nil
}

// ListPending retrieves all pending trades, ordered by planned entry time ASC.
func (s *TradeStore) ListPending(_ context.Context) ([]*domain.Trade, error) {
	return s.list(func(t *domain.Trade) bool {
		return t.Status() == domain.TradeStatusPending
	}, func(a, b *domain.Trade) bool {
		return a.PlannedEntryTime.Before(b.PlannedEntryTime)
	})
}

// ListOpen retrieves all open trades, ordered by entry time ASC.
func (s *TradeStore) ListOpen(_ context.Context) ([]*domain.Trade, error) {
	return s.list(func(t *domain.Trade) bool {
		return t.Status() == domain.TradeStatusOpen
	}, func(a, b *domain.Trade) bool {
		return a.EntryTime.Before(*b.EntryTime)
	})
}

// ListClosed retrieves all closed trades, ordered by exit time ASC.
func (s *TradeStore) ListClosed(_ context.Context) ([]*domain.Trade, error) {
	return s.list(func(t *domain.Trade) bool {
		return t.Status() == domain.TradeStatusClosed
	}, func(a, b *domain.Trade) bool {
		return a.ExitTime.Before(*b.ExitTime)
	})
}

func (s *TradeStore) list(keep func(*domain.Trade) bool, less func(a, b *domain.Trade) bool) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if keep(t) {
			cp := *t
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if less(result[i], result[j]) {
			return true
		}
		if less(result[j], result[i]) {
			return false
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// MarkOpen records the Pending -> Open transition.
func (s *TradeStore) MarkOpen(_ context.Context, id string, entryTime time.Time, entryPrice float64, tp, sl *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if t.Status() != domain.TradeStatusPending {
		return storage.ErrInvalidTransition
	}

	et := entryTime
	ep := entryPrice
	t.EntryTime = &et
	t.EntryPrice = &ep
	t.TPPrice = copyFloat(tp)
	t.SLPrice = copyFloat(sl)
	return nil
}

// MarkClosed records the Open -> Closed transition.
func (s *TradeStore) MarkClosed(_ context.Context, id string, c storage.TradeClose) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if t.Status() != domain.TradeStatusOpen {
		return storage.ErrInvalidTransition
	}

	et := c.ExitTime
	ep := c.ExitPrice
	reason := c.ExitReason
	pnl1x := c.PnL1x
	pnl5x := c.PnL5x
	hold := c.HoldSeconds

	t.ExitTime = &et
	t.ExitPrice = &ep
	t.ExitReason = &reason
	t.PnL1x = &pnl1x
	t.PnL5x = &pnl5x
	t.HoldSeconds = &hold
	return nil
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cp := *f
	return &cp
}
