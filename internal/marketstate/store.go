// Package marketstate holds the latest price and a bounded price history
// per symbol. It is the only state written by feed ingestion and read by
// the detector and the trade engine concurrently.
package marketstate

import (
	"sort"
	"sync"
	"time"

	"momentum-lab/internal/domain"
)

// DefaultHistoryCapacity bounds the per-symbol history by sample count,
// not by wall-clock window: at one tick per second it covers roughly two
// lookback windows.
const DefaultHistoryCapacity = 120

// Store is an owned state container for per-symbol market state. External
// components never hold references into it; all access goes through the
// methods below, guarded by a single RWMutex. No cross-symbol invariant
// exists, so store-wide locking is sufficient for per-symbol consistency.
type Store struct {
	mu       sync.RWMutex
	capacity int
	symbols  map[string]*symbolState
}

type symbolState struct {
	latest     float64
	hasLatest  bool
	lastUpdate time.Time
	history    []domain.PriceSample // ordered by timestamp, len <= capacity
}

// NewStore creates a Store with the given per-symbol history capacity.
// Non-positive capacity falls back to DefaultHistoryCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &Store{
		capacity: capacity,
		symbols:  make(map[string]*symbolState),
	}
}

// Record appends a sample for symbol, updating the latest price and
// evicting the oldest sample when capacity is exceeded. Symbol state is
// created lazily on first tick and never destroyed.
func (s *Store) Record(symbol string, price float64, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.symbols[symbol]
	if !ok {
		st = &symbolState{history: make([]domain.PriceSample, 0, s.capacity)}
		s.symbols[symbol] = st
	}

	st.latest = price
	st.hasLatest = true
	st.lastUpdate = ts

	// History must stay non-decreasing in timestamp; an out-of-order tick
	// still updates the latest price but is not appended.
	if n := len(st.history); n > 0 && ts.Before(st.history[n-1].Timestamp) {
		return
	}

	if len(st.history) == s.capacity {
		copy(st.history, st.history[1:])
		st.history[len(st.history)-1] = domain.PriceSample{Timestamp: ts, Price: price}
		return
	}
	st.history = append(st.history, domain.PriceSample{Timestamp: ts, Price: price})
}

// Latest returns the most recent price for symbol.
// ok is false for an unseen symbol.
func (s *Store) Latest(symbol string) (price float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, found := s.symbols[symbol]
	if !found || !st.hasLatest {
		return 0, false
	}
	return st.latest, true
}

// LastUpdate returns the time of the most recent tick for symbol.
func (s *Store) LastUpdate(symbol string) (t time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, found := s.symbols[symbol]
	if !found || !st.hasLatest {
		return time.Time{}, false
	}
	return st.lastUpdate, true
}

// PriceAtOrBefore returns the most recent sample with timestamp <= target.
// ok is false for an unseen symbol or when every retained sample is newer
// than target (insufficient history). Runs once per symbol per detector
// tick, so the ordered history is binary-searched.
func (s *Store) PriceAtOrBefore(symbol string, target time.Time) (price float64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, found := s.symbols[symbol]
	if !found || len(st.history) == 0 {
		return 0, false
	}

	// First index with timestamp > target; the sample before it is the answer.
	i := sort.Search(len(st.history), func(i int) bool {
		return st.history[i].Timestamp.After(target)
	})
	if i == 0 {
		return 0, false
	}
	return st.history[i-1].Price, true
}

// HistoryLen reports the number of retained samples for symbol.
func (s *Store) HistoryLen(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, found := s.symbols[symbol]
	if !found {
		return 0
	}
	return len(st.history)
}
