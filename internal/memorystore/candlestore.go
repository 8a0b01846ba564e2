package memorystore

import (
	"sync"

	"wsreplay/internal/market"
)

// CandleStore keeps complete candle series per symbol in memory. Series are
// replaced whole, never appended to, so a reader always sees a full history.
type CandleStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolCandleStore
}

type symbolCandleStore struct {
	mu     sync.RWMutex
	series market.Series
}

func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[string]*symbolCandleStore),
	}
}

// Put stores a copy of series under symbol.
func (s *CandleStore) Put(symbol string, series market.Series) {
	// Fast path: lock per-symbol store only
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()

	if !ok {
		s.globalMu.Lock()
		if store, ok = s.data[symbol]; !ok {
			store = &symbolCandleStore{}
			s.data[symbol] = store
		}
		s.globalMu.Unlock()
	}

	cp := series.Clone()
	if cp == nil {
		cp = market.Series{}
	}
	store.mu.Lock()
	store.series = cp
	store.mu.Unlock()
}

// Get returns a private copy of the series for symbol.
func (s *CandleStore) Get(symbol string) (market.Series, bool) {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return nil, false
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.series.Clone(), true
}

func (s *CandleStore) Delete(symbol string) {
	s.globalMu.Lock()
	delete(s.data, symbol)
	s.globalMu.Unlock()
}

// Symbols lists the cached symbols in no particular order.
func (s *CandleStore) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym := range s.data {
		out = append(out, sym)
	}
	return out
}

// CountAll returns the total number of candles held across all symbols.
func (s *CandleStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.RLock()
		total += len(store.series)
		store.mu.RUnlock()
	}
	return total
}
