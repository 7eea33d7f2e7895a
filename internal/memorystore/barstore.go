package memorystore

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"superengulfing/pkg/pattern"
)

// ErrOutOfOrder is returned when a bar does not open strictly after the
// previous bar of the same symbol.
var ErrOutOfOrder = errors.New("bar out of order")

// BarStore keeps a bounded, ordered window of bars per symbol.
type BarStore struct {
	globalMu sync.RWMutex
	data     map[string]*symbolBars
	capacity int
}

type symbolBars struct {
	mu      sync.Mutex
	bars    []pattern.Bar
	nextSeq int64
}

// NewBarStore creates a store that retains at most capacity bars per symbol.
func NewBarStore(capacity int) *BarStore {
	if capacity < 2 {
		capacity = 2
	}
	return &BarStore{
		data:     make(map[string]*symbolBars),
		capacity: capacity,
	}
}

func (s *BarStore) symbol(symbol string) *symbolBars {
	// Fast path: lock per-symbol store only
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if ok {
		return store
	}

	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	if store, ok = s.data[symbol]; !ok {
		store = &symbolBars{nextSeq: 1}
		s.data[symbol] = store
	}
	return store
}

// Add appends b to the symbol's window, stamping the next sequence id, and
// returns the stored bar. Bars must arrive in strictly increasing open time.
func (s *BarStore) Add(symbol string, b pattern.Bar) (pattern.Bar, error) {
	store := s.symbol(symbol)

	store.mu.Lock()
	defer store.mu.Unlock()
	return s.add(store, symbol, b)
}

// AddWindow is Add that also returns a copy of the window as it stood right
// after the append, so the stored bar is always its last element.
func (s *BarStore) AddWindow(symbol string, b pattern.Bar) (pattern.Bar, []pattern.Bar, error) {
	store := s.symbol(symbol)

	store.mu.Lock()
	defer store.mu.Unlock()

	stored, err := s.add(store, symbol, b)
	if err != nil {
		return pattern.Bar{}, nil, err
	}
	cp := make([]pattern.Bar, len(store.bars))
	copy(cp, store.bars)
	return stored, cp, nil
}

// add requires store.mu.
func (s *BarStore) add(store *symbolBars, symbol string, b pattern.Bar) (pattern.Bar, error) {
	if n := len(store.bars); n > 0 && b.OpenTime <= store.bars[n-1].OpenTime {
		return pattern.Bar{}, fmt.Errorf("%w: %s open time %d not after %d",
			ErrOutOfOrder, symbol, b.OpenTime, store.bars[n-1].OpenTime)
	}

	b.SequenceID = store.nextSeq
	store.nextSeq++
	store.bars = append(store.bars, b)
	if over := len(store.bars) - s.capacity; over > 0 {
		store.bars = append(store.bars[:0:0], store.bars[over:]...)
	}
	return b, nil
}

// Window returns a copy of the bars currently held for symbol, oldest first.
func (s *BarStore) Window(symbol string) []pattern.Bar {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return nil
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	cp := make([]pattern.Bar, len(store.bars))
	copy(cp, store.bars)
	return cp
}

// Last returns the newest bar held for symbol.
func (s *BarStore) Last(symbol string) (pattern.Bar, bool) {
	s.globalMu.RLock()
	store, ok := s.data[symbol]
	s.globalMu.RUnlock()
	if !ok {
		return pattern.Bar{}, false
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.bars) == 0 {
		return pattern.Bar{}, false
	}
	return store.bars[len(store.bars)-1], true
}

// Symbols returns the known symbols in sorted order.
func (s *BarStore) Symbols() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	out := make([]string, 0, len(s.data))
	for sym := range s.data {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// CountAll returns the total number of bars held across all symbols.
func (s *BarStore) CountAll() int {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()

	total := 0
	for _, store := range s.data {
		store.mu.Lock()
		total += len(store.bars)
		store.mu.Unlock()
	}
	return total
}
