package scanner

import (
	"fmt"

	"superengulfing/internal/memorystore"
	"superengulfing/pkg/pattern"

	"go.uber.org/zap"
)

// Hit is a classified bar found while scanning a symbol.
type Hit struct {
	Symbol string         `json:"symbol"`
	Bar    pattern.Bar    `json:"bar"`
	Result pattern.Result `json:"result"`
}

// Scanner classifies bars incrementally as they arrive, one window per
// symbol.
type Scanner struct {
	store  *memorystore.BarStore
	depth  int
	logger *zap.Logger
}

// New returns a Scanner backed by store. The store's capacity should exceed
// pattern.MaxSweepLookback so every sweep count is complete.
func New(store *memorystore.BarStore, depth int, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{store: store, depth: depth, logger: logger}
}

// OnBar appends bar to the symbol's window and classifies it. Earlier bars
// are never reclassified.
func (s *Scanner) OnBar(symbol string, bar pattern.Bar) (Hit, bool, error) {
	stored, window, err := s.store.AddWindow(symbol, bar)
	if err != nil {
		return Hit{}, false, fmt.Errorf("add bar: %w", err)
	}

	res, ok := pattern.Classify(window, len(window)-1, s.depth)
	if !ok {
		return Hit{}, false, nil
	}

	s.logger.Debug("pattern detected",
		zap.String("symbol", symbol),
		zap.Int64("openTime", stored.OpenTime),
		zap.String("label", res.Label))
	return Hit{Symbol: symbol, Bar: stored, Result: res}, true, nil
}

// Last returns the newest bar seen for symbol.
func (s *Scanner) Last(symbol string) (pattern.Bar, bool) {
	return s.store.Last(symbol)
}

// Buffered returns the number of bars held across all symbols.
func (s *Scanner) Buffered() int {
	return s.store.CountAll()
}
