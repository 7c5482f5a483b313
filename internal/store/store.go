package store

import (
	"sync"

	"tickflow/models"
)

// TickStore holds the bounded per-symbol tick series. It is the single
// point of truth for merged data and is safe for concurrent use: series
// are mutated only through Update, which serialises merges, and all reads
// return copies so callers can keep working on a snapshot while the next
// merge builds a new series.
type TickStore struct {
	mu            sync.RWMutex
	series        map[string][]models.Tick
	rollingWindow int
}

// New creates an empty store. rollingWindow bounds the "recent N" view
// returned by Recent; series retain up to twice that many entries.
func New(rollingWindow int) *TickStore {
	if rollingWindow <= 0 {
		rollingWindow = 500
	}
	return &TickStore{
		series:        make(map[string][]models.Tick),
		rollingWindow: rollingWindow,
	}
}

// RollingWindow returns the configured rolling window.
func (s *TickStore) RollingWindow() int {
	return s.rollingWindow
}

// Update replaces a symbol's series with the result of apply, invoked
// under the store lock with the current series. A series is created
// lazily on the first update for a symbol; apply returning nil means
// "no series" and leaves no entry behind. Returns the new length.
func (s *TickStore) Update(symbol string, apply func(existing []models.Tick) []models.Tick) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := apply(s.series[symbol])
	if next == nil {
		delete(s.series, symbol)
		return 0
	}
	s.series[symbol] = next
	return len(next)
}

// Series returns a copy of the full retained series for a symbol.
func (s *TickStore) Series(symbol string) []models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.series[symbol]
	out := make([]models.Tick, len(src))
	copy(out, src)
	return out
}

// Recent returns a copy of the most recent rollingWindow ticks for a
// symbol, the slice downstream stages compute over.
func (s *TickStore) Recent(symbol string) []models.Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.series[symbol]
	if len(src) > s.rollingWindow {
		src = src[len(src)-s.rollingWindow:]
	}
	out := make([]models.Tick, len(src))
	copy(out, src)
	return out
}

// Len reports the retained series length for a symbol.
func (s *TickStore) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.series[symbol])
}

// Symbols lists the symbols currently holding a series.
func (s *TickStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for sym := range s.series {
		out = append(out, sym)
	}
	return out
}

// Release discards the series of a symbol no longer selected by any
// consumer. Nothing external persists series data, so this is the only
// teardown a symbol needs.
func (s *TickStore) Release(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.series, symbol)
}
