package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/adeilh/go-taaza/quote"
	"github.com/adeilh/go-taaza/store"
)

// Store is an in-memory store.Store used by tests and single-node setups
// that can tolerate losing history on restart.
type Store struct {
	mu     sync.RWMutex
	points map[string]map[string]quote.PricePoint // series key -> day -> point
}

func NewStore() *Store {
	return &Store{points: make(map[string]map[string]quote.PricePoint)}
}

func seriesKey(asset quote.AssetType, symbol string) string {
	return string(asset) + ":" + quote.NormalizeSymbol(symbol)
}

func (s *Store) ReadPoint(ctx context.Context, asset quote.AssetType, symbol, day string) (quote.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return quote.PricePoint{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.points[seriesKey(asset, symbol)][day]
	if !ok {
		return quote.PricePoint{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) UpsertPoint(ctx context.Context, p quote.PricePoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := seriesKey(p.Asset, p.Symbol)
	if s.points[key] == nil {
		s.points[key] = make(map[string]quote.PricePoint)
	}
	p.Symbol = quote.NormalizeSymbol(p.Symbol)
	s.points[key][p.Day] = p
	return nil
}

func (s *Store) ReadRange(ctx context.Context, asset quote.AssetType, symbol, start, end string) ([]quote.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.points[seriesKey(asset, symbol)]
	out := make([]quote.PricePoint, 0, len(series))
	for day, p := range series {
		if start != "" && day < start {
			continue
		}
		if end != "" && day > end {
			continue
		}
		out = append(out, p)
	}
	// ISO dates sort lexicographically.
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (s *Store) ReadLatest(ctx context.Context, asset quote.AssetType, symbol string) (quote.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return quote.PricePoint{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest quote.PricePoint
	found := false
	for _, p := range s.points[seriesKey(asset, symbol)] {
		if !found || p.Day > latest.Day {
			latest = p
			found = true
		}
	}
	if !found {
		return quote.PricePoint{}, store.ErrNotFound
	}
	return latest, nil
}
