package fresh

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/adeilh/go-taaza/quote"
	"github.com/adeilh/go-taaza/store"
)

// HistoryFetchFunc retrieves daily bars for one instrument. startDay is a
// hint: the source may return bars from that day onward, or the full series;
// the merge keeps only days newer than what is already stored. Empty bounds
// leave the range open.
type HistoryFetchFunc func(ctx context.Context, startDay, endDay string) ([]quote.PricePoint, error)

// HistoryStats summarizes a history merge.
type HistoryStats struct {
	Records    int    `json:"records_count"`
	NewRecords int    `json:"new_records_count"`
	LatestDay  string `json:"latest_date,omitempty"`
}

// EnsureHistory brings the stored daily series for (asset, symbol) up to
// date: it fetches bars from the source, upserts every day newer than the
// stored latest (every fetched day when forceRefresh is set), and purges the
// symbol's cached variants when anything changed. Concurrent calls for the
// same symbol collapse into one merge.
func (s *Service) EnsureHistory(ctx context.Context, asset quote.AssetType, symbol string, fetch HistoryFetchFunc, forceRefresh bool) (HistoryStats, error) {
	if !asset.Valid() {
		return HistoryStats{}, fmt.Errorf("%w: unknown asset type %q", quote.ErrInvalidInput, asset)
	}
	if err := quote.ValidateSymbol(symbol); err != nil {
		return HistoryStats{}, err
	}
	if fetch == nil {
		return HistoryStats{}, fmt.Errorf("%w: nil fetch function", quote.ErrInvalidInput)
	}
	symbol = quote.NormalizeSymbol(symbol)

	// A distinct flight key keeps history merges from colliding with
	// current-price fetches for the same symbol.
	flightKey := quote.HistoricalKey(asset, symbol, "", "")
	ch := s.group.DoChan(flightKey, func() (any, error) {
		return s.mergeHistory(ctx, asset, symbol, fetch, forceRefresh)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return HistoryStats{}, res.Err
		}
		return res.Val.(HistoryStats), nil
	case <-ctx.Done():
		return HistoryStats{}, fmt.Errorf("fetch history %s/%s: %w", asset, symbol, ctx.Err())
	}
}

func (s *Service) mergeHistory(ctx context.Context, asset quote.AssetType, symbol string, fetch HistoryFetchFunc, forceRefresh bool) (HistoryStats, error) {
	latest := ""
	if !forceRefresh {
		p, err := s.store.ReadLatest(ctx, asset, symbol)
		switch {
		case err == nil:
			latest = p.Day
		case errors.Is(err, store.ErrNotFound):
			// First fetch for this symbol.
		default:
			return HistoryStats{}, fmt.Errorf("read latest %s/%s: %w: %w", asset, symbol, quote.ErrPersistence, err)
		}
	}

	points, err := fetch(ctx, latest, "")
	if err != nil {
		return HistoryStats{}, fmt.Errorf("fetch history %s/%s: %w: %w", asset, symbol, quote.ErrSourceFailure, err)
	}
	if len(points) == 0 && latest == "" {
		return HistoryStats{}, fmt.Errorf("fetch history %s/%s: %w", asset, symbol, quote.ErrNotFound)
	}

	newCount := 0
	maxDay := latest
	for _, p := range points {
		if p.Day == "" {
			continue
		}
		if !forceRefresh && latest != "" && p.Day <= latest {
			continue
		}
		p.Asset = asset
		p.Symbol = symbol
		if err := s.store.UpsertPoint(ctx, p); err != nil {
			return HistoryStats{}, fmt.Errorf("persist %s/%s@%s: %w: %w", asset, symbol, p.Day, quote.ErrPersistence, err)
		}
		newCount++
		if p.Day > maxDay {
			maxDay = p.Day
		}
	}

	if newCount > 0 {
		if _, err := s.cache.DeletePattern(ctx, quote.InvalidationPattern(asset, symbol)); err != nil {
			s.opts.Logger.Warn("cache invalidation failed",
				zap.String("asset", string(asset)),
				zap.String("symbol", symbol),
				zap.Error(err))
		}
	}

	all, err := s.store.ReadRange(ctx, asset, symbol, "", "")
	if err != nil {
		return HistoryStats{}, fmt.Errorf("read range %s/%s: %w: %w", asset, symbol, quote.ErrPersistence, err)
	}
	return HistoryStats{Records: len(all), NewRecords: newCount, LatestDay: maxDay}, nil
}
