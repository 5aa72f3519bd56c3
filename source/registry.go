package source

import (
	"context"
	"fmt"
	"time"

	"github.com/adeilh/go-taaza/fresh"
	"github.com/adeilh/go-taaza/quote"
)

// Registry maps asset types onto their upstream clients and adapts them to
// the fetch signatures the freshness service drives.
type Registry struct {
	psx       *StockAnalysis
	binance   *Binance
	investing *Investing
}

// NewRegistry wires the three upstream clients. Nil clients fall back to
// production defaults.
func NewRegistry(psx *StockAnalysis, binance *Binance, investing *Investing) *Registry {
	if psx == nil {
		psx = NewStockAnalysis()
	}
	if binance == nil {
		binance = NewBinance()
	}
	if investing == nil {
		investing = NewInvesting()
	}
	return &Registry{psx: psx, binance: binance, investing: investing}
}

// Current returns a fetcher for the latest daily bar of (asset, symbol).
// The fetcher answers (nil, nil) when the upstream has no data for the
// symbol, which the freshness service treats as not found.
func (r *Registry) Current(asset quote.AssetType, symbol string) fresh.FetchFunc {
	return func(ctx context.Context) (*quote.PricePoint, error) {
		points, err := r.fetch(ctx, asset, symbol, recentStart(), 0)
		if err != nil {
			return nil, err
		}
		if len(points) == 0 {
			return nil, nil
		}
		latest := points[len(points)-1]
		return &latest, nil
	}
}

// History returns a range fetcher for the daily series of (asset, symbol).
func (r *Registry) History(asset quote.AssetType, symbol string) fresh.HistoryFetchFunc {
	return func(ctx context.Context, startDay, endDay string) ([]quote.PricePoint, error) {
		return r.fetchRange(ctx, asset, symbol, startDay, endDay)
	}
}

func (r *Registry) fetch(ctx context.Context, asset quote.AssetType, symbol, startDay string, limit int) ([]quote.PricePoint, error) {
	switch asset {
	case quote.AssetPSX:
		// The endpoint only serves the full series.
		return r.psx.History(ctx, symbol)
	case quote.AssetCrypto:
		if limit <= 0 {
			limit = 2
		}
		return r.binance.Klines(ctx, symbol, "", limit)
	case quote.AssetIndex:
		return r.investing.History(ctx, startDay, "")
	default:
		return nil, fmt.Errorf("%w: unknown asset type %q", quote.ErrInvalidInput, asset)
	}
}

func (r *Registry) fetchRange(ctx context.Context, asset quote.AssetType, symbol, startDay, endDay string) ([]quote.PricePoint, error) {
	switch asset {
	case quote.AssetPSX:
		return r.psx.History(ctx, symbol)
	case quote.AssetCrypto:
		return r.binance.Klines(ctx, symbol, startDay, 0)
	case quote.AssetIndex:
		return r.investing.History(ctx, startDay, endDay)
	default:
		return nil, fmt.Errorf("%w: unknown asset type %q", quote.ErrInvalidInput, asset)
	}
}

// recentStart bounds a current-price index lookup to the last week so the
// response stays small across weekends and holidays.
func recentStart() string {
	return time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
}
