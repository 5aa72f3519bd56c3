// Package fresh coordinates concurrent access to slow, unreliable,
// rate-limited market-data sources. It owns the freshness decision for every
// quote request: serve from cache, serve a final closed-market price from the
// persistence store, or fetch (at most once per key) and fan the shared
// result out to every waiter.
package fresh

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/adeilh/go-taaza/cache"
	"github.com/adeilh/go-taaza/marketcal"
	"github.com/adeilh/go-taaza/quote"
	"github.com/adeilh/go-taaza/store"
)

// FetchFunc retrieves the current point for one instrument from an external
// source. It owns its own timeout via ctx. Returning (nil, nil) is the
// authoritative "source has no data" answer and is treated as not found, not
// as a failure.
type FetchFunc func(ctx context.Context) (*quote.PricePoint, error)

// Outcome is the answer to an EnsureData call. Stale marks a degraded
// success: the fetch failed and the point is the latest persisted value
// rather than a live one.
type Outcome struct {
	Point quote.PricePoint
	Stale bool
}

// Service is the freshness orchestrator. It is an explicitly constructed,
// injected dependency: it owns the single-flight table, and borrows the
// cache, persistence store and market calendar it is built with. Safe for
// concurrent use.
type Service struct {
	opts  Options
	cache cache.Store
	store store.Store
	cal   *marketcal.Calendar
	group singleflight.Group
}

// New builds a Service. All three collaborators are required.
func New(c cache.Store, st store.Store, cal *marketcal.Calendar, opts ...Option) (*Service, error) {
	if c == nil || st == nil || cal == nil {
		return nil, errors.New("fresh: cache, store and calendar are required")
	}
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Service{opts: cfg, cache: c, store: st, cal: cal}, nil
}

// EnsureData returns a fresh-enough point for (asset, symbol), fetching from
// the external source only when necessary.
//
// The decision ladder, in order:
//
//  1. forceRefresh: fetch unconditionally (exactly one fetch per forced
//     call, outside the single-flight group), persist and cache the result.
//  2. Cache hit: return it.
//  3. Market closed and today's point already persisted: that price is
//     final, so it is returned without fetching.
//  4. Otherwise fetch under single-flight: concurrent callers for the same
//     key share one fetch and observe the same outcome. A caller whose
//     context expires while waiting detaches with the context error; the
//     flight keeps running for the remaining waiters.
//
// When the fetch fails and StaleFallback is enabled, the latest persisted
// point is served as a degraded success with Outcome.Stale=true; the
// fallback never masks persistence failures or an authoritative not-found.
func (s *Service) EnsureData(ctx context.Context, asset quote.AssetType, symbol string, fetch FetchFunc, forceRefresh bool) (Outcome, error) {
	if !asset.Valid() {
		return Outcome{}, fmt.Errorf("%w: unknown asset type %q", quote.ErrInvalidInput, asset)
	}
	if err := quote.ValidateSymbol(symbol); err != nil {
		return Outcome{}, err
	}
	if fetch == nil {
		return Outcome{}, fmt.Errorf("%w: nil fetch function", quote.ErrInvalidInput)
	}
	symbol = quote.NormalizeSymbol(symbol)
	key := quote.PriceKey(asset, symbol, "")

	market := asset.Market()
	closed, err := s.cal.IsClosed(market)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", quote.ErrInvalidInput, err)
	}
	today, err := s.cal.Today(market)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %s", quote.ErrInvalidInput, err)
	}

	if forceRefresh {
		p, err := s.fetchAndCommit(ctx, asset, symbol, key, today, closed, fetch)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Point: *p}, nil
	}

	if v, cerr := s.cache.Get(ctx, key); cerr == nil {
		if p, ok := v.(quote.PricePoint); ok {
			return Outcome{Point: p}, nil
		}
	}

	if closed {
		p, serr := s.store.ReadPoint(ctx, asset, symbol, today)
		switch {
		case serr == nil:
			// Final for the day; no reason to re-hit the source.
			if cerr := s.cache.Set(ctx, key, p, s.opts.ClosedTTL); cerr != nil {
				s.opts.Logger.Warn("cache write failed",
					zap.String("key", key), zap.Error(cerr))
			}
			return Outcome{Point: p}, nil
		case errors.Is(serr, store.ErrNotFound):
			// Nothing persisted for today yet; fall through to fetch.
		default:
			return Outcome{}, fmt.Errorf("read %s/%s@%s: %w: %w", asset, symbol, today, quote.ErrPersistence, serr)
		}
	}

	// DoChan instead of Do: a waiter must be able to abandon a flight whose
	// fetch outlives this caller's deadline. The flight itself keeps running
	// for any remaining waiters.
	ch := s.group.DoChan(key, func() (any, error) {
		return s.fetchAndCommit(ctx, asset, symbol, key, today, closed, fetch)
	})

	var v any
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		return Outcome{}, fmt.Errorf("fetch %s/%s: %w", asset, symbol, ctx.Err())
	}
	if err == nil {
		return Outcome{Point: *(v.(*quote.PricePoint))}, nil
	}

	if s.opts.StaleFallback && errors.Is(err, quote.ErrSourceFailure) {
		if prior, serr := s.store.ReadLatest(ctx, asset, symbol); serr == nil {
			s.opts.Logger.Warn("serving stale point after fetch failure",
				zap.String("asset", string(asset)),
				zap.String("symbol", symbol),
				zap.String("day", prior.Day),
				zap.Error(err))
			return Outcome{Point: prior, Stale: true}, nil
		}
	}
	return Outcome{}, err
}

// fetchAndCommit invokes the source and, on success, persists the point
// keyed by the market's today and writes it through to the cache. Cache
// write failures are logged, not surfaced: the store already holds the
// point.
func (s *Service) fetchAndCommit(ctx context.Context, asset quote.AssetType, symbol, key, today string, closed bool, fetch FetchFunc) (*quote.PricePoint, error) {
	p, err := fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w: %w", asset, symbol, quote.ErrSourceFailure, err)
	}
	if p == nil {
		// An empty answer is never persisted or cached.
		return nil, fmt.Errorf("fetch %s/%s: %w", asset, symbol, quote.ErrNotFound)
	}

	point := *p
	point.Asset = asset
	point.Symbol = symbol
	if point.Day == "" {
		point.Day = today
	}
	if err := s.store.UpsertPoint(ctx, point); err != nil {
		return nil, fmt.Errorf("persist %s/%s@%s: %w: %w", asset, symbol, point.Day, quote.ErrPersistence, err)
	}

	ttl := s.opts.OpenTTL
	if closed {
		ttl = s.opts.ClosedTTL
	}
	if cerr := s.cache.Set(ctx, key, point, ttl); cerr != nil {
		s.opts.Logger.Warn("cache write failed",
			zap.String("key", key), zap.Error(cerr))
	}
	return &point, nil
}
