package store

import (
	"context"
	"errors"

	"github.com/adeilh/go-taaza/quote"
)

var ErrNotFound = errors.New("store: point not found")

// Store is the durable home for daily price points. The engine treats it as
// append/upsert-only: points are never deleted, and UpsertPoint must be
// idempotent so concurrent writers keyed by the same (asset, symbol, day)
// cannot leave conflicting rows.
type Store interface {
	// ReadPoint returns the point for one day, or ErrNotFound.
	ReadPoint(ctx context.Context, asset quote.AssetType, symbol, day string) (quote.PricePoint, error)

	// UpsertPoint inserts or replaces the point keyed by its
	// (Asset, Symbol, Day).
	UpsertPoint(ctx context.Context, p quote.PricePoint) error

	// ReadRange returns points in [start, end] ordered by day ascending.
	// Empty bounds leave that side of the range open.
	ReadRange(ctx context.Context, asset quote.AssetType, symbol, start, end string) ([]quote.PricePoint, error)

	// ReadLatest returns the most recent stored point for the symbol, or
	// ErrNotFound when nothing has ever been persisted.
	ReadLatest(ctx context.Context, asset quote.AssetType, symbol string) (quote.PricePoint, error)
}
