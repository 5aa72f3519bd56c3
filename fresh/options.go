package fresh

import (
	"time"

	"go.uber.org/zap"
)

// Options tunes the orchestrator's freshness policy.
type Options struct {
	// OpenTTL caches a fetched price while the market is trading. Short:
	// an open market's price is perishable.
	OpenTTL time.Duration

	// ClosedTTL caches a price once the market has closed for the day;
	// the value is final until the next session.
	ClosedTTL time.Duration

	// StaleFallback serves the latest persisted point as a degraded
	// success when a fetch fails. The caller sees Outcome.Stale=true. Only
	// source failures are absorbed this way; persistence failures and
	// authoritative not-found answers always propagate.
	StaleFallback bool

	// BatchTimeout bounds a whole EnsureBatch call; unresolved requests
	// surface as timeout errors instead of hanging the batch.
	BatchTimeout time.Duration

	// BatchLimit is the default concurrency cap for EnsureBatch when the
	// caller passes limit <= 0.
	BatchLimit int

	Logger *zap.Logger
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		OpenTTL:       30 * time.Second,
		ClosedTTL:     6 * time.Hour,
		StaleFallback: true,
		BatchTimeout:  2 * time.Minute,
		BatchLimit:    4,
		Logger:        zap.NewNop(),
	}
}

func WithOpenTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.OpenTTL = d
		}
	}
}

func WithClosedTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ClosedTTL = d
		}
	}
}

// WithStaleFallback toggles serving the latest persisted point when a fetch
// fails.
func WithStaleFallback(enabled bool) Option {
	return func(o *Options) {
		o.StaleFallback = enabled
	}
}

func WithBatchTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.BatchTimeout = d
		}
	}
}

func WithBatchLimit(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.BatchLimit = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}
