package memory

import "time"

// Options controls the in-memory store's expiration and capacity behavior.
type Options struct {
	// DefaultTTL applies to Set calls that pass cache.DefaultTTL.
	DefaultTTL time.Duration

	// MaxEntries bounds the number of live entries; the least recently
	// used entry is evicted when the bound is exceeded. The bound caps
	// memory, it is not a correctness requirement.
	MaxEntries int

	// Clock replaces time.Now, letting tests drive expiry without sleeping.
	Clock func() time.Time
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		DefaultTTL: 5 * time.Minute,
		MaxEntries: 10000,
		Clock:      time.Now,
	}
}

func WithDefaultTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.DefaultTTL = d
		}
	}
}

func WithMaxEntries(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxEntries = n
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}
