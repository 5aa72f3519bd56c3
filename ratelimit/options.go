package ratelimit

import "time"

type Options struct {
	// MaxKeys bounds the number of tracked client keys.
	MaxKeys int

	// IdleTTL expires keys with no requests at all for this long. Must be
	// at least the largest windowSize passed to Check, or an idle-expired
	// key could be re-admitted before its window has elapsed.
	IdleTTL time.Duration

	// Clock replaces time.Now for tests.
	Clock func() time.Time
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MaxKeys: 10000,
		IdleTTL: 10 * time.Minute,
		Clock:   time.Now,
	}
}

func WithMaxKeys(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxKeys = n
		}
	}
}

func WithIdleTTL(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.IdleTTL = d
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
