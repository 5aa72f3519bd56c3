package marketcal

import "time"

type Options struct {
	Sessions map[string]Session
	Clock    func() time.Time
}

type Option func(*Options)

func defaultOptions() Options {
	weekdays := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}
	return Options{
		Sessions: map[string]Session{
			MarketPSX: {
				TZ:    "Asia/Karachi",
				Open:  "09:30",
				Close: "15:30",
				Days:  weekdays,
			},
			MarketUS: {
				TZ:    "America/New_York",
				Open:  "09:30",
				Close: "16:00",
				Days:  weekdays,
			},
			MarketCrypto: {
				TZ:         "UTC",
				AlwaysOpen: true,
			},
		},
		Clock: time.Now,
	}
}

// WithMarket adds or overrides one market's session.
func WithMarket(name string, s Session) Option {
	return func(o *Options) {
		if name != "" {
			o.Sessions[name] = s
		}
	}
}

// WithClock replaces the wall clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		if clock != nil {
			o.Clock = clock
		}
	}
}
