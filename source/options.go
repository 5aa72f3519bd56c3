package source

import "time"

type Options struct {
	// BaseURL overrides the upstream endpoint, mainly for tests.
	BaseURL string

	// Timeout bounds each upstream round trip.
	Timeout time.Duration

	// Instrument is the Investing.com instrument ID. Ignored by the other
	// clients.
	Instrument string
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Timeout:    30 * time.Second,
		Instrument: spx500Instrument,
	}
}

func WithBaseURL(url string) Option {
	return func(o *Options) {
		if url != "" {
			o.BaseURL = url
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Timeout = d
		}
	}
}

func WithInstrument(id string) Option {
	return func(o *Options) {
		if id != "" {
			o.Instrument = id
		}
	}
}
