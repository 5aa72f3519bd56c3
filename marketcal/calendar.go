package marketcal

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownMarket = errors.New("marketcal: unknown market")

// Market identifiers known to the default calendar.
const (
	MarketPSX    = "PK"     // Pakistan Stock Exchange
	MarketUS     = "US"     // US equities and index sessions
	MarketCrypto = "CRYPTO" // around-the-clock, never closed
)

// Session describes one market's trading window in its own timezone.
// Open/Close are wall-clock "HH:MM" strings; Days lists trading weekdays.
// AlwaysOpen short-circuits everything else.
type Session struct {
	TZ         string
	Open       string
	Close      string
	Days       []time.Weekday
	AlwaysOpen bool
}

// Calendar answers "is this market closed right now" and "what is today's
// date in this market's timezone". It holds no mutable state; the clock is
// injectable for tests.
type Calendar struct {
	sessions map[string]Session
	locs     map[string]*time.Location
	now      func() time.Time
}

// New builds a calendar with the default market table; options may add or
// override markets and replace the clock. Timezones are resolved eagerly so
// a bad table fails at construction, not per query.
func New(opts ...Option) (*Calendar, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	c := &Calendar{
		sessions: cfg.Sessions,
		locs:     make(map[string]*time.Location, len(cfg.Sessions)),
		now:      cfg.Clock,
	}
	for name, s := range cfg.Sessions {
		loc, err := time.LoadLocation(s.TZ)
		if err != nil {
			return nil, fmt.Errorf("marketcal: market %s: %w", name, err)
		}
		c.locs[name] = loc
		if s.AlwaysOpen {
			continue
		}
		if _, err := parseClock(s.Open); err != nil {
			return nil, fmt.Errorf("marketcal: market %s open: %w", name, err)
		}
		if _, err := parseClock(s.Close); err != nil {
			return nil, fmt.Errorf("marketcal: market %s close: %w", name, err)
		}
	}
	return c, nil
}

// IsClosed reports whether the market is outside its trading session, in the
// market's own timezone.
func (c *Calendar) IsClosed(market string) (bool, error) {
	s, ok := c.sessions[market]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownMarket, market)
	}
	if s.AlwaysOpen {
		return false, nil
	}

	now := c.now().In(c.locs[market])
	if !tradingDay(s.Days, now.Weekday()) {
		return true, nil
	}

	open, _ := parseClock(s.Open)
	close, _ := parseClock(s.Close)
	minute := now.Hour()*60 + now.Minute()
	return minute < open || minute >= close, nil
}

// Today returns the calendar date as observed in the market's timezone,
// formatted YYYY-MM-DD. This is the date "today's final price" is keyed by,
// which need not match the server's local or UTC date.
func (c *Calendar) Today(market string) (string, error) {
	loc, ok := c.locs[market]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownMarket, market)
	}
	return c.now().In(loc).Format("2006-01-02"), nil
}

func tradingDay(days []time.Weekday, d time.Weekday) bool {
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
