package quote

import (
	"fmt"
	"strings"
	"time"
)

// Cache keys are hierarchical: quotes:<asset>:<SYMBOL>:<variant...>. Every
// cached variant for one symbol shares the quotes:<asset>:<SYMBOL>: prefix so
// a single trailing-wildcard pattern can purge them all.
const keyPrefix = "quotes"

// RangeOpen is the sentinel for a missing range bound, so that omitted and
// empty bounds always serialize identically.
const RangeOpen = "*"

// NormalizeSymbol uppercases and trims a symbol so "hbl" and "HBL" collapse
// onto one key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateSymbol rejects symbols that are empty, oversized, or would break
// key hierarchy or glob matching.
func ValidateSymbol(symbol string) error {
	s := NormalizeSymbol(symbol)
	if s == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}
	if len(s) > 32 {
		return fmt.Errorf("%w: symbol %q too long", ErrInvalidInput, s)
	}
	if strings.ContainsAny(s, ":*") {
		return fmt.Errorf("%w: symbol %q contains reserved characters", ErrInvalidInput, s)
	}
	return nil
}

// ValidateDay checks a YYYY-MM-DD calendar date.
func ValidateDay(day string) error {
	if _, err := time.Parse("2006-01-02", day); err != nil {
		return fmt.Errorf("%w: bad day %q", ErrInvalidInput, day)
	}
	return nil
}

// PriceKey builds the cache key for a price lookup. An empty day means
// "current price". Identical logical requests always produce identical keys.
//
// The force-refresh flag is deliberately not part of the key space: a forced
// refresh must overwrite the same entry that subsequent non-refresh reads
// will see.
func PriceKey(asset AssetType, symbol, day string) string {
	variant := day
	if variant == "" {
		variant = "current"
	}
	return fmt.Sprintf("%s:%s:%s:price:%s", keyPrefix, asset, NormalizeSymbol(symbol), variant)
}

// HistoricalKey builds the cache key for a historical range lookup. Missing
// bounds normalize to RangeOpen so (A, B, "", "") is a total function with a
// single representation.
func HistoricalKey(asset AssetType, symbol, startDay, endDay string) string {
	if startDay == "" {
		startDay = RangeOpen
	}
	if endDay == "" {
		endDay = RangeOpen
	}
	return fmt.Sprintf("%s:%s:%s:hist:%s:%s", keyPrefix, asset, NormalizeSymbol(symbol), startDay, endDay)
}

// InvalidationPattern produces the glob that purges every cached variant
// (current price and all historical ranges) for one symbol.
func InvalidationPattern(asset AssetType, symbol string) string {
	return fmt.Sprintf("%s:%s:%s:*", keyPrefix, asset, NormalizeSymbol(symbol))
}
