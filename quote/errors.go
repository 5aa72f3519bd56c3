package quote

import "errors"

var (
	// ErrNotFound marks an authoritative empty answer: the source has no
	// data for the instrument. It is a valid outcome, not a failure, and is
	// never persisted or cached.
	ErrNotFound = errors.New("quote: no data for symbol")

	// ErrSourceFailure marks a failed external fetch (network error,
	// timeout, bad payload). Recoverable via stale-data fallback when a
	// prior persisted point exists.
	ErrSourceFailure = errors.New("quote: source fetch failed")

	// ErrPersistence marks a persistence store failure. Never absorbed:
	// staleness decisions depend on the store being truthful.
	ErrPersistence = errors.New("quote: persistence store failed")

	// ErrInvalidInput marks malformed request inputs, rejected before any
	// I/O is attempted.
	ErrInvalidInput = errors.New("quote: invalid request input")
)
