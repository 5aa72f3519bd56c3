// Package ratelimit implements fixed-window request limiting keyed by
// client. Windows reset wholesale: the first request after a window elapses
// starts a fresh count rather than sliding the boundary.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Decision is the answer to one Check call. On denial, callers derive a
// retry-after duration from ResetAt.
type Decision struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type window struct {
	count int
	start time.Time
}

// Limiter tracks one fixed window per client key. The key table is bounded:
// the least recently used key is evicted past MaxKeys, and keys idle for
// IdleTTL expire on their own, so client churn cannot grow the table without
// bound. Losing a key re-opens its window, so configure IdleTTL to cover the
// longest window in use; MaxKeys is a memory cap sized for the expected
// client population.
type Limiter struct {
	mu   sync.Mutex
	keys *expirable.LRU[string, *window]
	now  func() time.Time
}

// New builds a limiter.
func New(opts ...Option) *Limiter {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Limiter{
		keys: expirable.NewLRU[string, *window](cfg.MaxKeys, nil, cfg.IdleTTL),
		now:  cfg.Clock,
	}
}

// Check records one request for clientKey against limit requests per
// windowSize. The check-and-increment is a single atomic step: two
// concurrent callers cannot both observe the pre-increment count.
//
// Every Check refreshes the key's idle clock, so a key only leaves the table
// after IdleTTL with no requests at all. IdleTTL must be at least windowSize;
// otherwise a denied key whose callers back off longer than IdleTTL can be
// re-admitted before its window has elapsed.
func (l *Limiter) Check(clientKey string, limit int, windowSize time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.keys.Get(clientKey)
	if !ok || now.Sub(w.start) > windowSize {
		// First request of a fresh window.
		w = &window{count: 1, start: now}
	} else {
		w.count++
	}
	// Re-Add on every request: the LRU expires entries by time since Add,
	// making its TTL idle time rather than window age.
	l.keys.Add(clientKey, w)

	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   w.count <= limit,
		Remaining: remaining,
		ResetAt:   w.start.Add(windowSize),
	}
}
