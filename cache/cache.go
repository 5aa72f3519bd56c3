package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("cache: key not found")

	// ErrBadPattern is returned for invalidation patterns that are not a
	// literal prefix followed by a single trailing wildcard.
	ErrBadPattern = errors.New("cache: pattern must end with a single trailing wildcard")
)

// DefaultTTL tells Set to apply the store's configured default expiration.
const DefaultTTL time.Duration = 0

// Store is a process-wide TTL cache. Entries expire lazily: a read past the
// entry's deadline is a miss, with no background sweeping required. Stored
// values are snapshots; callers must not mutate what they put in or get out.
type Store interface {
	// Get returns the value for key, or ErrNotFound if the key was never
	// written or its TTL has elapsed.
	Get(ctx context.Context, key string) (any, error)

	// Set overwrites key with value. ttl <= 0 applies the store default.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error

	// Delete removes key if present; deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// DeletePattern removes every entry whose key matches a glob-style
	// pattern with a single trailing wildcard (e.g. "quotes:psx:HBL:*")
	// and returns the number of entries removed.
	DeletePattern(ctx context.Context, pattern string) (int, error)
}
