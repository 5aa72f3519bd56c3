package memory

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/adeilh/go-taaza/cache"
)

// Store implements cache.Store with a mutex-guarded map plus an LRU list for
// the capacity bound. Expiry is lazy: entries are checked on read and
// otherwise left in place until eviction or explicit invalidation.
type Store struct {
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // front = most recently used
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	elem      *list.Element
}

// NewStore builds an in-memory cache store.
func NewStore(opts ...Option) *Store {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Store{
		opts:    cfg,
		entries: make(map[string]*entry),
		order:   list.New(),
	}
}

func (s *Store) Get(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, cache.ErrNotFound
	}
	if s.opts.Clock().After(e.expiresAt) {
		s.remove(e)
		return nil, cache.ErrNotFound
	}
	s.order.MoveToFront(e.elem)
	return e.value, nil
}

func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = s.opts.DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := s.opts.Clock().Add(ttl)
	if e, ok := s.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToFront(e.elem)
		return nil
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	e.elem = s.order.PushFront(e)
	s.entries[key] = e

	for len(s.entries) > s.opts.MaxEntries {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.remove(oldest.Value.(*entry))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.remove(e)
	}
	return nil
}

func (s *Store) DeletePattern(ctx context.Context, pattern string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	prefix, ok := strings.CutSuffix(pattern, "*")
	if !ok || strings.Contains(prefix, "*") {
		return 0, cache.ErrBadPattern
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.entries {
		if strings.HasPrefix(key, prefix) {
			s.remove(e)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live entries, counting expired-but-unswept ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// remove must be called with s.mu held.
func (s *Store) remove(e *entry) {
	delete(s.entries, e.key)
	s.order.Remove(e.elem)
}
