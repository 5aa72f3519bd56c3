package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeilh/go-taaza/cache"
)

// testClock is a manually advanced clock shared by a store and its test.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()

	t.Run("miss on unknown key", func(t *testing.T) {
		s := NewStore()
		if _, err := s.Get(ctx, "nope"); !errors.Is(err, cache.ErrNotFound) {
			t.Fatalf("Get = %v, want ErrNotFound", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		s := NewStore()
		if err := s.Set(ctx, "k", 42, cache.DefaultTTL); err != nil {
			t.Fatalf("Set error = %v", err)
		}
		v, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get error = %v", err)
		}
		if v.(int) != 42 {
			t.Fatalf("Get = %v, want 42", v)
		}
	})

	t.Run("overwrite replaces value and deadline", func(t *testing.T) {
		clock := newTestClock()
		s := NewStore(WithClock(clock.Now), WithDefaultTTL(time.Minute))
		_ = s.Set(ctx, "k", "old", cache.DefaultTTL)
		clock.Advance(50 * time.Second)
		_ = s.Set(ctx, "k", "new", cache.DefaultTTL)
		clock.Advance(30 * time.Second) // 80s after first write, 30s after second
		v, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get error = %v", err)
		}
		if v.(string) != "new" {
			t.Fatalf("Get = %v, want new", v)
		}
	})
}

func TestLazyExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	s := NewStore(WithClock(clock.Now), WithDefaultTTL(time.Minute))

	_ = s.Set(ctx, "short", "v", 10*time.Second)
	_ = s.Set(ctx, "long", "v", time.Hour)

	clock.Advance(30 * time.Second)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expired Get = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "long"); err != nil {
		t.Fatalf("unexpired Get error = %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Set(ctx, "k", 1, cache.DefaultTTL)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
	// Deleting an absent key is a no-op.
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("second Delete error = %v", err)
	}
}

func TestDeletePattern(t *testing.T) {
	ctx := context.Background()

	t.Run("removes only matching keys", func(t *testing.T) {
		s := NewStore()
		_ = s.Set(ctx, "historical-data:crypto:BTC:default", "x", cache.DefaultTTL)
		_ = s.Set(ctx, "historical-data:crypto:ETH:default", "y", cache.DefaultTTL)

		n, err := s.DeletePattern(ctx, "historical-data:crypto:BTC:*")
		if err != nil {
			t.Fatalf("DeletePattern error = %v", err)
		}
		if n != 1 {
			t.Fatalf("removed %d entries, want 1", n)
		}
		if _, err := s.Get(ctx, "historical-data:crypto:BTC:default"); !errors.Is(err, cache.ErrNotFound) {
			t.Fatal("BTC entry should be gone")
		}
		v, err := s.Get(ctx, "historical-data:crypto:ETH:default")
		if err != nil || v.(string) != "y" {
			t.Fatalf("ETH entry = %v, %v; want y, nil", v, err)
		}
	})

	t.Run("rejects patterns without trailing wildcard", func(t *testing.T) {
		s := NewStore()
		if _, err := s.DeletePattern(ctx, "no-wildcard"); !errors.Is(err, cache.ErrBadPattern) {
			t.Fatalf("error = %v, want ErrBadPattern", err)
		}
	})

	t.Run("rejects interior wildcards", func(t *testing.T) {
		s := NewStore()
		if _, err := s.DeletePattern(ctx, "a:*:b:*"); !errors.Is(err, cache.ErrBadPattern) {
			t.Fatalf("error = %v, want ErrBadPattern", err)
		}
	})
}

func TestCapacityBound(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithMaxEntries(2))

	_ = s.Set(ctx, "a", 1, cache.DefaultTTL)
	_ = s.Set(ctx, "b", 2, cache.DefaultTTL)
	_, _ = s.Get(ctx, "a") // touch a so b becomes least recently used
	_ = s.Set(ctx, "c", 3, cache.DefaultTTL)

	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	if _, err := s.Get(ctx, "b"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatal("least recently used entry should have been evicted")
	}
	if v, err := s.Get(ctx, "a"); err != nil || v.(int) != 1 {
		t.Fatalf("a = %v, %v; want 1, nil", v, err)
	}
	if v, err := s.Get(ctx, "c"); err != nil || v.(int) != 3 {
		t.Fatalf("c = %v, %v; want 3, nil", v, err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	if _, err := s.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Get = %v, want context.Canceled", err)
	}
	if err := s.Set(ctx, "k", 1, cache.DefaultTTL); !errors.Is(err, context.Canceled) {
		t.Fatalf("Set = %v, want context.Canceled", err)
	}
}
