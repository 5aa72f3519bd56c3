package fresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/adeilh/go-taaza/cache"
	cachemem "github.com/adeilh/go-taaza/cache/memory"
	"github.com/adeilh/go-taaza/marketcal"
	"github.com/adeilh/go-taaza/quote"
	"github.com/adeilh/go-taaza/store"
	storemem "github.com/adeilh/go-taaza/store/memory"
)

// Friday 2024-03-01, 12:00 UTC: 17:00 in Karachi (PSX closed for the day),
// 07:00 in New York (US pre-open).
var psxClosed = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Friday 2024-03-01, 07:00 UTC: 12:00 in Karachi, mid-session.
var psxOpen = time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, at time.Time, st store.Store, opts ...Option) (*Service, *cachemem.Store) {
	t.Helper()
	cal, err := marketcal.New(marketcal.WithClock(func() time.Time { return at }))
	if err != nil {
		t.Fatalf("marketcal.New() error = %v", err)
	}
	c := cachemem.NewStore()
	svc, err := New(c, st, cal, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc, c
}

// countingFetch returns a FetchFunc that counts invocations and returns a
// fixed point after an optional delay.
func countingFetch(calls *atomic.Int32, p *quote.PricePoint, delay time.Duration) FetchFunc {
	return func(ctx context.Context) (*quote.PricePoint, error) {
		calls.Add(1)
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		return p, nil
	}
}

func TestEnsureDataSingleFlight(t *testing.T) {
	svc, _ := newTestService(t, psxOpen, storemem.NewStore())

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 42000}, 50*time.Millisecond)

	const n = 8
	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = svc.EnsureData(context.Background(), quote.AssetCrypto, "BTC", fetch, false)
		}(i)
	}
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch invoked %d times, want exactly 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if outcomes[i].Point.Close != 42000 || outcomes[i].Stale {
			t.Fatalf("caller %d outcome = %+v, want fresh 42000", i, outcomes[i])
		}
	}
}

func TestEnsureDataClosedMarketShortCircuit(t *testing.T) {
	st := storemem.NewStore()
	seed := quote.PricePoint{Asset: quote.AssetPSX, Symbol: "HBL", Day: "2024-03-01", Close: 150}
	if err := st.UpsertPoint(context.Background(), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	svc, _ := newTestService(t, psxClosed, st)

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 999}, 0)

	out, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false)
	if err != nil {
		t.Fatalf("EnsureData error = %v", err)
	}
	if out.Point.Close != 150 {
		t.Fatalf("close = %v, want persisted 150", out.Point.Close)
	}
	if got := calls.Load(); got != 0 {
		t.Fatalf("fetch invoked %d times after close, want 0", got)
	}
}

func TestEnsureDataClosedMarketFetchesWhenNoPointForToday(t *testing.T) {
	st := storemem.NewStore()
	// Yesterday's point exists, but not today's: the close has not been
	// captured yet, so a fetch is still required.
	old := quote.PricePoint{Asset: quote.AssetPSX, Symbol: "HBL", Day: "2024-02-29", Close: 148}
	if err := st.UpsertPoint(context.Background(), old); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	svc, _ := newTestService(t, psxClosed, st)

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 151}, 0)

	out, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false)
	if err != nil {
		t.Fatalf("EnsureData error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch invoked %d times, want 1", calls.Load())
	}
	if out.Point.Close != 151 {
		t.Fatalf("close = %v, want fetched 151", out.Point.Close)
	}

	// The fetched point must be persisted under the market's today.
	p, err := st.ReadPoint(context.Background(), quote.AssetPSX, "HBL", "2024-03-01")
	if err != nil {
		t.Fatalf("ReadPoint after fetch: %v", err)
	}
	if p.Close != 151 {
		t.Fatalf("persisted close = %v, want 151", p.Close)
	}
}

func TestEnsureDataForceRefreshBypass(t *testing.T) {
	st := storemem.NewStore()
	seed := quote.PricePoint{Asset: quote.AssetPSX, Symbol: "HBL", Day: "2024-03-01", Close: 150}
	if err := st.UpsertPoint(context.Background(), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	svc, _ := newTestService(t, psxClosed, st)

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 152}, 0)

	out, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, true)
	if err != nil {
		t.Fatalf("EnsureData error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch invoked %d times despite forceRefresh, want 1", calls.Load())
	}
	if out.Point.Close != 152 {
		t.Fatalf("close = %v, want refreshed 152", out.Point.Close)
	}

	// The refresh overwrote the entry non-refresh readers see: a follow-up
	// plain read returns the new value without another fetch.
	out, err = svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false)
	if err != nil {
		t.Fatalf("follow-up EnsureData error = %v", err)
	}
	if out.Point.Close != 152 {
		t.Fatalf("follow-up close = %v, want 152", out.Point.Close)
	}
	if calls.Load() != 1 {
		t.Fatalf("follow-up read fetched again (%d calls), want cache hit", calls.Load())
	}
}

func TestEnsureDataNullDistinctFromError(t *testing.T) {
	t.Run("nil point is not found, never persisted", func(t *testing.T) {
		st := storemem.NewStore()
		svc, _ := newTestService(t, psxOpen, st)

		fetch := func(ctx context.Context) (*quote.PricePoint, error) { return nil, nil }
		_, err := svc.EnsureData(context.Background(), quote.AssetCrypto, "NOPE", fetch, false)
		if !errors.Is(err, quote.ErrNotFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
		if _, err := st.ReadLatest(context.Background(), quote.AssetCrypto, "NOPE"); !errors.Is(err, store.ErrNotFound) {
			t.Fatal("a nil fetch result must leave the persistence store untouched")
		}
	})

	t.Run("fetch error without prior data is a source failure", func(t *testing.T) {
		svc, _ := newTestService(t, psxOpen, storemem.NewStore())

		fetch := func(ctx context.Context) (*quote.PricePoint, error) { return nil, errors.New("boom") }
		_, err := svc.EnsureData(context.Background(), quote.AssetCrypto, "BTC", fetch, false)
		if !errors.Is(err, quote.ErrSourceFailure) {
			t.Fatalf("error = %v, want ErrSourceFailure", err)
		}
		if errors.Is(err, quote.ErrNotFound) {
			t.Fatal("a fetch failure must not be reported as not found")
		}
	})

	t.Run("fetch error with prior data degrades to stale", func(t *testing.T) {
		st := storemem.NewStore()
		prior := quote.PricePoint{Asset: quote.AssetCrypto, Symbol: "BTC", Day: "2024-02-29", Close: 41000}
		if err := st.UpsertPoint(context.Background(), prior); err != nil {
			t.Fatalf("seed store: %v", err)
		}
		svc, _ := newTestService(t, psxOpen, st)

		fetch := func(ctx context.Context) (*quote.PricePoint, error) { return nil, errors.New("boom") }
		out, err := svc.EnsureData(context.Background(), quote.AssetCrypto, "BTC", fetch, false)
		if err != nil {
			t.Fatalf("error = %v, want degraded success", err)
		}
		if !out.Stale || out.Point.Close != 41000 {
			t.Fatalf("outcome = %+v, want stale 41000", out)
		}
	})

	t.Run("fallback disabled propagates the failure", func(t *testing.T) {
		st := storemem.NewStore()
		prior := quote.PricePoint{Asset: quote.AssetCrypto, Symbol: "BTC", Day: "2024-02-29", Close: 41000}
		if err := st.UpsertPoint(context.Background(), prior); err != nil {
			t.Fatalf("seed store: %v", err)
		}
		svc, _ := newTestService(t, psxOpen, st, WithStaleFallback(false))

		fetch := func(ctx context.Context) (*quote.PricePoint, error) { return nil, errors.New("boom") }
		if _, err := svc.EnsureData(context.Background(), quote.AssetCrypto, "BTC", fetch, false); !errors.Is(err, quote.ErrSourceFailure) {
			t.Fatalf("error = %v, want ErrSourceFailure", err)
		}
	})
}

// failingStore wraps a working store and fails selected operations.
type failingStore struct {
	store.Store
	failUpsert bool
	failRead   bool
}

var errStoreDown = errors.New("store down")

func (f *failingStore) UpsertPoint(ctx context.Context, p quote.PricePoint) error {
	if f.failUpsert {
		return errStoreDown
	}
	return f.Store.UpsertPoint(ctx, p)
}

func (f *failingStore) ReadPoint(ctx context.Context, asset quote.AssetType, symbol, day string) (quote.PricePoint, error) {
	if f.failRead {
		return quote.PricePoint{}, errStoreDown
	}
	return f.Store.ReadPoint(ctx, asset, symbol, day)
}

func TestEnsureDataPersistenceFailureSurfaced(t *testing.T) {
	t.Run("upsert failure", func(t *testing.T) {
		st := &failingStore{Store: storemem.NewStore(), failUpsert: true}
		svc, _ := newTestService(t, psxOpen, st)

		fetch := func(ctx context.Context) (*quote.PricePoint, error) {
			return &quote.PricePoint{Close: 150}, nil
		}
		_, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false)
		if !errors.Is(err, quote.ErrPersistence) {
			t.Fatalf("error = %v, want ErrPersistence", err)
		}
	})

	t.Run("read failure on closed market", func(t *testing.T) {
		st := &failingStore{Store: storemem.NewStore(), failRead: true}
		svc, _ := newTestService(t, psxClosed, st)

		fetch := func(ctx context.Context) (*quote.PricePoint, error) {
			return &quote.PricePoint{Close: 150}, nil
		}
		_, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false)
		if !errors.Is(err, quote.ErrPersistence) {
			t.Fatalf("error = %v, want ErrPersistence", err)
		}
	})
}

// failingCache wraps a working cache and refuses writes.
type failingCache struct {
	cache.Store
}

var errCacheDown = errors.New("cache down")

func (f *failingCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return errCacheDown
}

func TestEnsureDataClosedMarketSurvivesCacheWriteFailure(t *testing.T) {
	st := storemem.NewStore()
	seed := quote.PricePoint{Asset: quote.AssetPSX, Symbol: "HBL", Day: "2024-03-01", Close: 150}
	if err := st.UpsertPoint(context.Background(), seed); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	cal, err := marketcal.New(marketcal.WithClock(func() time.Time { return psxClosed }))
	if err != nil {
		t.Fatalf("marketcal.New() error = %v", err)
	}
	core, logs := observer.New(zap.WarnLevel)
	svc, err := New(&failingCache{Store: cachemem.NewStore()}, st, cal, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 999}, 0)

	out, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false)
	if err != nil {
		t.Fatalf("EnsureData error = %v", err)
	}
	if out.Point.Close != 150 {
		t.Fatalf("close = %v, want persisted 150", out.Point.Close)
	}
	if calls.Load() != 0 {
		t.Fatalf("fetch invoked %d times after close, want 0", calls.Load())
	}

	// The cache failure is degraded service, not data loss: it must show up
	// in the log rather than disappear.
	if got := logs.FilterMessage("cache write failed").Len(); got != 1 {
		t.Fatalf("cache write failure logged %d times, want 1", got)
	}
}

func TestEnsureDataCacheHitSkipsFetch(t *testing.T) {
	svc, _ := newTestService(t, psxOpen, storemem.NewStore())

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 150}, 0)

	for i := 0; i < 3; i++ {
		if _, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false); err != nil {
			t.Fatalf("call %d error = %v", i, err)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch invoked %d times across cached reads, want 1", calls.Load())
	}
}

func TestEnsureDataSymbolCaseCollapses(t *testing.T) {
	svc, _ := newTestService(t, psxOpen, storemem.NewStore())

	var calls atomic.Int32
	fetch := countingFetch(&calls, &quote.PricePoint{Close: 150}, 0)

	if _, err := svc.EnsureData(context.Background(), quote.AssetPSX, "hbl", fetch, false); err != nil {
		t.Fatalf("lowercase call error = %v", err)
	}
	if _, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", fetch, false); err != nil {
		t.Fatalf("uppercase call error = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch invoked %d times, want 1 (case-insensitive key)", calls.Load())
	}
}

func TestEnsureDataValidation(t *testing.T) {
	svc, _ := newTestService(t, psxOpen, storemem.NewStore())
	fetch := func(ctx context.Context) (*quote.PricePoint, error) { return nil, nil }

	cases := []struct {
		name string
		call func() error
	}{
		{"unknown asset", func() error {
			_, err := svc.EnsureData(context.Background(), "bonds", "X", fetch, false)
			return err
		}},
		{"empty symbol", func() error {
			_, err := svc.EnsureData(context.Background(), quote.AssetPSX, "", fetch, false)
			return err
		}},
		{"nil fetch", func() error {
			_, err := svc.EnsureData(context.Background(), quote.AssetPSX, "HBL", nil, false)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.call(); !errors.Is(err, quote.ErrInvalidInput) {
				t.Fatalf("error = %v, want ErrInvalidInput", err)
			}
		})
	}
}
