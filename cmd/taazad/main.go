// Command taazad serves always-fresh daily market data over HTTP. It fronts
// three upstream sources (stockanalysis.com, Binance, Investing.com) with a
// TTL cache, a persistence store and the freshness orchestrator, so every
// price request costs at most one upstream fetch no matter how many clients
// ask at once.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/adeilh/go-taaza/cache"
	cachemem "github.com/adeilh/go-taaza/cache/memory"
	"github.com/adeilh/go-taaza/config"
	"github.com/adeilh/go-taaza/fresh"
	"github.com/adeilh/go-taaza/httpx"
	"github.com/adeilh/go-taaza/marketcal"
	"github.com/adeilh/go-taaza/ratelimit"
	"github.com/adeilh/go-taaza/source"
	"github.com/adeilh/go-taaza/store"
	storemem "github.com/adeilh/go-taaza/store/memory"
	"github.com/adeilh/go-taaza/store/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taazad: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("TAAZA_CONFIG"))
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := newStore(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cal, err := marketcal.New()
	if err != nil {
		return err
	}

	var cacheStore cache.Store = cachemem.NewStore(
		cachemem.WithDefaultTTL(cfg.Cache.DefaultTTL),
		cachemem.WithMaxEntries(cfg.Cache.MaxEntries),
	)

	svc, err := fresh.New(cacheStore, st, cal,
		fresh.WithOpenTTL(cfg.Fresh.OpenTTL),
		fresh.WithClosedTTL(cfg.Fresh.ClosedTTL),
		fresh.WithStaleFallback(cfg.Fresh.StaleFallback),
		fresh.WithBatchLimit(cfg.Fresh.BatchLimit),
		fresh.WithBatchTimeout(cfg.Fresh.BatchTimeout),
		fresh.WithLogger(log),
	)
	if err != nil {
		return err
	}

	sourceOpts := []source.Option{source.WithTimeout(cfg.Source.Timeout)}
	reg := source.NewRegistry(
		source.NewStockAnalysis(sourceOpts...),
		source.NewBinance(sourceOpts...),
		source.NewInvesting(append(sourceOpts, source.WithInstrument(cfg.Source.Instrument))...),
	)

	// The idle TTL tracks the configured window so a throttled client's
	// key cannot expire out of the table mid-window.
	limiter := ratelimit.New(
		ratelimit.WithMaxKeys(cfg.RateLimit.MaxKeys),
		ratelimit.WithIdleTTL(cfg.RateLimit.Window),
	)
	limit := httpx.RateLimitMiddleware(limiter, cfg.RateLimit.Limit, cfg.RateLimit.Window)

	server := httpx.NewServer(
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.AppendMiddlewares(httpx.RequestLoggerMiddleware(log)),
	)

	a := &api{svc: svc, reg: reg, st: st, log: log}
	server.RegisterRoutes(a.routes(limit))

	log.Info("starting server", zap.String("address", cfg.Server.Address))
	err = server.Start(ctx, httpx.WithShutdownTimeout(cfg.Server.ShutdownTimeout))
	if errors.Is(err, context.Canceled) {
		log.Info("shutdown complete")
		return nil
	}
	return err
}

func newStore(ctx context.Context, cfg config.Postgres, log *zap.Logger) (store.Store, func(), error) {
	if cfg.DSN == "" {
		log.Info("no postgres dsn configured, using in-memory store")
		return storemem.NewStore(), func() {}, nil
	}

	db, err := postgres.Open(
		postgres.WithDSN(cfg.DSN),
		postgres.WithMaxOpenConns(cfg.MaxOpenConns),
		postgres.WithMaxIdleConns(cfg.MaxIdleConns),
		postgres.WithConnMaxLifetime(cfg.ConnMaxLifetime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	log.Info("using postgres store")
	return postgres.NewPriceRepository(db), func() { db.Close() }, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}
