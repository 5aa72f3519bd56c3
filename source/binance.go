package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/adeilh/go-taaza/quote"
)

const (
	binanceBaseURL   = "https://api.binance.com"
	binanceMaxKlines = 1000
)

// Binance fetches daily klines from the Binance spot API.
type Binance struct {
	rc *resty.Client
}

func NewBinance(opts ...Option) *Binance {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New()
	rc.SetBaseURL(cfg.BaseURL)
	if cfg.BaseURL == "" {
		rc.SetBaseURL(binanceBaseURL)
	}
	rc.SetTimeout(cfg.Timeout)

	return &Binance{rc: rc}
}

// NormalizePair maps a loose crypto symbol onto the Binance pair convention:
// separators are stripped and bare assets are quoted in USDT, so "btc",
// "BTC-USDT" and "BTC/USDT" all become "BTCUSDT".
func NormalizePair(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("-", "", "_", "", "/", "").Replace(s)
	if s != "" && !strings.HasSuffix(s, "USDT") {
		s += "USDT"
	}
	return s
}

// Klines fetches up to limit daily candles for a pair, oldest first. A
// non-empty startDay asks for candles from the day after it, matching the
// "already have through startDay" hint the history merge passes.
func (b *Binance) Klines(ctx context.Context, symbol, startDay string, limit int) ([]quote.PricePoint, error) {
	pair := NormalizePair(symbol)
	if pair == "" {
		return nil, fmt.Errorf("binance: empty symbol")
	}
	if limit <= 0 || limit > binanceMaxKlines {
		limit = binanceMaxKlines
	}

	req := b.rc.R().SetContext(ctx).
		SetQueryParam("symbol", pair).
		SetQueryParam("interval", "1d").
		SetQueryParam("limit", strconv.Itoa(limit))
	if startDay != "" {
		day, err := time.Parse("2006-01-02", startDay)
		if err != nil {
			return nil, fmt.Errorf("binance %s: bad start day %q: %w", pair, startDay, err)
		}
		startMs := day.AddDate(0, 0, 1).UnixMilli()
		req.SetQueryParam("startTime", strconv.FormatInt(startMs, 10))
	}

	resp, err := req.Get("/api/v3/klines")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("binance %s: http %d: %s", pair, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	// Kline rows are heterogeneous arrays:
	// [openTime, open, high, low, close, volume, closeTime, ...].
	var rows [][]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("binance %s: decode response: %w", pair, err)
	}

	points := make([]quote.PricePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			return nil, fmt.Errorf("binance %s: short kline row (%d fields)", pair, len(row))
		}
		var openMs int64
		if err := json.Unmarshal(row[0], &openMs); err != nil {
			return nil, fmt.Errorf("binance %s: decode open time: %w", pair, err)
		}

		p := quote.PricePoint{
			Day: time.UnixMilli(openMs).UTC().Format("2006-01-02"),
		}
		for i, dst := range []*float64{&p.Open, &p.High, &p.Low, &p.Close, &p.Volume} {
			v, err := klineFloat(row[i+1])
			if err != nil {
				return nil, fmt.Errorf("binance %s: decode kline field %d: %w", pair, i+1, err)
			}
			*dst = v
		}
		points = append(points, p)
	}
	return points, nil
}

// klineFloat parses a kline numeric field, which Binance quotes as a string.
func klineFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}
