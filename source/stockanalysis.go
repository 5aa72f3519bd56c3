// Package source implements the upstream fetchers the freshness engine
// drives: stockanalysis.com for PSX equities, Binance for crypto pairs and
// Investing.com for index data. Each client returns plain daily bars; the
// caller owns classification of failures and merging into storage.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/adeilh/go-taaza/quote"
)

const stockAnalysisBaseURL = "https://stockanalysis.com"

var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/138.0.0.0 Safari/537.36",
	"Accept": "*/*",
}

// StockAnalysis fetches PSX daily history from stockanalysis.com.
type StockAnalysis struct {
	rc *resty.Client
}

func NewStockAnalysis(opts ...Option) *StockAnalysis {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New()
	rc.SetBaseURL(cfg.BaseURL)
	if cfg.BaseURL == "" {
		rc.SetBaseURL(stockAnalysisBaseURL)
	}
	rc.SetTimeout(cfg.Timeout)
	rc.SetHeaders(browserHeaders)
	rc.SetHeader("Referer", "https://stockanalysis.com/")

	return &StockAnalysis{rc: rc}
}

type saRow struct {
	Date      string  `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	AdjClose  float64 `json:"a"`
	Volume    float64 `json:"v"`
	ChangePct float64 `json:"ch"`
}

type saEnvelope struct {
	Status string  `json:"status"`
	Data   []saRow `json:"data"`
}

// History fetches the full daily series for a PSX ticker, oldest first.
// The endpoint has no range parameters; callers filter what they need.
func (s *StockAnalysis) History(ctx context.Context, symbol string) ([]quote.PricePoint, error) {
	symbol = quote.NormalizeSymbol(symbol)
	path := fmt.Sprintf("/api/symbol/a/PSX-%s/history", symbol)

	resp, err := s.rc.R().SetContext(ctx).Get(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("stockanalysis %s: http %d", symbol, resp.StatusCode())
	}

	rows, err := decodeStockAnalysis(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("stockanalysis %s: %w", symbol, err)
	}

	points := make([]quote.PricePoint, 0, len(rows))
	for _, r := range rows {
		day := r.Date
		if len(day) > 10 {
			day = day[:10]
		}
		if day == "" {
			continue
		}
		points = append(points, quote.PricePoint{
			Day:       day,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			ChangePct: r.ChangePct,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Day < points[j].Day })
	return points, nil
}

// decodeStockAnalysis accepts both response shapes the API is known to
// produce: a bare array of rows, or {"status": "success", "data": [...]}.
func decodeStockAnalysis(body []byte) ([]saRow, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var rows []saRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return rows, nil
	}

	var env saEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Status != "" && env.Status != "success" && env.Data == nil {
		return nil, fmt.Errorf("upstream status %q", env.Status)
	}
	return env.Data, nil
}
