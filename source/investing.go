package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/adeilh/go-taaza/quote"
)

const (
	investingBaseURL = "https://api.investing.com"

	// spx500Instrument is Investing.com's instrument ID for the S&P 500
	// index.
	spx500Instrument = "166"

	// investingEpoch is the earliest start date the historical endpoint
	// serves reliably.
	investingEpoch = "1996-01-01"
)

// Investing fetches index history from the Investing.com historical endpoint.
// The endpoint sits behind browser fingerprinting, hence the header set.
type Investing struct {
	rc         *resty.Client
	instrument string
}

func NewInvesting(opts ...Option) *Investing {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New()
	rc.SetBaseURL(cfg.BaseURL)
	if cfg.BaseURL == "" {
		rc.SetBaseURL(investingBaseURL)
	}
	rc.SetTimeout(cfg.Timeout)
	rc.SetHeaders(browserHeaders)
	rc.SetHeaders(map[string]string{
		"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8",
		"Origin":          "https://www.investing.com",
		"Referer":         "https://www.investing.com/",
		"domain-id":       "www",
	})

	return &Investing{rc: rc, instrument: cfg.Instrument}
}

type investingRow struct {
	RowDate          string          `json:"rowDate"`
	RowDateTimestamp string          `json:"rowDateTimestamp"`
	LastClose        string          `json:"last_close"`
	LastOpen         string          `json:"last_open"`
	LastMax          string          `json:"last_max"`
	LastMin          string          `json:"last_min"`
	Volume           string          `json:"volume"`
	LastCloseRaw     json.RawMessage `json:"last_closeRaw"`
	LastOpenRaw      json.RawMessage `json:"last_openRaw"`
	LastMaxRaw       json.RawMessage `json:"last_maxRaw"`
	LastMinRaw       json.RawMessage `json:"last_minRaw"`
}

type investingEnvelope struct {
	Data []investingRow `json:"data"`
}

// History fetches daily bars between startDay and endDay inclusive, oldest
// first. Empty bounds default to the endpoint's epoch and today.
func (i *Investing) History(ctx context.Context, startDay, endDay string) ([]quote.PricePoint, error) {
	if startDay == "" {
		startDay = investingEpoch
	}
	if endDay == "" {
		endDay = time.Now().UTC().Format("2006-01-02")
	}

	resp, err := i.rc.R().SetContext(ctx).
		SetQueryParams(map[string]string{
			"start-date":       startDay,
			"end-date":         endDay,
			"time-frame":       "Daily",
			"add-missing-rows": "false",
		}).
		Get("/api/financialdata/historical/" + i.instrument)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("investing %s: http %d", i.instrument, resp.StatusCode())
	}
	if ct := resp.Header().Get("Content-Type"); strings.Contains(ct, "text/html") {
		// Cloudflare interstitial instead of JSON.
		return nil, fmt.Errorf("investing %s: blocked upstream (html response)", i.instrument)
	}

	var env investingEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("investing %s: decode response: %w", i.instrument, err)
	}

	points := make([]quote.PricePoint, 0, len(env.Data))
	for _, row := range env.Data {
		day, err := parseInvestingDate(row.RowDateTimestamp, row.RowDate)
		if err != nil {
			return nil, fmt.Errorf("investing %s: %w", i.instrument, err)
		}
		points = append(points, quote.PricePoint{
			Day:    day,
			Open:   investingNumber(row.LastOpen, row.LastOpenRaw),
			High:   investingNumber(row.LastMax, row.LastMaxRaw),
			Low:    investingNumber(row.LastMin, row.LastMinRaw),
			Close:  investingNumber(row.LastClose, row.LastCloseRaw),
			Volume: investingVolume(row.Volume),
		})
	}
	sort.Slice(points, func(a, b int) bool { return points[a].Day < points[b].Day })
	return points, nil
}

func parseInvestingDate(timestamp, rowDate string) (string, error) {
	if timestamp != "" {
		t, err := time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return "", fmt.Errorf("parse date %q: %w", timestamp, err)
		}
		return t.UTC().Format("2006-01-02"), nil
	}
	t, err := time.Parse("Jan 2, 2006", rowDate)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", rowDate, err)
	}
	return t.Format("2006-01-02"), nil
}

// investingNumber prefers the machine-readable Raw field when present; the
// formatted field carries thousands separators ("2,067.56"). The Raw field
// has been observed both as a JSON number and as a quoted string.
func investingNumber(formatted string, raw json.RawMessage) float64 {
	if len(raw) > 0 {
		s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(formatted, ",", ""))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// investingVolume parses the abbreviated volume column ("2.5B", "431.1M").
func investingVolume(vol string) float64 {
	cleaned := strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(vol, ",", "")))
	if cleaned == "" {
		return 0
	}

	mult := 1.0
	switch {
	case strings.HasSuffix(cleaned, "B"):
		mult = 1e9
		cleaned = strings.TrimSuffix(cleaned, "B")
	case strings.HasSuffix(cleaned, "M"):
		mult = 1e6
		cleaned = strings.TrimSuffix(cleaned, "M")
	case strings.HasSuffix(cleaned, "K"):
		mult = 1e3
		cleaned = strings.TrimSuffix(cleaned, "K")
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v * mult
}
