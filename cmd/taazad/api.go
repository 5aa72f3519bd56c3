package main

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/adeilh/go-taaza/fresh"
	"github.com/adeilh/go-taaza/httpx"
	"github.com/adeilh/go-taaza/quote"
	"github.com/adeilh/go-taaza/source"
	"github.com/adeilh/go-taaza/store"
)

type api struct {
	svc *fresh.Service
	reg *source.Registry
	st  store.Store
	log *zap.Logger
}

type pricePayload struct {
	quote.PricePoint
	Stale bool `json:"stale,omitempty"`
}

func (a *api) routes(limit httpx.MiddlewareFunc) httpx.RouteRegistrar {
	return func(e *httpx.Echo) {
		e.GET("/healthz", func(c httpx.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
		})
		e.GET("/api/price/:asset/:symbol", a.getPrice, limit)
		e.POST("/api/prices", a.getPrices, limit)
		e.GET("/api/history/:asset/:symbol", a.getHistory)
		e.POST("/api/update/:asset/:symbol", a.updateHistory, limit)
	}
}

func (a *api) getPrice(c httpx.Context) error {
	asset := quote.AssetType(c.Param("asset"))
	symbol := c.Param("symbol")
	refresh := c.QueryParam("refresh") == "true"

	out, err := a.svc.EnsureData(c.Request().Context(), asset, symbol, a.reg.Current(asset, symbol), refresh)
	if err != nil {
		return quoteError(err)
	}
	return c.JSON(http.StatusOK, pricePayload{PricePoint: out.Point, Stale: out.Stale})
}

type batchRequest struct {
	Items []struct {
		Asset  quote.AssetType `json:"asset"`
		Symbol string          `json:"symbol"`
	} `json:"items"`
	Limit int `json:"limit"`
}

type batchEntry struct {
	Asset  quote.AssetType `json:"asset"`
	Symbol string          `json:"symbol"`
	Price  *pricePayload   `json:"price,omitempty"`
	Error  string          `json:"error,omitempty"`
}

func (a *api) getPrices(c httpx.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return httpx.HTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(req.Items) == 0 {
		return httpx.HTTPError(http.StatusBadRequest, "empty batch")
	}

	reqs := make([]fresh.Request, 0, len(req.Items))
	for _, item := range req.Items {
		reqs = append(reqs, fresh.Request{
			Asset:  item.Asset,
			Symbol: item.Symbol,
			Fetch:  a.reg.Current(item.Asset, item.Symbol),
		})
	}

	results := a.svc.EnsureBatch(c.Request().Context(), reqs, req.Limit)

	entries := make([]batchEntry, 0, len(req.Items))
	for _, r := range reqs {
		res := results[r.Key()]
		entry := batchEntry{Asset: r.Asset, Symbol: quote.NormalizeSymbol(r.Symbol)}
		if res.Err != nil {
			entry.Error = res.Err.Error()
		} else {
			entry.Price = &pricePayload{PricePoint: res.Outcome.Point, Stale: res.Outcome.Stale}
		}
		entries = append(entries, entry)
	}
	return c.JSON(http.StatusOK, map[string]any{"results": entries})
}

func (a *api) getHistory(c httpx.Context) error {
	asset := quote.AssetType(c.Param("asset"))
	symbol := c.Param("symbol")
	if !asset.Valid() {
		return httpx.HTTPError(http.StatusBadRequest, "unknown asset type")
	}
	if err := quote.ValidateSymbol(symbol); err != nil {
		return quoteError(err)
	}

	points, err := a.st.ReadRange(c.Request().Context(),
		asset, quote.NormalizeSymbol(symbol),
		c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return quoteError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"records_count": len(points),
		"data":          points,
	})
}

func (a *api) updateHistory(c httpx.Context) error {
	asset := quote.AssetType(c.Param("asset"))
	symbol := c.Param("symbol")
	force := c.QueryParam("force") == "true"

	stats, err := a.svc.EnsureHistory(c.Request().Context(), asset, symbol, a.reg.History(asset, symbol), force)
	if err != nil {
		return quoteError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// quoteError maps the engine's error taxonomy onto HTTP statuses.
func quoteError(err error) error {
	switch {
	case errors.Is(err, quote.ErrInvalidInput):
		return httpx.HTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, quote.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return httpx.HTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, quote.ErrSourceFailure):
		return httpx.HTTPError(http.StatusBadGateway, err.Error())
	default:
		return httpx.HTTPError(http.StatusInternalServerError, err.Error())
	}
}
