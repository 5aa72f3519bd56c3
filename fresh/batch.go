package fresh

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/adeilh/go-taaza/quote"
)

// Request is one item of a batch lookup.
type Request struct {
	Asset  quote.AssetType
	Symbol string
	Fetch  FetchFunc
}

// Key identifies the request in an EnsureBatch result map. Identical logical
// requests share one key.
func (r Request) Key() string {
	return quote.PriceKey(r.Asset, r.Symbol, "")
}

// Result captures one request's outcome. Exactly one of Outcome/Err is
// meaningful: Err == nil means Outcome holds the point.
type Result struct {
	Outcome Outcome
	Err     error
}

// EnsureBatch fans the requests out to EnsureData with at most limit
// simultaneous in-flight calls (limit <= 0 applies the configured default).
// The cap is backpressure for the external sources on multi-symbol screens.
//
// The returned map is total over the input: every request has an entry,
// success or failure; one symbol's failure never cancels its siblings. The
// whole batch is bounded by BatchTimeout, so a wedged source surfaces as
// timeout errors on the unresolved entries instead of hanging the batch.
func (s *Service) EnsureBatch(ctx context.Context, reqs []Request, limit int) map[string]Result {
	if limit <= 0 {
		limit = s.opts.BatchLimit
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.BatchTimeout)
	defer cancel()

	results := make([]Result, len(reqs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				// The batch deadline passed while this request waited
				// for a slot.
				results[i] = Result{Err: fmt.Errorf("batch %s: %w", req.Key(), err)}
				return nil
			}
			out, err := s.EnsureData(ctx, req.Asset, req.Symbol, req.Fetch, false)
			results[i] = Result{Outcome: out, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]Result, len(reqs))
	for i, req := range reqs {
		out[req.Key()] = results[i]
	}
	return out
}
