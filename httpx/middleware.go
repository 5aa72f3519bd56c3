package httpx

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/adeilh/go-taaza/ratelimit"
)

// RateLimitMiddleware guards fetch-triggering endpoints with a fixed-window
// limiter keyed by client IP. Denials become 429 responses carrying a
// Retry-After header derived from the window's reset time.
func RateLimitMiddleware(l *ratelimit.Limiter, limit int, window time.Duration) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			d := l.Check(c.RealIP(), limit, window)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

			if !d.Allowed {
				retryAfter := int(time.Until(d.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				return HTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// RequestLoggerMiddleware logs one structured line per request.
func RequestLoggerMiddleware(log *zap.Logger) MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			start := time.Now()
			err := next(c)

			req := c.Request()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("remote", c.RealIP()),
				zap.Int("status", c.Response().Status),
				zap.Duration("took", time.Since(start)),
			}
			if err != nil {
				log.Warn("request failed", append(fields, zap.Error(err))...)
				return err
			}
			log.Info("request", fields...)
			return nil
		}
	}
}
