package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ulule/limiter/v3"
	memstore "github.com/ulule/limiter/v3/drivers/store/memory"
)

// newLimiter builds an in-process limiter from a formatted rate such as "100-M".
func newLimiter(rate string) (*limiter.Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	return limiter.New(memstore.NewStore(), r), nil
}

// rateLimit throttles callers per client IP and reports the window in X-RateLimit-* headers.
func rateLimit(lim *limiter.Limiter, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			ip := lim.GetIPKey(r)
			lc, err := lim.Get(r.Context(), ip)
			if err != nil {
				l.Error("rate limit lookup failed", "req_id", reqID(r), "ip", ip, "err", err)
				writeErr(w, http.StatusInternalServerError, "internal_error", "internal_error")
				return
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))
			if lc.Reached {
				rateLimitedTotal.Inc()
				l.Warn("rate limit exceeded", "req_id", reqID(r), "ip", ip, "limit", lc.Limit)
				writeErr(w, http.StatusTooManyRequests, "too many requests", "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
