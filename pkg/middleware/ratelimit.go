package middleware

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/pkg/ratelimit"
)

// ClientIP keys requests by the host part of RemoteAddr. Put chi's RealIP
// middleware in front when running behind a proxy.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit refuses requests with 429 once the key returned by keyFn has
// used up its tokens.
func RateLimit(limiter *ratelimit.Limiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if !limiter.Allow(key) {
				slog.Warn("rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
