package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/malwarescan/oracle/internal/ratelimit"
)

const errCodeRateLimited = "rate_limited"

// retryAfterSeconds is advisory: the limiter refills on a fixed window
// rather than tracking per-key time-to-next-token, so callers get a
// round number to back off by instead of a precise deadline.
const retryAfterSeconds = "60"

// RateLimitMiddleware gates requests through an internal/ratelimit.Limiter
// keyed by client IP, returning 429 with Retry-After once a caller's
// bucket is exhausted. Intended for the job-submission endpoints
// (invoke, run.ndjson) where an unbounded caller could flood the worker
// pool; read-only publisher endpoints are left ungated.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !limiter.Allow(key) {
				w.Header().Set("Retry-After", retryAfterSeconds)
				writeError(w, http.StatusTooManyRequests, errCodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers X-Forwarded-For's first hop (set by a trusted reverse
// proxy in front of the API) and falls back to the socket's remote
// address otherwise.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return fwd[:i]
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
