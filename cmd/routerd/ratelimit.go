package main

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/ferro-labs/policy-router/internal/logging"
	"github.com/ferro-labs/policy-router/internal/ratelimit"
)

// limiterIdleTTL is how long an unused per-IP bucket is kept.
const limiterIdleTTL = 10 * time.Minute

// rateLimitMiddleware rejects callers whose bucket is empty with 429 and a
// Retry-After header. A nil store disables limiting.
func rateLimitMiddleware(store *ratelimit.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			ok, wait := store.Allow(key)
			if !ok {
				secs := int(math.Ceil(wait.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				logging.FromContext(r.Context()).Warn("rate limited", "client", key)
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded", "rate_limit_error")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which RealIP has already
// rewritten from forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pruneLimiters drops idle buckets until ctx is done.
func pruneLimiters(ctx context.Context, store *ratelimit.Store) {
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Prune(limiterIdleTTL); n > 0 {
				logging.Logger.Debug("pruned rate limiters", "count", n)
			}
		}
	}
}
