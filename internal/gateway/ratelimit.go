package gateway

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is a per-client-IP token bucket family, matching spec.md §4.8's
// "an I/O-bound normal limiter, a stricter limiter for scan-initiation
// endpoints, and a bulk-import limiter". Each named limiter owns its own set
// of per-IP buckets so a burst against one endpoint class never starves
// another.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	burst    int
}

func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	lim, ok := rl.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rl.r, rl.burst)
		rl.limiters[key] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// isDashboardReadPath exempts GET dashboard-read-path requests from the
// normal limiter, per spec.md §4.8.
func isDashboardReadPath(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	switch {
	case hasPrefix(r.URL.Path, "/api/status"),
		hasPrefix(r.URL.Path, "/api/jobs"),
		hasPrefix(r.URL.Path, "/api/activity"),
		hasPrefix(r.URL.Path, "/api/schedules"):
		return true
	default:
		return false
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// rateLimitMiddleware applies limiter against the requesting client's IP and
// returns 429 with the structured body spec.md §4.8 requires when exhausted.
func rateLimitMiddleware(limiter *rateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isDashboardReadPath(r) {
			next(w, r)
			return
		}
		if !limiter.allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{
				Error:      "Too Many Requests",
				Message:    "rate limit exceeded, slow down",
				Status:     http.StatusTooManyRequests,
				RetryAfter: 1,
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			})
			return
		}
		next(w, r)
	}
}
