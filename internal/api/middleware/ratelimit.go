package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"hashscope/internal/api/response"
	"hashscope/internal/queue"
)

const defaultRequestsPerMinute = 60

// Counters is the slice of the queue the rate limiter needs.
type Counters interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RateLimit applies per-user rate limiting backed by the queue's Redis
// connection.
type RateLimit struct {
	counters       Counters
	requestsPerMin int
}

func NewRateLimit(c Counters, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{counters: c, requestsPerMin: requestsPerMin}
}

// Limit counts requests per authenticated user in a one-minute window.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			// Auth middleware didn't run; nothing to key on.
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.counters.IncrWithExpiry(r.Context(), queue.RateLimitKey(userID.String()), 60*time.Second)
		if err != nil {
			// On Redis error, fail open.
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests, "Too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}
