package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a fixed-window counter keyed by client IP and path. State
// lives in process memory; a restart resets all windows, which is acceptable
// for abuse throttling on bookings, messages and OTP requests.
type RateLimiter struct {
	limit   int
	window  time.Duration
	mu      sync.Mutex
	buckets map[string]*bucket
	sweepAt time.Time
}

type bucket struct {
	count int
	reset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
		sweepAt: time.Now().Add(window),
	}
}

// Allow reports whether the key may proceed and, when it may not, how long
// until its window resets.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	b, ok := rl.buckets[key]
	if !ok || now.After(b.reset) {
		rl.buckets[key] = &bucket{count: 1, reset: now.Add(rl.window)}
		return true, 0
	}

	if b.count >= rl.limit {
		return false, time.Until(b.reset)
	}

	b.count++
	return true, 0
}

// sweep drops expired buckets so one-off clients do not accumulate forever.
// Caller holds the lock.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Before(rl.sweepAt) {
		return
	}
	for key, b := range rl.buckets {
		if now.After(b.reset) {
			delete(rl.buckets, key)
		}
	}
	rl.sweepAt = now.Add(rl.window)
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r) + ":" + r.URL.Path
		allowed, retryIn := rl.Allow(key)
		if !allowed {
			seconds := int(retryIn.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
