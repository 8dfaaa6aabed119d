// Package ratelimit throttles callers per client address with token buckets.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/pendergraft/explorer-cache/internal/middleware/realip"
)

const (
	defaultIdle       = 10 * time.Minute
	defaultMaxClients = 100_000
)

// Config holds the rate limiting settings.
type Config struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	// CleanupMinutes is how long an idle client's bucket is remembered.
	CleanupMinutes int
	// MaxClients bounds the number of tracked buckets; 0 uses a default.
	MaxClients int
}

// Limiter hands out one token bucket per client address. Buckets that go
// unused for the idle period expire from the table.
type Limiter struct {
	mu      sync.Mutex
	buckets *expirable.LRU[string, *rate.Limiter]
	limit   rate.Limit
	burst   int
}

// New creates a Limiter from cfg.
func New(cfg Config) *Limiter {
	idle := time.Duration(cfg.CleanupMinutes) * time.Minute
	if idle <= 0 {
		idle = defaultIdle
	}
	size := cfg.MaxClients
	if size <= 0 {
		size = defaultMaxClients
	}
	return &Limiter{
		buckets: expirable.NewLRU[string, *rate.Limiter](size, nil, idle),
		limit:   rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   cfg.BurstSize,
	}
}

// Allow reports whether the client may make another request now.
func (l *Limiter) Allow(client string) bool {
	l.mu.Lock()
	bucket, ok := l.buckets.Get(client)
	if !ok {
		bucket = rate.NewLimiter(l.limit, l.burst)
	}
	// re-adding refreshes the idle deadline
	l.buckets.Add(client, bucket)
	l.mu.Unlock()

	return bucket.Allow()
}

// Tracked returns the number of clients currently holding a bucket.
func (l *Limiter) Tracked() int {
	return l.buckets.Len()
}

var exempt = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Handler rejects requests over the client's budget with 429.
func (l *Limiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if exempt[r.URL.Path] || l.Allow(realip.ClientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "RATE_LIMIT_EXCEEDED",
				"message": "Too many requests. Please try again later.",
			},
		})
	})
}

// Middleware returns a pass-through when rate limiting is disabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return New(cfg).Handler
}
