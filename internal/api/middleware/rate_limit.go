package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog/log"
)

// RateLimitConfig configures the per-client token buckets
type RateLimitConfig struct {
	RatePerSecond float64
	Capacity      int64
	// StageCost is taken by every staging request; other requests cost one token
	StageCost int64
}

// RateLimiter manages per-client rate limiting
type RateLimiter struct {
	cfg     RateLimitConfig
	clients map[string]*ratelimit.Bucket
	mu      sync.RWMutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 5
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 20
	}
	if cfg.StageCost <= 0 {
		cfg.StageCost = 1
	}
	return &RateLimiter{
		cfg:     cfg,
		clients: make(map[string]*ratelimit.Bucket),
	}
}

func (rl *RateLimiter) getBucket(clientIP string) *ratelimit.Bucket {
	rl.mu.RLock()
	bucket, exists := rl.clients[clientIP]
	rl.mu.RUnlock()

	if !exists {
		rl.mu.Lock()
		if bucket, exists = rl.clients[clientIP]; !exists {
			bucket = ratelimit.NewBucketWithRate(rl.cfg.RatePerSecond, rl.cfg.Capacity)
			rl.clients[clientIP] = bucket
		}
		rl.mu.Unlock()
	}

	return bucket
}

// Cleanup removes clients whose buckets have refilled completely
func (rl *RateLimiter) Cleanup() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, bucket := range rl.clients {
		if bucket.Available() == bucket.Capacity() {
			delete(rl.clients, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup runs Cleanup every interval until ctx is cancelled
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := rl.Cleanup(); removed > 0 {
					log.Debug().Int("removed", removed).Msg("Rate limiter buckets cleaned up")
				}
			}
		}
	}()
}

// ClientCount returns the number of tracked clients
func (rl *RateLimiter) ClientCount() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.clients)
}

func (rl *RateLimiter) tokenCost(r *http.Request) int64 {
	switch {
	case r.Method == http.MethodOptions:
		return 0
	case r.URL.Path == "/health" || r.URL.Path == "/health/ready":
		return 0
	case r.Method == http.MethodPost && r.URL.Path == "/api/treatment-plans/stage":
		return rl.cfg.StageCost
	}
	return 1
}

// Middleware rejects requests with 429 once a client's bucket is empty
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := rl.tokenCost(r)
		if cost == 0 {
			next.ServeHTTP(w, r)
			return
		}

		bucket := rl.getBucket(clientIP(r))

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.cfg.Capacity, 10))
		w.Header().Set("X-RateLimit-Rate", strconv.FormatFloat(rl.cfg.RatePerSecond, 'f', -1, 64))

		if _, ok := bucket.TakeMaxDuration(cost, 0); !ok {
			retryAfter := int(math.Ceil(float64(cost) / rl.cfg.RatePerSecond))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(bucket.Available(), 10))
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the first X-Forwarded-For address, or the connection's host
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			xff = xff[:idx]
		}
		if ip := strings.TrimSpace(xff); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
