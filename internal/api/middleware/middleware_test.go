package middleware_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalplan/internal/api/middleware"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
)

// memoryCache supports prefix patterns ending in '*'
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return nil, providers.ErrCacheMiss
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

func (c *memoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := middleware.RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}))

	t.Run("generates an ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("keeps a well-formed incoming ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.RequestIDHeader, "req-123")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("replaces a malformed incoming ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(middleware.RequestIDHeader, "bad id\nwith newline")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.NotEqual(t, "bad id\nwith newline", seen)
		assert.NotEmpty(t, seen)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	previous, level := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = previous
		zerolog.SetGlobalLevel(level)
	}()

	var buf bytes.Buffer
	observability.InitLoggerWithWriter("dentalplan-test", "test", &buf)

	handler := middleware.RequestIDMiddleware(middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"missing"}`))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/staging-config", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-log")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "HTTP request", entry["message"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/api/clinics/clinic-1/staging-config", entry["path"])
	assert.Equal(t, float64(404), entry["status"])
	assert.Equal(t, "req-log", entry["request_id"])
	assert.Equal(t, "dentalplan-test", entry["service"])
}

func TestCORSMiddleware(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		handler := middleware.CORSMiddleware(nil)(okHandler(`{}`))
		req := httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil)
		req.Header.Set("Origin", "https://any.example")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("explicit origins", func(t *testing.T) {
		handler := middleware.CORSMiddleware([]string{"https://clinic.example"})(okHandler(`{}`))

		allowed := httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil)
		allowed.Header.Set("Origin", "https://clinic.example")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, allowed)
		assert.Equal(t, "https://clinic.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", w.Header().Get("Vary"))

		denied := httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil)
		denied.Header.Set("Origin", "https://evil.example")
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, denied)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		handler := middleware.CORSMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/treatment-plans/stage", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
	})
}

func TestRateLimiter(t *testing.T) {
	newRequest := func(method, path, ip string) *http.Request {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = ip + ":5555"
		return req
	}

	t.Run("staging requests cost more tokens", func(t *testing.T) {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RatePerSecond: 0.001, Capacity: 5, StageCost: 2})
		handler := limiter.Middleware(okHandler(`{}`))

		codes := make([]int, 0, 3)
		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, newRequest(http.MethodPost, "/api/treatment-plans/stage", "10.0.0.1"))
			codes = append(codes, w.Code)
		}

		assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

		// one token is left for a cheap request
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequest(http.MethodGet, "/api/staging/defaults", "10.0.0.1"))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("clients are limited independently", func(t *testing.T) {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RatePerSecond: 0.001, Capacity: 1, StageCost: 1})
		handler := limiter.Middleware(okHandler(`{}`))

		for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, newRequest(http.MethodGet, "/api/staging/defaults", ip))
			assert.Equal(t, http.StatusOK, w.Code, ip)
		}

		forwarded := newRequest(http.MethodGet, "/api/staging/defaults", "192.168.1.1")
		forwarded.Header.Set("X-Forwarded-For", "10.0.0.1, 172.16.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, forwarded)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.NotEmpty(t, w.Header().Get("Retry-After"))
		assert.Equal(t, 2, limiter.ClientCount())
	})

	t.Run("health checks are free", func(t *testing.T) {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RatePerSecond: 0.001, Capacity: 1, StageCost: 1})
		handler := limiter.Middleware(okHandler(`OK`))

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, newRequest(http.MethodGet, "/health", "10.0.0.9"))
			assert.Equal(t, http.StatusOK, w.Code)
		}
		assert.Zero(t, limiter.ClientCount())
	})

	t.Run("cleanup drops idle clients", func(t *testing.T) {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RatePerSecond: 1000, Capacity: 1, StageCost: 1})
		handler := limiter.Middleware(okHandler(`{}`))
		handler.ServeHTTP(httptest.NewRecorder(), newRequest(http.MethodGet, "/api/staging/defaults", "10.0.0.3"))

		require.Eventually(t, func() bool { return limiter.Cleanup() == 1 }, time.Second, 5*time.Millisecond)
		assert.Zero(t, limiter.ClientCount())
	})
}

func TestCacheMiddleware(t *testing.T) {
	t.Run("serves repeated reads from the cache", func(t *testing.T) {
		cache := newMemoryCache()
		calls := 0
		handler := middleware.NewCacheMiddleware(cache, 60).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`{"clinic_id":"clinic-1"}`))
		}))

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/staging-config", nil))
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/staging-config", nil))

		assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
		assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, 1, calls)

		ok, _ := cache.Exists(context.Background(), "http:cache:/api/clinics/clinic-1/staging-config")
		assert.True(t, ok)
	})

	t.Run("does not cache errors or uncached routes", func(t *testing.T) {
		cache := newMemoryCache()
		m := middleware.NewCacheMiddleware(cache, 60)
		failing := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"down"}`))
		}))

		failing.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/staging-config", nil))
		m.Middleware(okHandler(`{}`)).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Empty(t, cache.data)
	})

	t.Run("successful writes drop cached responses of the path", func(t *testing.T) {
		cache := newMemoryCache()
		ctx := context.Background()
		require.NoError(t, cache.Set(ctx, "http:cache:/api/clinics/clinic-1/staging-config", []byte(`{}`), 60))
		require.NoError(t, cache.Set(ctx, "http:cache:/api/clinics/clinic-2/staging-config", []byte(`{}`), 60))

		handler := middleware.NewCacheMiddleware(cache, 60).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/api/clinics/clinic-1/staging-config", nil))

		ok, _ := cache.Exists(ctx, "http:cache:/api/clinics/clinic-1/staging-config")
		assert.False(t, ok)
		ok, _ = cache.Exists(ctx, "http:cache:/api/clinics/clinic-2/staging-config")
		assert.True(t, ok)
	})

	t.Run("passes through without a cache", func(t *testing.T) {
		handler := middleware.NewCacheMiddleware(nil, 60).Middleware(okHandler(`{}`))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Cache"))
	})
}

func TestCacheKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/staging/defaults?b=2&a=1", nil)
	assert.Equal(t, "http:cache:/api/staging/defaults?a=1&b=2", middleware.CacheKey(req))
}

func TestResponseOptimization(t *testing.T) {
	body := `{"visit_time_budget_minutes":90}`

	t.Run("answers 304 for a matching ETag", func(t *testing.T) {
		handler := middleware.ResponseOptimization(okHandler(body))

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil))
		etag := first.Header().Get("ETag")
		require.NotEmpty(t, etag)
		assert.Equal(t, body, first.Body.String())
		assert.Contains(t, first.Header().Get("Cache-Control"), "max-age=600")

		req := httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil)
		req.Header.Set("If-None-Match", etag)
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, req)

		assert.Equal(t, http.StatusNotModified, second.Code)
		assert.Empty(t, second.Body.String())
	})

	t.Run("compresses when accepted", func(t *testing.T) {
		handler := middleware.ResponseOptimization(okHandler(body))
		req := httptest.NewRequest(http.MethodGet, "/api/staging/defaults", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		reader, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		decoded, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, body, string(decoded))
	})

	t.Run("leaves event streams alone", func(t *testing.T) {
		handler := middleware.ResponseOptimization(okHandler("event: connected\n\n"))
		req := httptest.NewRequest(http.MethodGet, "/api/stream/clinics/clinic-1/plans", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Empty(t, w.Header().Get("ETag"))
		assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	})

	t.Run("never caches staging responses", func(t *testing.T) {
		handler := middleware.ResponseOptimization(okHandler(`{}`))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/treatment-plans/stage", nil))

		assert.Equal(t, "private, no-cache, must-revalidate", w.Header().Get("Cache-Control"))
		assert.Empty(t, w.Header().Get("ETag"))
	})
}

func TestObservabilityMiddleware_PreservesFlusher(t *testing.T) {
	var flushable bool
	handler := middleware.ObservabilityMiddleware(nil)(middleware.LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flushable = w.(http.Flusher)
	})))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream/clinics/clinic-1/plans", nil))

	assert.True(t, flushable)
	assert.Equal(t, http.StatusOK, w.Code)
}
