package middleware

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
)

// ResponseCachePrefix prefixes every cached response key
const ResponseCachePrefix = services.ResponseCachePrefix

// CacheConfig holds cache configuration for specific routes
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// CacheMiddleware provides HTTP response caching for read-mostly routes
type CacheMiddleware struct {
	cache        providers.CacheProvider
	routeConfigs map[string]CacheConfig
}

// NewCacheMiddleware creates a new cache middleware. ttlSeconds applies to the
// clinic configuration routes; the defaults route is cached ten times longer.
func NewCacheMiddleware(cache providers.CacheProvider, ttlSeconds int) *CacheMiddleware {
	if ttlSeconds <= 0 {
		ttlSeconds = 60
	}
	return &CacheMiddleware{
		cache: cache,
		routeConfigs: map[string]CacheConfig{
			"/api/staging/defaults": {TTLSeconds: ttlSeconds * 10, Enabled: true},
			"/api/clinics/":         {TTLSeconds: ttlSeconds, Enabled: true}, // prefix match
		},
	}
}

// CacheMiddlewareWithConfig creates a cache middleware with custom config
func CacheMiddlewareWithConfig(cache providers.CacheProvider, configs map[string]CacheConfig) func(http.Handler) http.Handler {
	m := &CacheMiddleware{
		cache:        cache,
		routeConfigs: configs,
	}
	return m.Middleware
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		config := m.getRouteConfig(r.URL.Path)
		if !config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method != http.MethodGet {
			m.serveWrite(w, r, next)
			return
		}

		cacheKey := CacheKey(r)
		logger := log.With().Str("key", cacheKey).Logger()

		if cached, err := m.cache.Get(r.Context(), cacheKey); err == nil {
			logger.Debug().Msg("Response cache hit")
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}

		logger.Debug().Msg("Response cache miss")
		w.Header().Set("X-Cache", "MISS")

		recorder := &responseRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
			body:           &bytes.Buffer{},
		}
		next.ServeHTTP(recorder, r)

		// Only cache successful responses
		if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
			if err := m.cache.Set(r.Context(), cacheKey, recorder.body.Bytes(), config.TTLSeconds); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache response")
			}
		}
	})
}

// serveWrite passes a mutating request through and drops the cached responses
// of its path once it succeeds
func (m *CacheMiddleware) serveWrite(w http.ResponseWriter, r *http.Request, next http.Handler) {
	recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
	next.ServeHTTP(recorder, r)

	if recorder.statusCode >= http.StatusOK && recorder.statusCode < http.StatusMultipleChoices {
		if err := m.InvalidateCache(r.Context(), ResponseCachePrefix+r.URL.Path+"*"); err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("Failed to invalidate cached responses")
		}
	}
}

// getRouteConfig gets the cache configuration for a route
func (m *CacheMiddleware) getRouteConfig(path string) CacheConfig {
	if config, exists := m.routeConfigs[path]; exists {
		return config
	}

	// Prefix match for dynamic routes (e.g., /api/clinics/{id}/staging-config)
	for pattern, config := range m.routeConfigs {
		if strings.HasSuffix(pattern, "/") && strings.HasPrefix(path, pattern) {
			return config
		}
	}

	return CacheConfig{Enabled: false}
}

// CacheKey returns the response cache key of a request. Keys keep the path
// readable so that a clinic's entries can be dropped by pattern.
func CacheKey(r *http.Request) string {
	key := ResponseCachePrefix + r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.Query().Encode()
	}
	return key
}

// InvalidateCache drops cached responses matching a glob pattern
func (m *CacheMiddleware) InvalidateCache(ctx context.Context, pattern string) error {
	if m.cache == nil {
		return nil
	}
	return m.cache.DeletePattern(ctx, pattern)
}

// responseRecorder captures the response for caching
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
	written    bool
}

// WriteHeader captures the status code
func (r *responseRecorder) WriteHeader(statusCode int) {
	if !r.written {
		r.statusCode = statusCode
		r.ResponseWriter.WriteHeader(statusCode)
		r.written = true
	}
}

// Write captures the response body and writes to the client
func (r *responseRecorder) Write(data []byte) (int, error) {
	if !r.written {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(data)
	return r.ResponseWriter.Write(data)
}

// statusRecorder captures only the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
