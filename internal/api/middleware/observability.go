package middleware

import (
	"net/http"
	"time"

	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ObservabilityMiddleware adds OpenTelemetry tracing and metrics to HTTP requests
func ObservabilityMiddleware(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Use route pattern instead of raw path to avoid high cardinality
			route := r.Pattern
			if route == "" {
				route = routeLabel(r.URL.Path)
			}

			ctx, span := observability.StartSpan(r.Context(), r.Method+" "+route)
			defer span.End()

			observability.SetSpanAttributes(span,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.user_agent", r.UserAgent()),
			)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rw, r.WithContext(ctx))

			duration := time.Since(start)
			observability.RecordRequestMetric(ctx, metrics, r.Method, route, rw.statusCode, duration)
			observability.SetSpanAttributes(span, attribute.Int("http.status_code", rw.statusCode))
		})
	}
}

// routeLabel collapses clinic IDs so that metrics keep a bounded label set
// when the mux pattern is not yet known
func routeLabel(path string) string {
	switch {
	case matchClinicPath(path, "/api/clinics/", "/staging-config"):
		return "/api/clinics/{id}/staging-config"
	case matchClinicPath(path, "/api/stream/clinics/", "/plans"):
		return "/api/stream/clinics/{id}/plans"
	}
	return path
}

func matchClinicPath(path, prefix, suffix string) bool {
	if len(path) <= len(prefix)+len(suffix) {
		return false
	}
	return path[:len(prefix)] == prefix && path[len(path)-len(suffix):] == suffix
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
