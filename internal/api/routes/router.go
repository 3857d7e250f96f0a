package routes

import (
	"net/http"

	"github.com/zatekoja/dentalplan/internal/api/handlers"
	"github.com/zatekoja/dentalplan/internal/api/middleware"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	treatmentPlanHandler       *handlers.TreatmentPlanHandler
	clinicConfigurationHandler *handlers.ClinicConfigurationHandler
	sseHandler                 *handlers.SSEHandler
	healthHandler              *handlers.HealthHandler

	cacheMiddleware *middleware.CacheMiddleware
	rateLimiter     *middleware.RateLimiter
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// Options carries the optional parts of the middleware chain
type Options struct {
	CacheMiddleware *middleware.CacheMiddleware
	RateLimiter     *middleware.RateLimiter
	AllowedOrigins  []string
	Metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	treatmentPlanHandler *handlers.TreatmentPlanHandler,
	clinicConfigurationHandler *handlers.ClinicConfigurationHandler,
	sseHandler *handlers.SSEHandler,
	healthHandler *handlers.HealthHandler,
	opts Options,
) *Router {
	if healthHandler == nil {
		healthHandler = handlers.NewHealthHandler(nil)
	}
	return &Router{
		mux:                        http.NewServeMux(),
		treatmentPlanHandler:       treatmentPlanHandler,
		clinicConfigurationHandler: clinicConfigurationHandler,
		sseHandler:                 sseHandler,
		healthHandler:              healthHandler,
		cacheMiddleware:            opts.CacheMiddleware,
		rateLimiter:                opts.RateLimiter,
		allowedOrigins:             opts.AllowedOrigins,
		metrics:                    opts.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoints
	r.mux.HandleFunc("GET /health", r.healthHandler.Live)
	r.mux.HandleFunc("GET /health/ready", r.healthHandler.Ready)

	// Staging endpoints
	r.mux.HandleFunc("POST /api/treatment-plans/stage", r.treatmentPlanHandler.StagePlan)
	r.mux.HandleFunc("GET /api/staging/defaults", r.treatmentPlanHandler.GetDefaults)

	// Clinic configuration endpoints
	if r.clinicConfigurationHandler != nil {
		r.mux.HandleFunc("GET /api/clinics/{id}/staging-config", r.clinicConfigurationHandler.GetConfiguration)
		r.mux.HandleFunc("PUT /api/clinics/{id}/staging-config", r.clinicConfigurationHandler.PutConfiguration)
		r.mux.HandleFunc("DELETE /api/clinics/{id}/staging-config", r.clinicConfigurationHandler.DeleteConfiguration)
	}

	// Plan event streams
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/plans", r.sseHandler.StreamAllPlans)
		r.mux.HandleFunc("GET /api/stream/clinics/{id}/plans", r.sseHandler.StreamClinicPlans)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	if r.rateLimiter != nil {
		handler = r.rateLimiter.Middleware(handler)
	}

	// CORS wraps everything so headers are set even on cache hits and 429s
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
