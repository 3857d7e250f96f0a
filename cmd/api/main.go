package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/dentalplan/internal/adapters/cache"
	"github.com/zatekoja/dentalplan/internal/adapters/database"
	"github.com/zatekoja/dentalplan/internal/adapters/events"
	"github.com/zatekoja/dentalplan/internal/api/handlers"
	"github.com/zatekoja/dentalplan/internal/api/middleware"
	"github.com/zatekoja/dentalplan/internal/api/routes"
	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	"github.com/zatekoja/dentalplan/internal/domain/repositories"
	"github.com/zatekoja/dentalplan/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/dentalplan/internal/infrastructure/clients/redis"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
	"github.com/zatekoja/dentalplan/internal/staging"
	"github.com/zatekoja/dentalplan/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	dependencies := make(map[string]handlers.Pinger)

	// Initialize database client; staging works without it, clinic overrides do not
	var clinicRepo repositories.ClinicConfigurationRepository
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		if cfg.Database.Required {
			log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
		}
		log.Warn().Err(err).Msg("PostgreSQL unavailable; clinic overrides disabled")
	} else {
		defer pgClient.Close()
		clinicRepo = database.NewClinicConfigurationAdapter(pgClient)
		dependencies["postgres"] = pgClient
		log.Info().Msg("PostgreSQL client initialized")
	}

	// Initialize Redis client
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			// Continue without Redis - staging does not need caching or events
			log.Warn().Err(err).Msg("Failed to initialize Redis client")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
			dependencies["redis"] = redisClient
			log.Info().Msg("Redis client initialized; cache and event bus enabled")
		}
	}

	// Initialize services
	clinicService := services.NewClinicConfigurationService(
		clinicRepo,
		cacheProvider,
		eventBus,
		metrics,
		cfg.Cache.ClinicConfigTTL,
	)
	planService := services.NewTreatmentPlanService(
		staging.NewEngine(),
		clinicService,
		eventBus,
		metrics,
	)

	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start cache invalidation service")
			cacheInvalidationService = nil
		} else {
			log.Info().Msg("Cache invalidation service started")
		}
	}

	if cacheProvider != nil && clinicRepo != nil {
		warmingService := services.NewCacheWarmingService(clinicRepo, cacheProvider, cfg.Cache.ClinicConfigTTL)
		go warmingService.StartPeriodicWarming(ctx, 5*time.Minute)
		log.Info().Msg("Cache warming service started (refreshes every 5 minutes)")
	}

	// Initialize handlers
	treatmentPlanHandler := handlers.NewTreatmentPlanHandler(planService, cfg.Server.MaxBodyBytes)
	clinicConfigurationHandler := handlers.NewClinicConfigurationHandler(clinicService, cfg.Server.MaxBodyBytes)
	sseHandler := handlers.NewSSEHandler(eventBus)
	healthHandler := handlers.NewHealthHandler(dependencies)

	// Initialize middleware
	opts := routes.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics,
	}
	if cacheProvider != nil {
		opts.CacheMiddleware = middleware.NewCacheMiddleware(cacheProvider, cfg.Cache.ResponseTTL)
	}
	if cfg.RateLimit.Enabled {
		opts.RateLimiter = middleware.NewRateLimiter(middleware.RateLimitConfig{
			RatePerSecond: cfg.RateLimit.RatePerSecond,
			Capacity:      cfg.RateLimit.Capacity,
			StageCost:     cfg.RateLimit.StageCost,
		})
		opts.RateLimiter.StartCleanup(ctx, time.Minute)
	}

	// Set up router
	router := routes.NewRouter(
		treatmentPlanHandler,
		clinicConfigurationHandler,
		sseHandler,
		healthHandler,
		opts,
	)

	// WriteTimeout stays 0 so plan event streams are not cut off
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router.SetupRoutes(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("addr", serverAddr).Str("env", cfg.Server.Env).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")
	cancel()

	// Event bus closes first so open streams end before Shutdown waits on them
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	}

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	log.Info().Msg("Server stopped")
}
