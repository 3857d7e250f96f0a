package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	"github.com/zatekoja/dentalplan/internal/domain/repositories"
)

// CacheWarmingService preloads stored clinic overrides into the cache
type CacheWarmingService struct {
	repo     repositories.ClinicConfigurationRepository
	cache    providers.CacheProvider
	cacheTTL int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(
	repo repositories.ClinicConfigurationRepository,
	cache providers.CacheProvider,
	cacheTTLSeconds int,
) *CacheWarmingService {
	return &CacheWarmingService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTLSeconds,
	}
}

// WarmCache caches the overrides of every clinic and returns how many were cached
func (s *CacheWarmingService) WarmCache(ctx context.Context) (int, error) {
	configs, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list clinic configurations: %w", err)
	}

	warmed := 0
	for _, config := range configs {
		data, err := json.Marshal(config)
		if err != nil {
			log.Warn().Err(err).Str("clinic_id", config.ClinicID).Msg("Failed to encode clinic configuration")
			continue
		}
		if err := s.cache.Set(ctx, ClinicConfigCacheKey(config.ClinicID), data, s.cacheTTL); err != nil {
			log.Warn().Err(err).Str("clinic_id", config.ClinicID).Msg("Failed to cache clinic configuration")
			continue
		}
		warmed++
	}

	log.Info().Int("clinics", warmed).Msg("Warmed clinic configuration cache")
	return warmed, nil
}

// StartPeriodicWarming warms the cache now and then on every interval until ctx is cancelled
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	if _, err := s.WarmCache(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Stopping cache warming service")
				return
			case <-ticker.C:
				if _, err := s.WarmCache(ctx); err != nil {
					log.Warn().Err(err).Msg("Periodic cache warming failed")
				}
			}
		}
	}()
}
