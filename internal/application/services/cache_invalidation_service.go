package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
)

// ResponseCachePrefix is the key prefix of cached HTTP responses
const ResponseCachePrefix = "http:cache:"

// CacheInvalidationService drops cached clinic configuration when another
// instance announces a change on the event bus
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for clinic configuration events
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelClinicConfig)
	if err != nil {
		return fmt.Errorf("failed to subscribe to clinic config updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Info().Msg("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	<-s.done
	log.Info().Msg("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.PlanEvent) {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.PlanEvent) {
	switch event.Type {
	case entities.PlanEventTypeClinicConfigUpdated, entities.PlanEventTypeClinicConfigDeleted:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.InvalidateClinicCache(ctx, event.ClinicID); err != nil {
		log.Warn().Err(err).Str("event_id", event.ID).Str("clinic_id", event.ClinicID).Msg("Cache invalidation failed")
	}
}

// InvalidateClinicCache drops the cached overrides and cached responses of one clinic
func (s *CacheInvalidationService) InvalidateClinicCache(ctx context.Context, clinicID string) error {
	if clinicID == "" {
		return nil
	}

	if err := s.cache.Delete(ctx, ClinicConfigCacheKey(clinicID)); err != nil {
		return fmt.Errorf("failed to invalidate clinic config of %s: %w", clinicID, err)
	}

	pattern := fmt.Sprintf("%s*clinics/%s/*", ResponseCachePrefix, clinicID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate responses of clinic %s: %w", clinicID, err)
	}

	log.Debug().Str("clinic_id", clinicID).Msg("Invalidated clinic caches")
	return nil
}

// InvalidateResponseCaches drops every cached HTTP response
func (s *CacheInvalidationService) InvalidateResponseCaches(ctx context.Context) error {
	if err := s.cache.DeletePattern(ctx, ResponseCachePrefix+"*"); err != nil {
		return fmt.Errorf("failed to invalidate response caches: %w", err)
	}
	log.Info().Msg("Invalidated response caches")
	return nil
}
