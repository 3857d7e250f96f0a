package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	"github.com/zatekoja/dentalplan/internal/domain/repositories"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

const clinicConfigCacheName = "clinic_config"

var clinicIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// ClinicConfigCacheKey returns the cache key of a clinic's stored overrides
func ClinicConfigCacheKey(clinicID string) string {
	return "clinic:config:" + clinicID
}

// ValidateClinicID rejects identifiers that cannot be used as keys or channel names
func ValidateClinicID(clinicID string) error {
	if !clinicIDPattern.MatchString(clinicID) {
		return apperrors.NewValidationError(fmt.Sprintf("invalid clinic id %q", clinicID))
	}
	return nil
}

// ClinicConfigurationService manages per-clinic staging overrides.
// Repository, cache and event bus are optional; without a repository every
// clinic stages with the defaults.
type ClinicConfigurationService struct {
	repo     repositories.ClinicConfigurationRepository
	cache    providers.CacheProvider
	eventBus providers.EventBus
	metrics  *observability.Metrics
	cacheTTL int
	now      func() time.Time
}

// NewClinicConfigurationService creates a new clinic configuration service
func NewClinicConfigurationService(
	repo repositories.ClinicConfigurationRepository,
	cache providers.CacheProvider,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
	cacheTTLSeconds int,
) *ClinicConfigurationService {
	return &ClinicConfigurationService{
		repo:     repo,
		cache:    cache,
		eventBus: eventBus,
		metrics:  metrics,
		cacheTTL: cacheTTLSeconds,
		now:      time.Now,
	}
}

// Available reports whether overrides can be stored
func (s *ClinicConfigurationService) Available() bool {
	return s.repo != nil
}

// GetStored returns the stored overrides of a clinic, reading through the cache
func (s *ClinicConfigurationService) GetStored(ctx context.Context, clinicID string) (*entities.ClinicStagingConfig, error) {
	if err := ValidateClinicID(clinicID); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errStorageUnavailable()
	}

	key := ClinicConfigCacheKey(clinicID)
	if cached := s.fromCache(ctx, key); cached != nil {
		return cached, nil
	}

	stored, err := s.repo.Get(ctx, clinicID)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, key, stored)
	return stored, nil
}

// StoredOverrides returns the overrides staging should apply for a clinic.
// A clinic without stored overrides, or a service without storage, yields nil.
func (s *ClinicConfigurationService) StoredOverrides(ctx context.Context, clinicID string) (*entities.ClinicConfigurationOverrides, error) {
	if s.repo == nil {
		return nil, nil
	}

	stored, err := s.GetStored(ctx, clinicID)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &stored.Overrides, nil
}

// GetEffective returns the defaults with the clinic's stored overrides applied
func (s *ClinicConfigurationService) GetEffective(ctx context.Context, clinicID string) (*entities.EffectiveClinicConfiguration, error) {
	if err := ValidateClinicID(clinicID); err != nil {
		return nil, err
	}

	effective := &entities.EffectiveClinicConfiguration{
		ClinicID:      clinicID,
		Configuration: entities.DefaultClinicConfiguration(),
	}
	if s.repo == nil {
		return effective, nil
	}

	stored, err := s.GetStored(ctx, clinicID)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return effective, nil
	}
	if err != nil {
		return nil, err
	}

	return effectiveFrom(stored), nil
}

// Save validates and stores a clinic's overrides, then announces the change
func (s *ClinicConfigurationService) Save(ctx context.Context, clinicID string, overrides *entities.ClinicConfigurationOverrides) (*entities.EffectiveClinicConfiguration, error) {
	if err := ValidateClinicID(clinicID); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errStorageUnavailable()
	}
	if overrides == nil {
		overrides = &entities.ClinicConfigurationOverrides{}
	}

	if err := overrides.ApplyTo(entities.DefaultClinicConfiguration()).Validate(); err != nil {
		return nil, err
	}

	stored := &entities.ClinicStagingConfig{
		ClinicID:  clinicID,
		Overrides: *overrides.Merge(nil),
		UpdatedAt: s.now().UTC(),
	}
	if err := s.repo.Upsert(ctx, stored); err != nil {
		return nil, err
	}

	s.evict(ctx, clinicID)
	s.publish(ctx, entities.NewClinicConfigEvent(clinicID, entities.PlanEventTypeClinicConfigUpdated))

	observability.LoggerFromContext(ctx).Info().
		Str("clinic_id", clinicID).
		Msg("Saved clinic staging configuration")

	return effectiveFrom(stored), nil
}

// Delete removes a clinic's overrides so it stages with the defaults again
func (s *ClinicConfigurationService) Delete(ctx context.Context, clinicID string) error {
	if err := ValidateClinicID(clinicID); err != nil {
		return err
	}
	if s.repo == nil {
		return errStorageUnavailable()
	}

	if err := s.repo.Delete(ctx, clinicID); err != nil {
		return err
	}

	s.evict(ctx, clinicID)
	s.publish(ctx, entities.NewClinicConfigEvent(clinicID, entities.PlanEventTypeClinicConfigDeleted))

	observability.LoggerFromContext(ctx).Info().
		Str("clinic_id", clinicID).
		Msg("Deleted clinic staging configuration")
	return nil
}

// List returns every clinic with stored overrides
func (s *ClinicConfigurationService) List(ctx context.Context) ([]*entities.ClinicStagingConfig, error) {
	if s.repo == nil {
		return nil, errStorageUnavailable()
	}
	return s.repo.List(ctx)
}

func (s *ClinicConfigurationService) fromCache(ctx context.Context, key string) *entities.ClinicStagingConfig {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, providers.ErrCacheMiss) {
			observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Clinic config cache read failed")
		}
		observability.RecordCacheMiss(ctx, s.metrics, clinicConfigCacheName)
		return nil
	}

	var stored entities.ClinicStagingConfig
	if err := json.Unmarshal(data, &stored); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Discarding undecodable clinic config cache entry")
		observability.RecordCacheMiss(ctx, s.metrics, clinicConfigCacheName)
		return nil
	}

	observability.RecordCacheHit(ctx, s.metrics, clinicConfigCacheName)
	return &stored
}

func (s *ClinicConfigurationService) toCache(ctx context.Context, key string, stored *entities.ClinicStagingConfig) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("Clinic config cache write failed")
	}
}

func (s *ClinicConfigurationService) evict(ctx context.Context, clinicID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, ClinicConfigCacheKey(clinicID)); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("clinic_id", clinicID).Msg("Clinic config cache eviction failed")
	}
}

func (s *ClinicConfigurationService) publish(ctx context.Context, event *entities.PlanEvent) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, providers.EventChannelClinicConfig, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("event_id", event.ID).Msg("Failed to publish clinic config event")
	}
}

func effectiveFrom(stored *entities.ClinicStagingConfig) *entities.EffectiveClinicConfiguration {
	overrides := stored.Overrides.Merge(nil)
	updatedAt := stored.UpdatedAt
	return &entities.EffectiveClinicConfiguration{
		ClinicID:      stored.ClinicID,
		Configuration: overrides.ApplyTo(entities.DefaultClinicConfiguration()),
		Overrides:     overrides,
		UpdatedAt:     &updatedAt,
	}
}

func errStorageUnavailable() error {
	return apperrors.NewExternalError("clinic configuration storage is not available", nil)
}
