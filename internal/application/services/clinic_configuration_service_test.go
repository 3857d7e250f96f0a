package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

func intPtr(v int) *int { return &v }

func storedConfig(clinicID string, budget int) *entities.ClinicStagingConfig {
	return &entities.ClinicStagingConfig{
		ClinicID:  clinicID,
		Overrides: entities.ClinicConfigurationOverrides{VisitTimeBudgetMinutes: intPtr(budget)},
		UpdatedAt: time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
}

func TestClinicConfigurationService_GetStored(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through the cache", func(t *testing.T) {
		// Arrange
		repo := new(MockClinicConfigurationRepository)
		cache := NewMockCacheProvider()
		service := services.NewClinicConfigurationService(repo, cache, nil, nil, 300)
		repo.On("Get", mock.Anything, "clinic-1").Return(storedConfig("clinic-1", 120), nil).Once()

		// Act
		first, err := service.GetStored(ctx, "clinic-1")
		require.NoError(t, err)
		second, err := service.GetStored(ctx, "clinic-1")
		require.NoError(t, err)

		// Assert
		assert.Equal(t, 120, *first.Overrides.VisitTimeBudgetMinutes)
		assert.Equal(t, 120, *second.Overrides.VisitTimeBudgetMinutes)
		assert.True(t, first.UpdatedAt.Equal(second.UpdatedAt))
		assert.True(t, cache.Has(services.ClinicConfigCacheKey("clinic-1")))
		repo.AssertNumberOfCalls(t, "Get", 1)
	})

	t.Run("ignores undecodable cache entries", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		cache := NewMockCacheProvider()
		require.NoError(t, cache.Set(ctx, services.ClinicConfigCacheKey("clinic-1"), []byte("not json"), 300))
		service := services.NewClinicConfigurationService(repo, cache, nil, nil, 300)
		repo.On("Get", mock.Anything, "clinic-1").Return(storedConfig("clinic-1", 75), nil)

		stored, err := service.GetStored(ctx, "clinic-1")

		require.NoError(t, err)
		assert.Equal(t, 75, *stored.Overrides.VisitTimeBudgetMinutes)
	})

	t.Run("rejects malformed clinic ids", func(t *testing.T) {
		service := services.NewClinicConfigurationService(new(MockClinicConfigurationRepository), nil, nil, nil, 300)

		for _, id := range []string{"", "has space", "a/b", "-leading"} {
			_, err := service.GetStored(ctx, id)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation), "id %q", id)
		}
	})

	t.Run("reports missing storage", func(t *testing.T) {
		service := services.NewClinicConfigurationService(nil, nil, nil, nil, 300)

		_, err := service.GetStored(ctx, "clinic-1")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeExternal))
		assert.False(t, service.Available())
	})
}

func TestClinicConfigurationService_GetEffective(t *testing.T) {
	ctx := context.Background()

	t.Run("applies stored overrides to the defaults", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		service := services.NewClinicConfigurationService(repo, nil, nil, nil, 300)
		repo.On("Get", mock.Anything, "clinic-1").Return(storedConfig("clinic-1", 60), nil)

		effective, err := service.GetEffective(ctx, "clinic-1")

		require.NoError(t, err)
		assert.Equal(t, 60, effective.Configuration.VisitTimeBudgetMinutes)
		assert.Equal(t, 10, effective.Configuration.ExtractionToImplantHealingWeeks)
		require.NotNil(t, effective.Overrides)
		require.NotNil(t, effective.UpdatedAt)
	})

	t.Run("falls back to defaults for clinics without overrides", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		service := services.NewClinicConfigurationService(repo, nil, nil, nil, 300)
		repo.On("Get", mock.Anything, "clinic-2").Return(nil, apperrors.NewNotFoundError("not found"))

		effective, err := service.GetEffective(ctx, "clinic-2")

		require.NoError(t, err)
		assert.Equal(t, entities.DefaultClinicConfiguration(), effective.Configuration)
		assert.Nil(t, effective.Overrides)
	})

	t.Run("propagates storage failures", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		service := services.NewClinicConfigurationService(repo, nil, nil, nil, 300)
		repo.On("Get", mock.Anything, "clinic-3").Return(nil, apperrors.NewInternalError("boom", errors.New("db down")))

		_, err := service.GetEffective(ctx, "clinic-3")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
	})
}

func TestClinicConfigurationService_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("stores, evicts and announces valid overrides", func(t *testing.T) {
		// Arrange
		repo := new(MockClinicConfigurationRepository)
		cache := NewMockCacheProvider()
		bus := NewMockEventBus()
		service := services.NewClinicConfigurationService(repo, cache, bus, nil, 300)

		stale, _ := json.Marshal(storedConfig("clinic-1", 90))
		require.NoError(t, cache.Set(ctx, services.ClinicConfigCacheKey("clinic-1"), stale, 300))

		repo.On("Upsert", mock.Anything, mock.MatchedBy(func(c *entities.ClinicStagingConfig) bool {
			return c.ClinicID == "clinic-1" && *c.Overrides.VisitTimeBudgetMinutes == 45 && !c.UpdatedAt.IsZero()
		})).Return(nil)

		// Act
		effective, err := service.Save(ctx, "clinic-1", &entities.ClinicConfigurationOverrides{VisitTimeBudgetMinutes: intPtr(45)})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 45, effective.Configuration.VisitTimeBudgetMinutes)
		assert.False(t, cache.Has(services.ClinicConfigCacheKey("clinic-1")))

		published := bus.Published()
		require.Len(t, published, 1)
		assert.Equal(t, providers.EventChannelClinicConfig, published[0].Channel)
		assert.Equal(t, entities.PlanEventTypeClinicConfigUpdated, published[0].Event.Type)
		assert.Equal(t, "clinic-1", published[0].Event.ClinicID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects invalid overrides without storing them", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		bus := NewMockEventBus()
		service := services.NewClinicConfigurationService(repo, nil, bus, nil, 300)

		_, err := service.Save(ctx, "clinic-1", &entities.ClinicConfigurationOverrides{
			VisitTimeBudgetMinutes:          intPtr(0),
			ExtractionToImplantHealingWeeks: intPtr(-2),
		})

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "visit_time_budget_minutes")
		assert.Contains(t, err.Error(), "extraction_to_implant_healing_weeks")
		repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
		assert.Empty(t, bus.Published())
	})

	t.Run("publish failures do not fail the save", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		bus := NewMockEventBus()
		bus.publishErr = errors.New("redis down")
		service := services.NewClinicConfigurationService(repo, nil, bus, nil, 300)
		repo.On("Upsert", mock.Anything, mock.Anything).Return(nil)

		_, err := service.Save(ctx, "clinic-1", nil)

		assert.NoError(t, err)
	})
}

func TestClinicConfigurationService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes and announces", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		bus := NewMockEventBus()
		service := services.NewClinicConfigurationService(repo, NewMockCacheProvider(), bus, nil, 300)
		repo.On("Delete", mock.Anything, "clinic-1").Return(nil)

		require.NoError(t, service.Delete(ctx, "clinic-1"))

		published := bus.Published()
		require.Len(t, published, 1)
		assert.Equal(t, entities.PlanEventTypeClinicConfigDeleted, published[0].Event.Type)
	})

	t.Run("passes not found through", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		bus := NewMockEventBus()
		service := services.NewClinicConfigurationService(repo, nil, bus, nil, 300)
		repo.On("Delete", mock.Anything, "clinic-9").Return(apperrors.NewNotFoundError("missing"))

		err := service.Delete(ctx, "clinic-9")

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
		assert.Empty(t, bus.Published())
	})
}

func TestClinicConfigurationService_StoredOverrides(t *testing.T) {
	ctx := context.Background()

	t.Run("nil without storage", func(t *testing.T) {
		service := services.NewClinicConfigurationService(nil, nil, nil, nil, 300)
		overrides, err := service.StoredOverrides(ctx, "clinic-1")
		assert.NoError(t, err)
		assert.Nil(t, overrides)
	})

	t.Run("nil for clinics without overrides", func(t *testing.T) {
		repo := new(MockClinicConfigurationRepository)
		repo.On("Get", mock.Anything, "clinic-1").Return(nil, apperrors.NewNotFoundError("missing"))
		service := services.NewClinicConfigurationService(repo, nil, nil, nil, 300)

		overrides, err := service.StoredOverrides(ctx, "clinic-1")

		assert.NoError(t, err)
		assert.Nil(t, overrides)
	})
}
