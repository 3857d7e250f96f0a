package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/dentalplan/internal/api/handlers"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

type MockClinicConfigurationManager struct {
	mock.Mock
}

func (m *MockClinicConfigurationManager) GetEffective(ctx context.Context, clinicID string) (*entities.EffectiveClinicConfiguration, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EffectiveClinicConfiguration), args.Error(1)
}

func (m *MockClinicConfigurationManager) Save(ctx context.Context, clinicID string, overrides *entities.ClinicConfigurationOverrides) (*entities.EffectiveClinicConfiguration, error) {
	args := m.Called(ctx, clinicID, overrides)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EffectiveClinicConfiguration), args.Error(1)
}

func (m *MockClinicConfigurationManager) Delete(ctx context.Context, clinicID string) error {
	args := m.Called(ctx, clinicID)
	return args.Error(0)
}

func effectiveFor(clinicID string, budget int) *entities.EffectiveClinicConfiguration {
	cfg := entities.DefaultClinicConfiguration()
	cfg.VisitTimeBudgetMinutes = budget
	return &entities.EffectiveClinicConfiguration{ClinicID: clinicID, Configuration: cfg}
}

func TestClinicConfigurationHandler_GetConfiguration(t *testing.T) {
	t.Run("returns the effective configuration", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("GetEffective", mock.Anything, "clinic-1").Return(effectiveFor("clinic-1", 60), nil)

		req := httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/staging-config", nil)
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		handler.GetConfiguration(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var got entities.EffectiveClinicConfiguration
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "clinic-1", got.ClinicID)
		assert.Equal(t, 60, got.Configuration.VisitTimeBudgetMinutes)
	})

	t.Run("requires a clinic ID", func(t *testing.T) {
		handler := handlers.NewClinicConfigurationHandler(new(MockClinicConfigurationManager), 0)
		req := httptest.NewRequest(http.MethodGet, "/api/clinics//staging-config", nil)
		w := httptest.NewRecorder()

		handler.GetConfiguration(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps storage failures", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("GetEffective", mock.Anything, "clinic-1").
			Return(nil, apperrors.NewInternalError("failed to get clinic configuration", errors.New("connection reset")))

		req := httptest.NewRequest(http.MethodGet, "/api/clinics/clinic-1/staging-config", nil)
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		handler.GetConfiguration(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection reset")
	})
}

func TestClinicConfigurationHandler_PutConfiguration(t *testing.T) {
	t.Run("stores the overrides", func(t *testing.T) {
		// Arrange
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("Save", mock.Anything, "clinic-1", mock.MatchedBy(func(o *entities.ClinicConfigurationOverrides) bool {
			return *o.VisitTimeBudgetMinutes == 45 &&
				*o.ToothNumbering == "fdi" &&
				o.ProcedureMinutes["filling"] == 20 &&
				o.CrownSeatLabDelayDays == nil
		})).Return(effectiveFor("clinic-1", 45), nil)

		body := `{"visit_time_budget_minutes":45,"tooth_numbering":"fdi","procedure_minutes":{"filling":20}}`
		req := httptest.NewRequest(http.MethodPut, "/api/clinics/clinic-1/staging-config", strings.NewReader(body))
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		// Act
		handler.PutConfiguration(w, req)

		// Assert
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"visit_time_budget_minutes":45`)
		manager.AssertExpectations(t)
	})

	t.Run("rejects unknown knobs", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)

		req := httptest.NewRequest(http.MethodPut, "/api/clinics/clinic-1/staging-config", strings.NewReader(`{"visit_budget":45}`))
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		handler.PutConfiguration(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "visit_budget")
		manager.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("returns validation errors", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("Save", mock.Anything, "clinic-1", mock.Anything).
			Return(nil, apperrors.NewValidationError("invalid clinic configuration: crown_seat_lab_delay_days must not be negative (got -3)"))

		req := httptest.NewRequest(http.MethodPut, "/api/clinics/clinic-1/staging-config", strings.NewReader(`{"crown_seat_lab_delay_days":-3}`))
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		handler.PutConfiguration(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "crown_seat_lab_delay_days")
	})

	t.Run("reports missing storage as unavailable", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("Save", mock.Anything, "clinic-1", mock.Anything).
			Return(nil, apperrors.NewExternalError("clinic configuration storage is not available", nil))

		req := httptest.NewRequest(http.MethodPut, "/api/clinics/clinic-1/staging-config", strings.NewReader(`{}`))
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		handler.PutConfiguration(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestClinicConfigurationHandler_DeleteConfiguration(t *testing.T) {
	t.Run("returns no content", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("Delete", mock.Anything, "clinic-1").Return(nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/clinics/clinic-1/staging-config", nil)
		req.SetPathValue("id", "clinic-1")
		w := httptest.NewRecorder()

		handler.DeleteConfiguration(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("returns not found for clinics without overrides", func(t *testing.T) {
		manager := new(MockClinicConfigurationManager)
		handler := handlers.NewClinicConfigurationHandler(manager, 0)
		manager.On("Delete", mock.Anything, "clinic-2").Return(apperrors.NewNotFoundError("clinic configuration not found"))

		req := httptest.NewRequest(http.MethodDelete, "/api/clinics/clinic-2/staging-config", nil)
		req.SetPathValue("id", "clinic-2")
		w := httptest.NewRecorder()

		handler.DeleteConfiguration(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
