package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// ClinicConfigurationManager reads and writes clinic staging overrides
type ClinicConfigurationManager interface {
	GetEffective(ctx context.Context, clinicID string) (*entities.EffectiveClinicConfiguration, error)
	Save(ctx context.Context, clinicID string, overrides *entities.ClinicConfigurationOverrides) (*entities.EffectiveClinicConfiguration, error)
	Delete(ctx context.Context, clinicID string) error
}

// ClinicConfigurationHandler handles clinic staging configuration requests
type ClinicConfigurationHandler struct {
	manager      ClinicConfigurationManager
	maxBodyBytes int64
}

// NewClinicConfigurationHandler creates a new clinic configuration handler
func NewClinicConfigurationHandler(manager ClinicConfigurationManager, maxBodyBytes int64) *ClinicConfigurationHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &ClinicConfigurationHandler{
		manager:      manager,
		maxBodyBytes: maxBodyBytes,
	}
}

// GetConfiguration handles GET /api/clinics/{id}/staging-config
func (h *ClinicConfigurationHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	clinicID := r.PathValue("id")
	if clinicID == "" {
		respondWithError(w, http.StatusBadRequest, "clinic ID is required")
		return
	}

	effective, err := h.manager.GetEffective(r.Context(), clinicID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, effective)
}

// PutConfiguration handles PUT /api/clinics/{id}/staging-config
func (h *ClinicConfigurationHandler) PutConfiguration(w http.ResponseWriter, r *http.Request) {
	clinicID := r.PathValue("id")
	if clinicID == "" {
		respondWithError(w, http.StatusBadRequest, "clinic ID is required")
		return
	}

	body, status, err := readBody(w, r, h.maxBodyBytes)
	if err != nil {
		if status == http.StatusRequestEntityTooLarge {
			respondWithError(w, status, "request body too large")
			return
		}
		respondWithError(w, status, "failed to read request body")
		return
	}

	// Unknown knobs are rejected
	var overrides entities.ClinicConfigurationOverrides
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&overrides); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid configuration body: "+err.Error())
		return
	}

	effective, err := h.manager.Save(r.Context(), clinicID, &overrides)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, effective)
}

// DeleteConfiguration handles DELETE /api/clinics/{id}/staging-config
func (h *ClinicConfigurationHandler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	clinicID := r.PathValue("id")
	if clinicID == "" {
		respondWithError(w, http.StatusBadRequest, "clinic ID is required")
		return
	}

	if err := h.manager.Delete(r.Context(), clinicID); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
