package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured
const DefaultMaxBodyBytes int64 = 1 << 20

// PlanStager stages treatment plans
type PlanStager interface {
	StagePlan(ctx context.Context, req *services.StagePlanRequest) (*entities.StagedPlan, error)
}

// TreatmentPlanHandler handles staging requests
type TreatmentPlanHandler struct {
	stager       PlanStager
	maxBodyBytes int64
}

// NewTreatmentPlanHandler creates a new treatment plan handler
func NewTreatmentPlanHandler(stager PlanStager, maxBodyBytes int64) *TreatmentPlanHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &TreatmentPlanHandler{
		stager:       stager,
		maxBodyBytes: maxBodyBytes,
	}
}

// StagePlan handles POST /api/treatment-plans/stage
//
// The body is either a staging request object or a bare array of treatment records.
func (h *TreatmentPlanHandler) StagePlan(w http.ResponseWriter, r *http.Request) {
	body, status, err := readBody(w, r, h.maxBodyBytes)
	if err != nil {
		if status == http.StatusRequestEntityTooLarge {
			respondWithError(w, status, "request body too large")
			return
		}
		respondWithError(w, status, "failed to read request body")
		return
	}

	req, err := decodeStageRequest(body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	plan, err := h.stager.StagePlan(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, plan)
}

// GetDefaults handles GET /api/staging/defaults
func (h *TreatmentPlanHandler) GetDefaults(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, entities.DefaultClinicConfiguration())
}

func decodeStageRequest(body []byte) (*services.StagePlanRequest, error) {
	body = bytes.TrimSpace(body)
	req := &services.StagePlanRequest{}
	if len(body) == 0 {
		return req, nil
	}

	if body[0] == '[' {
		if err := json.Unmarshal(body, &req.Treatments); err != nil {
			return nil, err
		}
		return req, nil
	}

	if err := json.Unmarshal(body, req); err != nil {
		return nil, err
	}
	return req, nil
}
