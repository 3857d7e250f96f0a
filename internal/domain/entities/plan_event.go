package entities

import (
	"time"

	"github.com/google/uuid"
)

// PlanEventType represents the type of staging event
type PlanEventType string

const (
	PlanEventTypeStaged              PlanEventType = "plan.staged"
	PlanEventTypeClinicConfigUpdated PlanEventType = "clinic.config.updated"
	PlanEventTypeClinicConfigDeleted PlanEventType = "clinic.config.deleted"
)

// PlanEvent is published when a plan is staged or a clinic's staging policy changes
type PlanEvent struct {
	ID              string        `json:"id"`
	Type            PlanEventType `json:"type"`
	ClinicID        string        `json:"clinic_id,omitempty"`
	PlanID          string        `json:"plan_id,omitempty"`
	TotalStages     int           `json:"total_stages,omitempty"`
	TotalVisits     int           `json:"total_visits,omitempty"`
	TotalTreatments int           `json:"total_treatments,omitempty"`
	FutureTasks     int           `json:"future_tasks,omitempty"`
	TotalCost       float64       `json:"total_cost,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
}

// NewPlanStagedEvent creates an event summarizing a staged plan
func NewPlanStagedEvent(clinicID string, plan *StagedPlan) *PlanEvent {
	return &PlanEvent{
		ID:              uuid.NewString(),
		Type:            PlanEventTypeStaged,
		ClinicID:        clinicID,
		PlanID:          plan.Meta.PlanID,
		TotalStages:     plan.Meta.TotalStages,
		TotalVisits:     plan.Meta.TotalVisits,
		TotalTreatments: plan.Meta.TotalTreatments,
		FutureTasks:     len(plan.FutureTasks),
		TotalCost:       plan.Meta.TotalCost,
		Timestamp:       time.Now().UTC(),
	}
}

// NewClinicConfigEvent creates an event for a clinic configuration change
func NewClinicConfigEvent(clinicID string, eventType PlanEventType) *PlanEvent {
	return &PlanEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		ClinicID:  clinicID,
		Timestamp: time.Now().UTC(),
	}
}
