package entities

import (
	"time"
)

// Visit is one clinical appointment within a stage
type Visit struct {
	Label           string          `json:"visit_label"`
	Treatments      []TreatmentItem `json:"treatments"`
	DurationMinutes int             `json:"visit_duration_minutes"`
	Cost            float64         `json:"visit_cost"`
	ExplainNote     string          `json:"explain_note"`
	Side            Side            `json:"side"`
	Quadrant        Quadrant        `json:"quadrant"`
}

// Stage is one urgency-ordered phase of the plan
type Stage struct {
	Number               int     `json:"stage_number"`
	Title                string  `json:"stage_title"`
	Visits               []Visit `json:"visits"`
	TotalDurationMinutes int     `json:"total_duration_minutes"`
	TotalCost            float64 `json:"total_cost"`
}

// FutureTask is a treatment that must wait for healing or lab fabrication
type FutureTask struct {
	Treatment                   string `json:"treatment"`
	Tooth                       string `json:"tooth"`
	TargetStage                 int    `json:"target_stage"`
	EarliestEligibleOffsetWeeks int    `json:"earliest_eligible_offset_weeks"`
	DependencyReason            string `json:"dependency_reason"`
}

// PlanMeta summarizes a staged plan
type PlanMeta struct {
	PlanID               string              `json:"plan_id,omitempty"`
	GeneratedAt          *time.Time          `json:"generated_at,omitempty"`
	TotalStages          int                 `json:"total_stages"`
	TotalVisits          int                 `json:"total_visits"`
	TotalTreatments      int                 `json:"total_treatments"`
	TotalFutureTasks     int                 `json:"total_future_tasks"`
	TotalDurationMinutes int                 `json:"total_duration_minutes"`
	TotalCost            float64             `json:"total_cost"`
	StagingVersion       string              `json:"staging_version"`
	ConfigurationUsed    ClinicConfiguration `json:"configuration_used"`
}

// StagedPlan is the staging engine's result
type StagedPlan struct {
	Stages      []Stage      `json:"stages"`
	FutureTasks []FutureTask `json:"future_tasks"`
	Meta        PlanMeta     `json:"meta"`
}

// VisitCount returns the number of visits across all stages
func (p *StagedPlan) VisitCount() int {
	count := 0
	for _, stage := range p.Stages {
		count += len(stage.Visits)
	}
	return count
}
