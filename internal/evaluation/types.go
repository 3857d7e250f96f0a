package evaluation

import (
	"time"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// Difficulty grades a golden plan by how many rules it exercises.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // one procedure, defaults
	DifficultyMedium Difficulty = "medium" // expansion or projection involved
	DifficultyHard   Difficulty = "hard"   // budget splits, overrides, many zones
)

// IsValid checks if the difficulty value is one of the defined constants.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Expectation holds the plan totals a golden plan must produce.
// Nil fields are not checked.
type Expectation struct {
	Stages       *int     `json:"stages,omitempty"`
	StageNumbers []int    `json:"stage_numbers,omitempty"`
	Visits       *int     `json:"visits,omitempty"`
	Treatments   *int     `json:"treatments,omitempty"`
	FutureTasks  *int     `json:"future_tasks,omitempty"`
	TotalCost    *float64 `json:"total_cost,omitempty"`
	Minutes      *int     `json:"total_duration_minutes,omitempty"`
	Rejected     bool     `json:"rejected,omitempty"`
}

// GoldenPlan is a labeled staging scenario with its expected outcome.
type GoldenPlan struct {
	ID          string                                 `json:"id"`
	Description string                                 `json:"description"`
	Difficulty  Difficulty                             `json:"difficulty"`
	Treatments  []entities.TreatmentRecord             `json:"treatments"`
	Config      *entities.ClinicConfigurationOverrides `json:"config,omitempty"`
	Expect      Expectation                            `json:"expect"`
}

// EvalResult holds the evaluation outcome for a single golden plan.
type EvalResult struct {
	PlanID     string        `json:"plan_id"`
	Difficulty Difficulty    `json:"difficulty"`
	Passed     bool          `json:"passed"`
	Mismatches []string      `json:"mismatches,omitempty"`
	Violations []string      `json:"violations,omitempty"`
	Latency    time.Duration `json:"latency"`
}

// EvalSummary holds aggregate results across all golden plans.
type EvalSummary struct {
	TotalPlans   int                               `json:"total_plans"`
	Passed       int                               `json:"passed"`
	PassRate     float64                           `json:"pass_rate"`
	AvgLatency   time.Duration                     `json:"avg_latency"`
	ByDifficulty map[Difficulty]*DifficultySummary `json:"by_difficulty"`
	Failures     []EvalResult                      `json:"failures,omitempty"`
}

// DifficultySummary holds results grouped by difficulty.
type DifficultySummary struct {
	Count    int     `json:"count"`
	Passed   int     `json:"passed"`
	PassRate float64 `json:"pass_rate"`
}
