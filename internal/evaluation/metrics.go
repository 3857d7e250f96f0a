package evaluation

import (
	"fmt"
	"math"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

const costTolerance = 0.005

// CompareExpectation lists every expected total the plan does not match.
// Returns nil when the plan meets the expectation.
func CompareExpectation(expect Expectation, plan *entities.StagedPlan) []string {
	var mismatches []string

	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			mismatches = append(mismatches, fmt.Sprintf("%s: want %d, got %d", name, *want, got))
		}
	}

	checkInt("stages", expect.Stages, plan.Meta.TotalStages)
	checkInt("visits", expect.Visits, plan.Meta.TotalVisits)
	checkInt("treatments", expect.Treatments, plan.Meta.TotalTreatments)
	checkInt("future_tasks", expect.FutureTasks, len(plan.FutureTasks))
	checkInt("total_duration_minutes", expect.Minutes, plan.Meta.TotalDurationMinutes)

	if expect.TotalCost != nil && !CostEqual(*expect.TotalCost, plan.Meta.TotalCost) {
		mismatches = append(mismatches, fmt.Sprintf("total_cost: want %.2f, got %.2f", *expect.TotalCost, plan.Meta.TotalCost))
	}

	if expect.StageNumbers != nil {
		got := make([]int, 0, len(plan.Stages))
		for _, stage := range plan.Stages {
			got = append(got, stage.Number)
		}
		if fmt.Sprint(got) != fmt.Sprint(expect.StageNumbers) {
			mismatches = append(mismatches, fmt.Sprintf("stage_numbers: want %v, got %v", expect.StageNumbers, got))
		}
	}

	return mismatches
}

// CostEqual compares two money amounts to the cent.
func CostEqual(a, b float64) bool {
	return math.Abs(a-b) < costTolerance
}

// PassRate computes the fraction of passed plans. Returns 0.0 if total is zero.
func PassRate(passed, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(passed) / float64(total)
}
