package evaluation

import (
	"context"
	"time"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

// PlanStager stages one set of treatment records.
type PlanStager interface {
	Stage(records []entities.TreatmentRecord, overrides *entities.ClinicConfigurationOverrides) (*entities.StagedPlan, error)
}

// Runner runs evaluation across a set of golden plans.
type Runner struct {
	stager     PlanStager
	guardrails *Guardrails
}

func NewRunner(stager PlanStager, guardrails *Guardrails) *Runner {
	if guardrails == nil {
		guardrails = NewGuardrails(GuardrailConfig{})
	}
	return &Runner{stager: stager, guardrails: guardrails}
}

// Run stages every golden plan and checks it. It stops early only when ctx is done.
func (r *Runner) Run(ctx context.Context, plans []GoldenPlan) (*EvalSummary, error) {
	summary := &EvalSummary{
		TotalPlans:   len(plans),
		ByDifficulty: make(map[Difficulty]*DifficultySummary),
	}

	for _, gp := range plans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result := r.evaluate(gp)
		r.updateSummary(summary, result)
	}

	r.finalizeSummary(summary)
	return summary, nil
}

func (r *Runner) evaluate(gp GoldenPlan) EvalResult {
	start := time.Now()
	plan, err := r.stager.Stage(gp.Treatments, gp.Config)
	result := EvalResult{
		PlanID:     gp.ID,
		Difficulty: gp.Difficulty,
		Latency:    time.Since(start),
	}

	switch {
	case gp.Expect.Rejected && err == nil:
		result.Mismatches = []string{"configuration accepted, want rejection"}
	case gp.Expect.Rejected:
		if !apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			result.Mismatches = []string{"rejected with a non-validation error: " + err.Error()}
		}
	case err != nil:
		result.Mismatches = []string{"staging failed: " + err.Error()}
	default:
		result.Mismatches = CompareExpectation(gp.Expect, plan)
		result.Violations = r.guardrails.Check(plan)
	}

	result.Passed = len(result.Mismatches) == 0 && len(result.Violations) == 0
	return result
}

func (r *Runner) updateSummary(s *EvalSummary, res EvalResult) {
	s.AvgLatency += res.Latency
	if res.Passed {
		s.Passed++
	} else {
		s.Failures = append(s.Failures, res)
	}

	if _, ok := s.ByDifficulty[res.Difficulty]; !ok {
		s.ByDifficulty[res.Difficulty] = &DifficultySummary{}
	}
	ds := s.ByDifficulty[res.Difficulty]
	ds.Count++
	if res.Passed {
		ds.Passed++
	}
}

func (r *Runner) finalizeSummary(s *EvalSummary) {
	s.PassRate = PassRate(s.Passed, s.TotalPlans)
	if s.TotalPlans > 0 {
		s.AvgLatency /= time.Duration(s.TotalPlans)
	}

	for _, ds := range s.ByDifficulty {
		ds.PassRate = PassRate(ds.Passed, ds.Count)
	}
}
