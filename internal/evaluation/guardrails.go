package evaluation

import (
	"fmt"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/staging"
)

// GuardrailConfig bounds what a staged plan may look like.
type GuardrailConfig struct {
	MaxStages        int
	MaxVisitsPerPlan int
}

// Guardrails checks the structural rules every staged plan must follow.
type Guardrails struct {
	config GuardrailConfig
}

func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxStages <= 0 {
		config.MaxStages = staging.CategoryAesthetic
	}
	if config.MaxVisitsPerPlan <= 0 {
		config.MaxVisitsPerPlan = 200
	}
	return &Guardrails{config: config}
}

// Check returns a description of every rule the plan breaks.
// The visit budget is taken from the configuration recorded in the plan.
func (g *Guardrails) Check(plan *entities.StagedPlan) []string {
	var violations []string
	add := func(format string, args ...interface{}) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if len(plan.Stages) > g.config.MaxStages {
		add("plan has %d stages, limit is %d", len(plan.Stages), g.config.MaxStages)
	}
	if visits := plan.VisitCount(); visits > g.config.MaxVisitsPerPlan {
		add("plan has %d visits, limit is %d", visits, g.config.MaxVisitsPerPlan)
	}

	budget := plan.Meta.ConfigurationUsed.VisitTimeBudgetMinutes
	extractions := make(map[string]int)
	crownPreps := make(map[string]int)

	var treatments, minutes int
	var cost float64
	previous := 0
	for _, stage := range plan.Stages {
		if stage.Number <= previous {
			add("stage %d follows stage %d", stage.Number, previous)
		}
		previous = stage.Number
		if stage.Title != staging.StageTitle(stage.Number) {
			add("stage %d has title %q", stage.Number, stage.Title)
		}
		if len(stage.Visits) == 0 {
			add("stage %d has no visits", stage.Number)
		}

		var stageMinutes int
		var stageCost float64
		for i, visit := range stage.Visits {
			if want := staging.VisitLabel(stage.Number, i+1); visit.Label != want {
				add("visit %q should be labeled %q", visit.Label, want)
			}
			if len(visit.Treatments) == 0 {
				add("%s has no treatments", visit.Label)
			}

			var visitMinutes int
			for _, item := range visit.Treatments {
				if item.Side != visit.Side || item.Quadrant != visit.Quadrant {
					add("%s mixes zones: tooth %s is in %s", visit.Label, item.Tooth, item.Quadrant)
				}
				if item.StageCategory != stage.Number {
					add("%s holds %s of category %d", visit.Label, item.Procedure, item.StageCategory)
				}
				if staging.IsExtraction(item.Procedure) {
					extractions[item.Tooth]++
				}
				if item.Procedure == staging.ProcedureCrownPrep {
					crownPreps[item.Tooth]++
				}
				visitMinutes += item.TimeEstimateMinutes
			}

			if visitMinutes != visit.DurationMinutes {
				add("%s duration %d does not match its treatments (%d)", visit.Label, visit.DurationMinutes, visitMinutes)
			}
			if len(visit.Treatments) > 1 && visitMinutes > budget {
				add("%s takes %d minutes, budget is %d", visit.Label, visitMinutes, budget)
			}

			treatments += len(visit.Treatments)
			stageMinutes += visit.DurationMinutes
			stageCost += visit.Cost
		}

		if stageMinutes != stage.TotalDurationMinutes || !CostEqual(stageCost, stage.TotalCost) {
			add("stage %d totals do not match its visits", stage.Number)
		}
		minutes += stageMinutes
		cost += stageCost
	}

	if treatments != plan.Meta.TotalTreatments {
		add("meta counts %d treatments, visits hold %d", plan.Meta.TotalTreatments, treatments)
	}
	if minutes != plan.Meta.TotalDurationMinutes || !CostEqual(cost, plan.Meta.TotalCost) {
		add("meta totals do not match the stages")
	}

	for tooth, n := range extractions {
		if tasks := g.countTasks(plan, tooth, staging.CategoryProsthetic); tasks != n {
			add("tooth %s has %d extractions but %d replacement tasks", tooth, n, tasks)
		}
	}
	for tooth, n := range crownPreps {
		if tasks := g.countTasks(plan, tooth, staging.CategoryRestorative); tasks != n {
			add("tooth %s has %d crown preps but %d crown-seat tasks", tooth, n, tasks)
		}
	}

	return violations
}

func (g *Guardrails) countTasks(plan *entities.StagedPlan, tooth string, targetStage int) int {
	count := 0
	for _, task := range plan.FutureTasks {
		if task.Tooth == tooth && task.TargetStage == targetStage {
			count++
		}
	}
	return count
}
