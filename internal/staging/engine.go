// Package staging arranges proposed dental treatments into urgency-ordered
// stages and time-boxed visits.
//
// The pipeline is Normalize → Expand → Classify → Pack → Project. It performs no
// I/O and keeps no state between calls, so one Engine can serve concurrent requests.
package staging

import (
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

// Version identifies the staging algorithm in plan metadata
const Version = "2.1.0"

// Engine runs the staging pipeline
type Engine struct {
	locator ToothLocator
}

// Option configures an Engine
type Option func(*Engine)

// WithToothLocator replaces the numbering scheme selected by the clinic configuration
func WithToothLocator(locator ToothLocator) Option {
	return func(e *Engine) {
		e.locator = locator
	}
}

// NewEngine creates a staging engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stage builds the effective configuration from fresh defaults and overrides,
// then stages the records with it.
func (e *Engine) Stage(records []entities.TreatmentRecord, overrides *entities.ClinicConfigurationOverrides) (*entities.StagedPlan, error) {
	cfg := overrides.ApplyTo(entities.DefaultClinicConfiguration())
	return e.StageWithConfiguration(records, cfg)
}

// StageWithConfiguration stages the records with a complete configuration.
// An invalid configuration is rejected before any work is done.
func (e *Engine) StageWithConfiguration(records []entities.TreatmentRecord, cfg entities.ClinicConfiguration) (*entities.StagedPlan, error) {
	cfg = cfg.Clone()

	packer, err := NewPacker(cfg)
	if err != nil {
		return nil, err
	}

	locator := e.locator
	if locator == nil {
		locator, err = LocatorFor(cfg.ToothNumbering)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error())
		}
	}

	normalizer := NewNormalizer(cfg, locator)
	items := normalizer.Normalize(records)
	items = NewExpander(normalizer).Expand(items)
	items = Classify(items)

	stages := packer.Pack(items)
	tasks := NewProjector(cfg).Project(items)

	return assemble(stages, tasks, cfg), nil
}

func assemble(stages []entities.Stage, tasks []entities.FutureTask, cfg entities.ClinicConfiguration) *entities.StagedPlan {
	plan := &entities.StagedPlan{
		Stages:      stages,
		FutureTasks: tasks,
		Meta: entities.PlanMeta{
			TotalStages:       len(stages),
			TotalFutureTasks:  len(tasks),
			StagingVersion:    Version,
			ConfigurationUsed: cfg,
		},
	}

	for _, stage := range stages {
		plan.Meta.TotalVisits += len(stage.Visits)
		plan.Meta.TotalDurationMinutes += stage.TotalDurationMinutes
		plan.Meta.TotalCost += stage.TotalCost
		for _, visit := range stage.Visits {
			plan.Meta.TotalTreatments += len(visit.Treatments)
		}
	}

	return plan
}
