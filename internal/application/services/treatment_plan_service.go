package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/domain/providers"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
	"github.com/zatekoja/dentalplan/internal/staging"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

// MaxTreatmentsPerPlan bounds the number of records staged in one request
const MaxTreatmentsPerPlan = 500

// ClinicOverridesSource supplies the stored overrides of a clinic
type ClinicOverridesSource interface {
	StoredOverrides(ctx context.Context, clinicID string) (*entities.ClinicConfigurationOverrides, error)
}

// StagePlanRequest is one staging request
type StagePlanRequest struct {
	ClinicID   string                                 `json:"clinic_id,omitempty"`
	Treatments []entities.TreatmentRecord             `json:"treatments"`
	Config     *entities.ClinicConfigurationOverrides `json:"config,omitempty"`
}

// TreatmentPlanService stages treatment plans and announces them
type TreatmentPlanService struct {
	engine   *staging.Engine
	clinics  ClinicOverridesSource
	eventBus providers.EventBus
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewTreatmentPlanService creates a new treatment plan service.
// clinics and eventBus may be nil.
func NewTreatmentPlanService(
	engine *staging.Engine,
	clinics ClinicOverridesSource,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *TreatmentPlanService {
	if engine == nil {
		engine = staging.NewEngine()
	}
	return &TreatmentPlanService{
		engine:   engine,
		clinics:  clinics,
		eventBus: eventBus,
		metrics:  metrics,
		now:      time.Now,
	}
}

// StagePlan stages the request's treatments with the defaults, the clinic's
// stored overrides and the request's overrides, in that order.
// If the clinic's overrides cannot be loaded the plan is staged without them.
func (s *TreatmentPlanService) StagePlan(ctx context.Context, req *StagePlanRequest) (*entities.StagedPlan, error) {
	ctx, span := observability.StartSpan(ctx, "TreatmentPlanService.StagePlan")
	defer span.End()

	logger := observability.LoggerFromContext(ctx)
	started := s.now()

	if req == nil {
		req = &StagePlanRequest{}
	}
	if req.ClinicID != "" {
		if err := ValidateClinicID(req.ClinicID); err != nil {
			observability.RecordStagingFailure(ctx, s.metrics, "invalid_clinic")
			return nil, err
		}
	}
	if len(req.Treatments) > MaxTreatmentsPerPlan {
		observability.RecordStagingFailure(ctx, s.metrics, "too_many_treatments")
		return nil, apperrors.NewValidationError("too many treatments in one plan")
	}

	overrides := s.clinicOverrides(ctx, req.ClinicID).Merge(req.Config)

	plan, err := s.engine.Stage(req.Treatments, overrides)
	if err != nil {
		observability.RecordError(span, err)
		observability.RecordStagingFailure(ctx, s.metrics, "invalid_configuration")
		logger.Debug().Err(err).Str("clinic_id", req.ClinicID).Msg("Rejected staging request")
		return nil, err
	}

	generatedAt := s.now().UTC()
	plan.Meta.PlanID = uuid.NewString()
	plan.Meta.GeneratedAt = &generatedAt

	elapsed := s.now().Sub(started)
	observability.RecordStagingMetric(ctx, s.metrics, req.ClinicID, plan.Meta.TotalVisits, elapsed)
	observability.SetSpanAttributes(span,
		attribute.String("plan.id", plan.Meta.PlanID),
		attribute.String("clinic.id", req.ClinicID),
		attribute.Int("plan.treatments", plan.Meta.TotalTreatments),
		attribute.Int("plan.stages", plan.Meta.TotalStages),
		attribute.Int("plan.visits", plan.Meta.TotalVisits),
	)

	logger.Info().
		Str("plan_id", plan.Meta.PlanID).
		Str("clinic_id", req.ClinicID).
		Int("records", len(req.Treatments)).
		Int("stages", plan.Meta.TotalStages).
		Int("visits", plan.Meta.TotalVisits).
		Int("future_tasks", plan.Meta.TotalFutureTasks).
		Dur("elapsed", elapsed).
		Msg("Staged treatment plan")

	s.publish(ctx, req.ClinicID, plan)
	return plan, nil
}

func (s *TreatmentPlanService) clinicOverrides(ctx context.Context, clinicID string) *entities.ClinicConfigurationOverrides {
	if clinicID == "" || s.clinics == nil {
		return nil
	}

	overrides, err := s.clinics.StoredOverrides(ctx, clinicID)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("clinic_id", clinicID).
			Msg("Clinic overrides unavailable, staging with defaults")
		return nil
	}
	return overrides
}

func (s *TreatmentPlanService) publish(ctx context.Context, clinicID string, plan *entities.StagedPlan) {
	if s.eventBus == nil {
		return
	}

	event := entities.NewPlanStagedEvent(clinicID, plan)
	channels := []string{providers.EventChannelPlansStaged}
	if clinicID != "" {
		channels = append(channels, providers.GetClinicPlansChannel(clinicID))
	}

	for _, channel := range channels {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("channel", channel).
				Str("plan_id", plan.Meta.PlanID).
				Msg("Failed to publish plan event")
		}
	}
}
