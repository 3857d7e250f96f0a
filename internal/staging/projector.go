package staging

import (
	"fmt"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// Projector lists treatments that must wait for healing or lab fabrication.
// It reads the same expanded list as the Packer and does not change the visits.
type Projector struct {
	cfg entities.ClinicConfiguration
}

// NewProjector creates a projector for the configuration's waiting periods
func NewProjector(cfg entities.ClinicConfiguration) *Projector {
	return &Projector{cfg: cfg}
}

// Project returns future tasks in item order. Every extraction yields exactly
// one task and every crown-prep yields a crown-seat task.
func (p *Projector) Project(items []entities.TreatmentItem) []entities.FutureTask {
	tasks := []entities.FutureTask{}

	for _, item := range items {
		switch {
		case IsExtraction(item.Procedure):
			tasks = append(tasks, p.afterExtraction(item, items))
		case item.Procedure == ProcedureCrownPrep:
			tasks = append(tasks, p.afterCrownPrep(item))
		}
	}

	return tasks
}

func (p *Projector) afterExtraction(extraction entities.TreatmentItem, items []entities.TreatmentItem) entities.FutureTask {
	weeks := p.cfg.ExtractionToImplantHealingWeeks

	for _, candidate := range items {
		if candidate.Tooth != extraction.Tooth || !IsReplacement(candidate.Procedure) {
			continue
		}
		return entities.FutureTask{
			Treatment:                   candidate.Procedure,
			Tooth:                       extraction.Tooth,
			TargetStage:                 CategoryProsthetic,
			EarliestEligibleOffsetWeeks: weeks,
			DependencyReason: fmt.Sprintf(
				"%s for tooth %s can start once the extraction site has healed (%d weeks after extraction).",
				humanize(candidate.Procedure), toothLabel(extraction.Tooth), weeks),
		}
	}

	return entities.FutureTask{
		Treatment:                   ProcedureReplacementConsult,
		Tooth:                       extraction.Tooth,
		TargetStage:                 CategoryProsthetic,
		EarliestEligibleOffsetWeeks: weeks,
		DependencyReason: fmt.Sprintf(
			"No replacement was chosen for tooth %s; discuss implant, bridge or denture options after %d weeks of healing.",
			toothLabel(extraction.Tooth), weeks),
	}
}

func (p *Projector) afterCrownPrep(prep entities.TreatmentItem) entities.FutureTask {
	days := p.cfg.CrownSeatLabDelayDays
	return entities.FutureTask{
		Treatment:                   ProcedureCrownSeat,
		Tooth:                       prep.Tooth,
		TargetStage:                 CategoryRestorative,
		EarliestEligibleOffsetWeeks: weeksCeil(days),
		DependencyReason: fmt.Sprintf(
			"Crown seat for tooth %s waits for the crown to be fabricated by the lab (%d days after preparation).",
			toothLabel(prep.Tooth), days),
	}
}

func weeksCeil(days int) int {
	if days <= 0 {
		return 0
	}
	return (days + 6) / 7
}

func toothLabel(tooth string) string {
	if tooth == "" {
		return "(unspecified)"
	}
	return tooth
}
