package staging

import (
	"fmt"
	"strings"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

var quadrantNames = map[entities.Quadrant]string{
	entities.QuadrantUpperRight: "upper right",
	entities.QuadrantUpperLeft:  "upper left",
	entities.QuadrantLowerRight: "lower right",
	entities.QuadrantLowerLeft:  "lower left",
}

func explainVisit(category int, visit entities.Visit, cfg entities.ClinicConfiguration) string {
	area := quadrantNames[visit.Quadrant]
	side := strings.ToLower(string(visit.Side))

	var note string
	switch category {
	case CategoryUrgent:
		note = fmt.Sprintf(
			"We grouped urgent care in the %s quadrant first to relieve pain and control infection. "+
				"Everything in this visit is on the %s side, so we avoided numbing both sides in one session.",
			area, side)
	case CategoryRestorative:
		note = fmt.Sprintf(
			"Restorative care is grouped by quadrant for efficiency: this visit stays in the %s quadrant and within the %d-minute appointment.",
			area, cfg.VisitTimeBudgetMinutes)
		if containsProcedure(visit.Treatments, ProcedureRootCanal) {
			note += " The root canal is followed immediately by a build-up to seal and protect the treated tooth."
		}
	case CategoryProsthetic:
		note = fmt.Sprintf(
			"Prosthetic work in the %s quadrant is planned after a %d-week healing period so extraction sites can heal before replacement.",
			area, cfg.ExtractionToImplantHealingWeeks)
	case CategoryAesthetic:
		note = "Aesthetic treatments are scheduled last, once health and function have been restored."
	}

	if len(visit.Treatments) == 1 && visit.DurationMinutes > cfg.VisitTimeBudgetMinutes {
		note += fmt.Sprintf(" This procedure alone runs longer than the %d-minute budget, so it has a visit of its own.", cfg.VisitTimeBudgetMinutes)
	}

	return strings.TrimSpace(note)
}

func containsProcedure(items []entities.TreatmentItem, procedure string) bool {
	for _, item := range items {
		if item.Procedure == procedure {
			return true
		}
	}
	return false
}

// humanize turns a procedure key into display text ("crown-seat" -> "Crown seat")
func humanize(procedure string) string {
	text := strings.ReplaceAll(procedure, "-", " ")
	if text == "" {
		return text
	}
	return strings.ToUpper(text[:1]) + text[1:]
}
