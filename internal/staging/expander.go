package staging

import (
	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// Expander inserts the follow-up procedures a root canal implies.
// It is deliberately limited to root canals; the dependency table only feeds
// TreatmentItem.Dependencies.
type Expander struct {
	normalizer *Normalizer
}

// NewExpander creates an expander that builds implied items with the given normalizer
func NewExpander(normalizer *Normalizer) *Expander {
	return &Expander{normalizer: normalizer}
}

type toothProcedure struct {
	tooth     string
	procedure string
}

// Expand returns items followed by any missing build-up, crown-prep and
// crown-seat for each root-canal tooth. The input slice is not modified and
// expanding an expanded list adds nothing.
func (e *Expander) Expand(items []entities.TreatmentItem) []entities.TreatmentItem {
	expanded := make([]entities.TreatmentItem, len(items), len(items)+3)
	copy(expanded, items)

	present := make(map[toothProcedure]struct{}, len(items))
	for _, item := range items {
		present[toothProcedure{item.Tooth, item.Procedure}] = struct{}{}
	}

	ensure := func(tooth, procedure string) bool {
		key := toothProcedure{tooth, procedure}
		if _, ok := present[key]; ok {
			return false
		}
		present[key] = struct{}{}
		expanded = append(expanded, e.implied(tooth, procedure))
		return true
	}

	for _, item := range items {
		if item.Procedure != ProcedureRootCanal {
			continue
		}
		ensure(item.Tooth, ProcedureBuildUp)
		if ensure(item.Tooth, ProcedureCrownPrep) {
			ensure(item.Tooth, ProcedureCrownSeat)
		}
	}

	return expanded
}

// implied items carry no price; pricing them is left to the caller's catalog
func (e *Expander) implied(tooth, procedure string) entities.TreatmentItem {
	return e.normalizer.NewItem(tooth, procedure, CategoryRestorative, 0, ConditionRootCanalFollowUp)
}
