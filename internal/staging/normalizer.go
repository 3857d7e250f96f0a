package staging

import (
	"strings"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// Normalizer turns raw treatment records into typed treatment items
type Normalizer struct {
	locator      ToothLocator
	minutes      map[string]int
	dependencies map[string][]string
}

// NewNormalizer creates a normalizer over the configuration's lookup tables
func NewNormalizer(cfg entities.ClinicConfiguration, locator ToothLocator) *Normalizer {
	if locator == nil {
		locator = UniversalLocator{}
	}
	return &Normalizer{
		locator:      locator,
		minutes:      foldMinutes(cfg.ProcedureMinutes),
		dependencies: foldDependencies(cfg.ProcedureDependencies),
	}
}

// Normalize converts records in order. An extraction naming a replacement is
// followed by a synthesized prosthetics item for that replacement.
func (n *Normalizer) Normalize(records []entities.TreatmentRecord) []entities.TreatmentItem {
	items := make([]entities.TreatmentItem, 0, len(records))

	for _, record := range records {
		item := n.NewItem(
			record.Tooth.String(),
			record.ProcedureName(),
			int(record.StageCategory),
			float64(record.Price),
			record.Condition,
		)
		items = append(items, item)

		replacement := NormalizeKey(record.Replacement)
		if !IsExtraction(item.Procedure) || replacement == "" || replacement == "none" {
			continue
		}

		synthesized := n.NewItem(
			item.Tooth,
			replacement,
			CategoryProsthetic,
			ReplacementPrice(replacement),
			ConditionPostExtractionReplace,
		)
		// deferral of the replacement is projected from the extraction itself
		synthesized.Dependencies = nil
		items = append(items, synthesized)
	}

	return items
}

// NewItem builds one treatment item, deriving location, duration and dependencies
func (n *Normalizer) NewItem(tooth, procedure string, category int, price float64, condition string) entities.TreatmentItem {
	tooth = strings.TrimSpace(tooth)
	key := NormalizeKey(procedure)
	location := n.locator.Locate(tooth)

	var deps []string
	if listed, ok := n.dependencies[key]; ok && len(listed) > 0 {
		deps = append([]string(nil), listed...)
	}

	return entities.TreatmentItem{
		Tooth:               tooth,
		Procedure:           key,
		StageCategory:       category,
		Price:               price,
		Condition:           strings.TrimSpace(condition),
		TimeEstimateMinutes: n.MinutesFor(key),
		Side:                location.Side,
		Arch:                location.Arch,
		Quadrant:            location.Quadrant,
		Dependencies:        deps,
	}
}

// MinutesFor returns the configured duration of a procedure, or the default estimate
func (n *Normalizer) MinutesFor(procedure string) int {
	if minutes, ok := n.minutes[NormalizeKey(procedure)]; ok {
		return minutes
	}
	return entities.DefaultProcedureMinutes
}
