package staging

import (
	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// CategoryForCondition looks a diagnosed condition up in the urgency table.
// Unknown conditions are treated as definitive restorations.
func CategoryForCondition(condition string) int {
	if category, ok := conditionCategories[NormalizeKey(condition)]; ok {
		return category
	}
	return CategoryRestorative
}

// Classify returns a copy of items where every unclassified item has a stage category.
// Categories outside 1-4 count as unclassified.
func Classify(items []entities.TreatmentItem) []entities.TreatmentItem {
	classified := make([]entities.TreatmentItem, len(items))
	for i, item := range items {
		if item.StageCategory < CategoryUrgent || item.StageCategory > CategoryAesthetic {
			item.StageCategory = CategoryForCondition(item.Condition)
		}
		classified[i] = item
	}
	return classified
}
