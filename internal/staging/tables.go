package staging

import (
	"strings"

	"golang.org/x/text/cases"
)

// Procedure keys the engine applies rules to
const (
	ProcedureRootCanal             = "root-canal-treatment"
	ProcedureBuildUp               = "build-up"
	ProcedureCrownPrep             = "crown-prep"
	ProcedureCrownSeat             = "crown-seat"
	ProcedureExtraction            = "extraction"
	ProcedureImplantPlacement      = "implant-placement"
	ProcedureBridge                = "bridge"
	ProcedurePartialDenture        = "partial-denture"
	ProcedureReplacementConsult    = "replacement-consultation"
	ConditionPostExtractionReplace = "post-extraction-replacement"
	ConditionRootCanalFollowUp     = "root-canal-follow-up"
)

// Stage categories
const (
	CategoryUnclassified = 0
	CategoryUrgent       = 1
	CategoryRestorative  = 2
	CategoryProsthetic   = 3
	CategoryAesthetic    = 4
)

var stageTitles = map[int]string{
	CategoryUrgent:      "Infection/Pain/Disease Control",
	CategoryRestorative: "Definitive Restorations",
	CategoryProsthetic:  "Prosthetics",
	CategoryAesthetic:   "Aesthetics",
}

// StageTitle returns the fixed title of a stage category
func StageTitle(category int) string {
	return stageTitles[category]
}

var conditionCategories = map[string]int{
	// active infection or acute pain
	"periapical-lesion": CategoryUrgent,
	"caries":            CategoryUrgent,
	"cavity":            CategoryUrgent,
	"decay":             CategoryUrgent,
	"active-decay":      CategoryUrgent,
	"abscess":           CategoryUrgent,
	"pulpitis":          CategoryUrgent,
	"infection":         CategoryUrgent,
	"acute-pain":        CategoryUrgent,

	// structural or progressive
	"root-fragment":            CategoryRestorative,
	"fracture":                 CategoryRestorative,
	"fractured-tooth":          CategoryRestorative,
	"cracked-tooth":            CategoryRestorative,
	"impacted-tooth":           CategoryRestorative,
	"defective-restoration":    CategoryRestorative,
	"periodontal-bone-loss":    CategoryRestorative,
	ConditionRootCanalFollowUp: CategoryRestorative,

	// replacement driven
	"missing-tooth":                CategoryProsthetic,
	"edentulous-space":             CategoryProsthetic,
	ConditionPostExtractionReplace: CategoryProsthetic,
	"whitening":                    CategoryProsthetic,

	// elective
	"discoloration":  CategoryAesthetic,
	"staining":       CategoryAesthetic,
	"cosmetic":       CategoryAesthetic,
	"diastema":       CategoryAesthetic,
	"chipped-enamel": CategoryAesthetic,
}

var replacementPrices = map[string]float64{
	ProcedureImplantPlacement: 2300,
	ProcedureBridge:           1800,
	ProcedurePartialDenture:   1200,
}

// ReplacementPrice returns the list price used for a synthesized replacement item
func ReplacementPrice(procedure string) float64 {
	return replacementPrices[procedure]
}

// IsReplacement reports whether a procedure is a prosthetic replacement for an extracted tooth
func IsReplacement(procedure string) bool {
	_, ok := replacementPrices[procedure]
	return ok
}

// IsExtraction reports whether a procedure removes a tooth
func IsExtraction(procedure string) bool {
	return procedure == ProcedureExtraction || strings.HasSuffix(procedure, "-"+ProcedureExtraction)
}

// NormalizeKey folds a procedure or condition name into its lookup key
func NormalizeKey(name string) string {
	// Casers carry state and are not shared between goroutines.
	return cases.Fold().String(strings.TrimSpace(name))
}

// foldMinutes re-keys a minutes table so that lookups are case-insensitive
func foldMinutes(table map[string]int) map[string]int {
	out := make(map[string]int, len(table))
	for procedure, minutes := range table {
		out[NormalizeKey(procedure)] = minutes
	}
	return out
}

func foldDependencies(table map[string][]string) map[string][]string {
	out := make(map[string][]string, len(table))
	for procedure, deps := range table {
		folded := make([]string, 0, len(deps))
		for _, dep := range deps {
			folded = append(folded, NormalizeKey(dep))
		}
		out[NormalizeKey(procedure)] = folded
	}
	return out
}
