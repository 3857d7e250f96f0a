package entities

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

// Tooth numbering schemes understood by the staging engine
const (
	ToothNumberingUniversal = "universal"
	ToothNumberingFDI       = "fdi"
)

// DefaultProcedureMinutes is the estimate used for procedures missing from the minutes table
const DefaultProcedureMinutes = 45

// SameDayAllowances are clinic policy flags for combining procedures in one appointment
type SameDayAllowances struct {
	ExtractionWithImplant          bool `json:"extraction_with_implant" mapstructure:"extraction_with_implant"`
	CrownPrepWithSeat              bool `json:"crown_prep_with_seat" mapstructure:"crown_prep_with_seat"`
	MultipleQuadrantsUnderSedation bool `json:"multiple_quadrants_under_sedation" mapstructure:"multiple_quadrants_under_sedation"`
}

// ClinicConfiguration holds every policy knob used by one staging computation
type ClinicConfiguration struct {
	VisitTimeBudgetMinutes          int                 `json:"visit_time_budget_minutes"`
	MaxQuadrantsPerVisit            int                 `json:"max_quadrants_per_visit"`
	MaxSidesPerVisit                int                 `json:"max_sides_per_visit"`
	ExtractionToImplantHealingWeeks int                 `json:"extraction_to_implant_healing_weeks"`
	CrownSeatLabDelayDays           int                 `json:"crown_seat_lab_delay_days"`
	SameDayAllowances               SameDayAllowances   `json:"same_day_allowances"`
	ToothNumbering                  string              `json:"tooth_numbering"`
	ProcedureMinutes                map[string]int      `json:"procedure_minutes"`
	ProcedureDependencies           map[string][]string `json:"procedure_dependencies"`
}

// DefaultClinicConfiguration returns a fresh copy of the default configuration.
// Callers own the returned value and its tables.
func DefaultClinicConfiguration() ClinicConfiguration {
	return ClinicConfiguration{
		VisitTimeBudgetMinutes:          90,
		MaxQuadrantsPerVisit:            1,
		MaxSidesPerVisit:                1,
		ExtractionToImplantHealingWeeks: 10,
		CrownSeatLabDelayDays:           14,
		ToothNumbering:                  ToothNumberingUniversal,
		ProcedureMinutes: map[string]int{
			"exam":                  30,
			"scaling":               60,
			"deep-cleaning":         60,
			"periodontal-treatment": 60,
			"filling":               30,
			"composite-filling":     30,
			"sealant":               20,
			"fluoride":              15,
			"pulpotomy":             45,
			"root-canal-treatment":  90,
			"apicoectomy":           75,
			"build-up":              30,
			"crown-prep":            60,
			"crown-seat":            30,
			"extraction":            45,
			"surgical-extraction":   60,
			"implant-placement":     90,
			"implant-crown":         45,
			"bridge":                60,
			"partial-denture":       45,
			"whitening":             60,
			"veneer":                60,
		},
		ProcedureDependencies: map[string][]string{
			"root-canal-treatment": {"build-up", "crown-prep", "crown-seat"},
			"crown-prep":           {"crown-seat"},
			"extraction":           {"implant-placement"},
			"surgical-extraction":  {"implant-placement"},
			"implant-placement":    {"implant-crown"},
		},
	}
}

// Clone returns a deep copy so that tables are never shared between requests
func (c ClinicConfiguration) Clone() ClinicConfiguration {
	out := c
	out.ProcedureMinutes = cloneMinutes(c.ProcedureMinutes)
	out.ProcedureDependencies = cloneDependencies(c.ProcedureDependencies)
	return out
}

// Validate rejects configurations that would make packing meaningless.
// Values are never clamped.
func (c ClinicConfiguration) Validate() error {
	var problems []string

	if c.VisitTimeBudgetMinutes <= 0 {
		problems = append(problems, fmt.Sprintf("visit_time_budget_minutes must be positive (got %d)", c.VisitTimeBudgetMinutes))
	}
	if c.MaxQuadrantsPerVisit < 1 {
		problems = append(problems, fmt.Sprintf("max_quadrants_per_visit must be at least 1 (got %d)", c.MaxQuadrantsPerVisit))
	}
	if c.MaxSidesPerVisit < 1 {
		problems = append(problems, fmt.Sprintf("max_sides_per_visit must be at least 1 (got %d)", c.MaxSidesPerVisit))
	}
	if c.ExtractionToImplantHealingWeeks < 0 {
		problems = append(problems, fmt.Sprintf("extraction_to_implant_healing_weeks must not be negative (got %d)", c.ExtractionToImplantHealingWeeks))
	}
	if c.CrownSeatLabDelayDays < 0 {
		problems = append(problems, fmt.Sprintf("crown_seat_lab_delay_days must not be negative (got %d)", c.CrownSeatLabDelayDays))
	}
	switch c.ToothNumbering {
	case ToothNumberingUniversal, ToothNumberingFDI:
	default:
		problems = append(problems, fmt.Sprintf("tooth_numbering must be %q or %q (got %q)", ToothNumberingUniversal, ToothNumberingFDI, c.ToothNumbering))
	}

	procedures := make([]string, 0, len(c.ProcedureMinutes))
	for procedure := range c.ProcedureMinutes {
		procedures = append(procedures, procedure)
	}
	sort.Strings(procedures)
	for _, procedure := range procedures {
		if minutes := c.ProcedureMinutes[procedure]; minutes < 0 {
			problems = append(problems, fmt.Sprintf("procedure_minutes[%s] must not be negative (got %d)", procedure, minutes))
		}
	}

	if len(problems) > 0 {
		return apperrors.NewValidationError("invalid clinic configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// ClinicConfigurationOverrides is a partial configuration. Nil fields keep the
// underlying value; a supplied table replaces the whole table.
type ClinicConfigurationOverrides struct {
	VisitTimeBudgetMinutes          *int                `json:"visit_time_budget_minutes,omitempty" mapstructure:"visit_time_budget_minutes"`
	MaxQuadrantsPerVisit            *int                `json:"max_quadrants_per_visit,omitempty" mapstructure:"max_quadrants_per_visit"`
	MaxSidesPerVisit                *int                `json:"max_sides_per_visit,omitempty" mapstructure:"max_sides_per_visit"`
	ExtractionToImplantHealingWeeks *int                `json:"extraction_to_implant_healing_weeks,omitempty" mapstructure:"extraction_to_implant_healing_weeks"`
	CrownSeatLabDelayDays           *int                `json:"crown_seat_lab_delay_days,omitempty" mapstructure:"crown_seat_lab_delay_days"`
	SameDayAllowances               *SameDayAllowances  `json:"same_day_allowances,omitempty" mapstructure:"same_day_allowances"`
	ToothNumbering                  *string             `json:"tooth_numbering,omitempty" mapstructure:"tooth_numbering"`
	ProcedureMinutes                map[string]int      `json:"procedure_minutes,omitempty" mapstructure:"procedure_minutes"`
	ProcedureDependencies           map[string][]string `json:"procedure_dependencies,omitempty" mapstructure:"procedure_dependencies"`
}

// IsEmpty reports whether no override is set
func (o *ClinicConfigurationOverrides) IsEmpty() bool {
	if o == nil {
		return true
	}
	return o.VisitTimeBudgetMinutes == nil &&
		o.MaxQuadrantsPerVisit == nil &&
		o.MaxSidesPerVisit == nil &&
		o.ExtractionToImplantHealingWeeks == nil &&
		o.CrownSeatLabDelayDays == nil &&
		o.SameDayAllowances == nil &&
		o.ToothNumbering == nil &&
		o.ProcedureMinutes == nil &&
		o.ProcedureDependencies == nil
}

// ApplyTo returns a copy of base with the overrides applied key by key.
// base is not modified.
func (o *ClinicConfigurationOverrides) ApplyTo(base ClinicConfiguration) ClinicConfiguration {
	out := base.Clone()
	if o == nil {
		return out
	}

	if o.VisitTimeBudgetMinutes != nil {
		out.VisitTimeBudgetMinutes = *o.VisitTimeBudgetMinutes
	}
	if o.MaxQuadrantsPerVisit != nil {
		out.MaxQuadrantsPerVisit = *o.MaxQuadrantsPerVisit
	}
	if o.MaxSidesPerVisit != nil {
		out.MaxSidesPerVisit = *o.MaxSidesPerVisit
	}
	if o.ExtractionToImplantHealingWeeks != nil {
		out.ExtractionToImplantHealingWeeks = *o.ExtractionToImplantHealingWeeks
	}
	if o.CrownSeatLabDelayDays != nil {
		out.CrownSeatLabDelayDays = *o.CrownSeatLabDelayDays
	}
	if o.SameDayAllowances != nil {
		out.SameDayAllowances = *o.SameDayAllowances
	}
	if o.ToothNumbering != nil {
		out.ToothNumbering = strings.ToLower(strings.TrimSpace(*o.ToothNumbering))
	}
	if o.ProcedureMinutes != nil {
		out.ProcedureMinutes = cloneMinutes(o.ProcedureMinutes)
	}
	if o.ProcedureDependencies != nil {
		out.ProcedureDependencies = cloneDependencies(o.ProcedureDependencies)
	}

	return out
}

// Merge layers next on top of o and returns a new overrides value.
// Keys set in next win.
func (o *ClinicConfigurationOverrides) Merge(next *ClinicConfigurationOverrides) *ClinicConfigurationOverrides {
	merged := &ClinicConfigurationOverrides{}
	for _, layer := range []*ClinicConfigurationOverrides{o, next} {
		if layer == nil {
			continue
		}
		if layer.VisitTimeBudgetMinutes != nil {
			merged.VisitTimeBudgetMinutes = intPtr(*layer.VisitTimeBudgetMinutes)
		}
		if layer.MaxQuadrantsPerVisit != nil {
			merged.MaxQuadrantsPerVisit = intPtr(*layer.MaxQuadrantsPerVisit)
		}
		if layer.MaxSidesPerVisit != nil {
			merged.MaxSidesPerVisit = intPtr(*layer.MaxSidesPerVisit)
		}
		if layer.ExtractionToImplantHealingWeeks != nil {
			merged.ExtractionToImplantHealingWeeks = intPtr(*layer.ExtractionToImplantHealingWeeks)
		}
		if layer.CrownSeatLabDelayDays != nil {
			merged.CrownSeatLabDelayDays = intPtr(*layer.CrownSeatLabDelayDays)
		}
		if layer.SameDayAllowances != nil {
			allowances := *layer.SameDayAllowances
			merged.SameDayAllowances = &allowances
		}
		if layer.ToothNumbering != nil {
			numbering := *layer.ToothNumbering
			merged.ToothNumbering = &numbering
		}
		if layer.ProcedureMinutes != nil {
			merged.ProcedureMinutes = cloneMinutes(layer.ProcedureMinutes)
		}
		if layer.ProcedureDependencies != nil {
			merged.ProcedureDependencies = cloneDependencies(layer.ProcedureDependencies)
		}
	}
	return merged
}

func intPtr(v int) *int {
	return &v
}

func cloneMinutes(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneDependencies(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
