package entities

import "time"

// ClinicStagingConfig is the persisted override set of one clinic
type ClinicStagingConfig struct {
	ClinicID  string                       `json:"clinic_id" db:"clinic_id"`
	Overrides ClinicConfigurationOverrides `json:"overrides" db:"overrides"`
	UpdatedAt time.Time                    `json:"updated_at" db:"updated_at"`
}

// EffectiveClinicConfiguration is the configuration a clinic's plans are staged with
type EffectiveClinicConfiguration struct {
	ClinicID      string                        `json:"clinic_id"`
	Configuration ClinicConfiguration           `json:"configuration"`
	Overrides     *ClinicConfigurationOverrides `json:"overrides,omitempty"`
	UpdatedAt     *time.Time                    `json:"updated_at,omitempty"`
}
