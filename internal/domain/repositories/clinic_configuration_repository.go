package repositories

import (
	"context"

	"github.com/zatekoja/dentalplan/internal/domain/entities"
)

// ClinicConfigurationRepository defines the interface for stored per-clinic staging overrides
type ClinicConfigurationRepository interface {
	// Get retrieves the stored overrides of a clinic.
	// Returns a NOT_FOUND AppError when the clinic has none.
	Get(ctx context.Context, clinicID string) (*entities.ClinicStagingConfig, error)

	// Upsert creates or replaces the overrides of a clinic
	Upsert(ctx context.Context, config *entities.ClinicStagingConfig) error

	// Delete removes the overrides of a clinic
	Delete(ctx context.Context, clinicID string) error

	// List retrieves every clinic that has stored overrides
	List(ctx context.Context) ([]*entities.ClinicStagingConfig, error)
}
