package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/domain/repositories"
	"github.com/zatekoja/dentalplan/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/dentalplan/pkg/errors"
)

const clinicConfigTable = "clinic_staging_configs"

// ClinicConfigurationAdapter implements ClinicConfigurationRepository.
// Overrides are stored as a JSONB document per clinic.
type ClinicConfigurationAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewClinicConfigurationAdapter creates a new clinic configuration adapter
func NewClinicConfigurationAdapter(client *postgres.Client) repositories.ClinicConfigurationRepository {
	return &ClinicConfigurationAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Get retrieves the stored overrides of a clinic
func (a *ClinicConfigurationAdapter) Get(ctx context.Context, clinicID string) (*entities.ClinicStagingConfig, error) {
	query, args, err := a.db.From(clinicConfigTable).
		Prepared(true).
		Select("clinic_id", "overrides", "updated_at").
		Where(goqu.Ex{"clinic_id": clinicID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	row := a.client.DB().QueryRowContext(ctx, query, args...)
	config, err := scanClinicConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("staging configuration for clinic %s not found", clinicID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get clinic staging configuration", err)
	}

	return config, nil
}

// Upsert creates or replaces the overrides of a clinic
func (a *ClinicConfigurationAdapter) Upsert(ctx context.Context, config *entities.ClinicStagingConfig) error {
	if config.UpdatedAt.IsZero() {
		config.UpdatedAt = time.Now().UTC()
	}

	document, err := json.Marshal(config.Overrides)
	if err != nil {
		return apperrors.NewInternalError("failed to encode overrides", err)
	}

	query, args, err := a.db.Insert(clinicConfigTable).
		Prepared(true).
		Rows(goqu.Record{
			"clinic_id":  config.ClinicID,
			"overrides":  string(document),
			"updated_at": config.UpdatedAt,
		}).
		OnConflict(goqu.DoUpdate("clinic_id", goqu.Record{
			"overrides":  goqu.L("EXCLUDED.overrides"),
			"updated_at": goqu.L("EXCLUDED.updated_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to save clinic staging configuration", err)
	}

	return nil
}

// Delete removes the overrides of a clinic
func (a *ClinicConfigurationAdapter) Delete(ctx context.Context, clinicID string) error {
	query, args, err := a.db.Delete(clinicConfigTable).
		Prepared(true).
		Where(goqu.Ex{"clinic_id": clinicID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete clinic staging configuration", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("staging configuration for clinic %s not found", clinicID))
	}

	return nil
}

// List retrieves every clinic that has stored overrides, ordered by clinic ID
func (a *ClinicConfigurationAdapter) List(ctx context.Context) ([]*entities.ClinicStagingConfig, error) {
	query, args, err := a.db.From(clinicConfigTable).
		Prepared(true).
		Select("clinic_id", "overrides", "updated_at").
		Order(goqu.I("clinic_id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list clinic staging configurations", err)
	}
	defer rows.Close()

	configs := []*entities.ClinicStagingConfig{}
	for rows.Next() {
		config, err := scanClinicConfig(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan clinic staging configuration", err)
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate clinic staging configurations", err)
	}

	return configs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClinicConfig(row rowScanner) (*entities.ClinicStagingConfig, error) {
	config := &entities.ClinicStagingConfig{}
	var document []byte

	if err := row.Scan(&config.ClinicID, &document, &config.UpdatedAt); err != nil {
		return nil, err
	}
	if len(document) > 0 {
		if err := json.Unmarshal(document, &config.Overrides); err != nil {
			return nil, fmt.Errorf("failed to decode overrides of clinic %s: %w", config.ClinicID, err)
		}
	}

	return config, nil
}
