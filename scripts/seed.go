package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/dentalplan/internal/adapters/database"
	"github.com/zatekoja/dentalplan/internal/application/services"
	"github.com/zatekoja/dentalplan/internal/domain/entities"
	"github.com/zatekoja/dentalplan/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
	"github.com/zatekoja/dentalplan/pkg/config"
)

func intPtr(v int) *int {
	return &v
}

func stringPtr(v string) *string {
	return &v
}

// demoClinics are the clinic overrides loaded into a fresh database
var demoClinics = map[string]*entities.ClinicConfigurationOverrides{
	// Short appointments, everything else default
	"downtown-family-dental": {
		VisitTimeBudgetMinutes: intPtr(60),
	},
	// Surgical practice with long sedation visits and an in-house lab
	"lakeside-oral-surgery": {
		VisitTimeBudgetMinutes:          intPtr(180),
		MaxQuadrantsPerVisit:            intPtr(2),
		ExtractionToImplantHealingWeeks: intPtr(12),
		CrownSeatLabDelayDays:           intPtr(7),
		SameDayAllowances: &entities.SameDayAllowances{
			ExtractionWithImplant:          true,
			MultipleQuadrantsUnderSedation: true,
		},
		ProcedureMinutes: map[string]int{
			"surgical-extraction": 50,
			"implant-placement":   75,
		},
	},
	// European clinic charting in FDI notation
	"harbour-dental-eu": {
		ToothNumbering:        stringPtr(entities.ToothNumberingFDI),
		CrownSeatLabDelayDays: intPtr(10),
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	observability.InitLogger("dentalplan-seed", cfg.Server.Env)

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating clinic configurations before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE clinic_staging_configs`); err != nil {
			log.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	repo := database.NewClinicConfigurationAdapter(pgClient)
	clinicService := services.NewClinicConfigurationService(repo, nil, nil, nil, cfg.Cache.ClinicConfigTTL)

	seeded := 0
	for clinicID, overrides := range demoClinics {
		effective, err := clinicService.Save(ctx, clinicID, overrides)
		if err != nil {
			log.Error().Err(err).Str("clinic_id", clinicID).Msg("Failed to seed clinic configuration")
			continue
		}
		seeded++
		log.Info().
			Str("clinic_id", clinicID).
			Int("visit_time_budget_minutes", effective.Configuration.VisitTimeBudgetMinutes).
			Str("tooth_numbering", effective.Configuration.ToothNumbering).
			Msg("Seeded clinic configuration")
	}

	log.Info().Int("clinics", seeded).Msg("Seeding complete")
}
