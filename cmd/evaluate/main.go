package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/dentalplan/internal/evaluation"
	"github.com/zatekoja/dentalplan/internal/infrastructure/observability"
	"github.com/zatekoja/dentalplan/internal/staging"
)

func main() {
	observability.InitLogger("dentalplan-evaluate", "development")

	// Load Golden Plans
	goldenPath := "config/golden_plans.yaml"
	if len(os.Args) > 1 {
		goldenPath = os.Args[1]
	} else if _, err := os.Stat("../../" + goldenPath); err == nil {
		goldenPath = "../../" + goldenPath
	}

	plans, err := evaluation.LoadGoldenPlans(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load golden plans")
	}
	if err := evaluation.ValidateGoldenPlans(plans); err != nil {
		log.Fatal().Err(err).Str("path", goldenPath).Msg("Invalid golden plans")
	}

	runner := evaluation.NewRunner(staging.NewEngine(), evaluation.NewGuardrails(evaluation.GuardrailConfig{}))
	summary, err := runner.Run(context.Background(), plans)
	if err != nil {
		log.Fatal().Err(err).Msg("Evaluation failed")
	}

	// Output results as JSON
	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if summary.Passed < summary.TotalPlans {
		log.Error().
			Int("failed", summary.TotalPlans-summary.Passed).
			Int("total", summary.TotalPlans).
			Msg("Golden plans failed")
		os.Exit(1)
	}
}
