package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadGoldenPlans reads and parses a golden plan set from a JSON or YAML file.
func LoadGoldenPlans(path string) ([]GoldenPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read golden plans file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse golden plans: %w", err)
		}
		// Re-encoded so the lenient JSON decoders of the records apply
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to parse golden plans: %w", err)
		}
	}

	var plans []GoldenPlan
	if err := json.Unmarshal(data, &plans); err != nil {
		return nil, fmt.Errorf("failed to parse golden plans: %w", err)
	}

	return plans, nil
}

// ValidateGoldenPlans checks that all golden plans have required fields and valid values.
func ValidateGoldenPlans(plans []GoldenPlan) error {
	seen := make(map[string]struct{}, len(plans))

	for i, p := range plans {
		if p.ID == "" {
			return fmt.Errorf("plan at index %d: missing id", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("plan at index %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}

		if !p.Difficulty.IsValid() {
			return fmt.Errorf("plan %q: invalid difficulty %q (must be easy/medium/hard)", p.ID, p.Difficulty)
		}
		for name, v := range map[string]*int{
			"stages":       p.Expect.Stages,
			"visits":       p.Expect.Visits,
			"treatments":   p.Expect.Treatments,
			"future_tasks": p.Expect.FutureTasks,
		} {
			if v != nil && *v < 0 {
				return fmt.Errorf("plan %q: expected %s must not be negative", p.ID, name)
			}
		}
	}

	return nil
}
